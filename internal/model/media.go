// Package model はドメインモデルを定義する。
package model

import "fmt"

// MediaType はカタログ上のメディア種別を表す。
// カタログサービスのパス表記（"tv" / "movie"）をそのまま値として使用する。
type MediaType string

const (
	// MediaTypeSeries はテレビシリーズ。
	MediaTypeSeries MediaType = "tv"
	// MediaTypeMovie は映画。
	MediaTypeMovie MediaType = "movie"
)

// Valid はメディア種別が既知の2種類のいずれかであるかを返す。
func (t MediaType) Valid() bool {
	return t == MediaTypeSeries || t == MediaTypeMovie
}

// MediaRef はカタログ上の1作品を一意に識別するイミュータブルな値オブジェクト。
type MediaRef struct {
	Type MediaType
	ID   int
}

// String は"tv/1399"形式の表記を返す。ログ出力用。
func (r MediaRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// EpisodeMarker はシリーズ内の1エピソードの位置を表す。
// (シーズン, エピソード) の辞書式順序で全順序を成す。
type EpisodeMarker struct {
	Season  int
	Episode int
}

// Compare は2つのマーカーを辞書式順序で比較する。
// m < other なら負、等しければ0、m > other なら正の値を返す。
func (m EpisodeMarker) Compare(other EpisodeMarker) int {
	if m.Season != other.Season {
		return m.Season - other.Season
	}
	return m.Episode - other.Episode
}

// Before は m が other より前のエピソードかを返す。
func (m EpisodeMarker) Before(other EpisodeMarker) bool {
	return m.Compare(other) < 0
}

// IsZero はマーカーが未設定（映画レコード等）かを返す。
func (m EpisodeMarker) IsZero() bool {
	return m.Season == 0 && m.Episode == 0
}

// String は"S3E10"形式のエピソードコードを返す。
func (m EpisodeMarker) String() string {
	return fmt.Sprintf("S%dE%d", m.Season, m.Episode)
}

// Genre はカタログが定義するジャンル。
type Genre struct {
	ID   int
	Name string
}

// CastMember はエピソードのゲスト出演者。
type CastMember struct {
	Name      string
	Character string
}

// Movie はカタログAPIレスポンス1件を射影した映画の値オブジェクト。
// 永続化されない（鮮度優先でキャッシュしない）。
type Movie struct {
	ID          int
	Title       string
	Overview    string
	VoteAverage float64
	PosterPath  string
	Genres      []string
	ReleaseDate string
}

// Series はカタログAPIレスポンス1件を射影したシリーズの値オブジェクト。
// Seasonsはシーズン番号からエピソード数へのマップ。
// LatestAiredは放送済み最新話、NextAirDateは次回放送日（未定なら空文字列）。
type Series struct {
	ID           int
	Name         string
	Overview     string
	VoteAverage  float64
	PosterPath   string
	Genres       []string
	Seasons      map[int]int
	LatestAired  EpisodeMarker
	NextAirDate  string
	FirstAirDate string
}

// Episode はカタログAPIレスポンス1件を射影したエピソードの値オブジェクト。
type Episode struct {
	Code        string // "S3E10"形式
	SeriesID    int
	Name        string
	Overview    string
	VoteAverage float64
	StillPath   string
	Season      int
	Episode     int
	AirDate     string
	GuestStars  []CastMember
}

// MediaSummary は一覧系エンドポイント（人気・検索・ディスカバー等）の1行。
type MediaSummary struct {
	Ref         MediaRef
	Title       string
	Overview    string
	PosterPath  string
	VoteAverage float64
}

// PagedSummaries はページネーション付きの一覧結果。
type PagedSummaries struct {
	Results    []MediaSummary
	TotalPages int
}

// SearchResults はシリーズと映画を同時検索した結果。
// 2つの結果セットは上流で独立にページネーションされるため、
// TotalPagesには両者の最大値を報告する。
type SearchResults struct {
	Series     []MediaSummary
	Movies     []MediaSummary
	TotalPages int
}
