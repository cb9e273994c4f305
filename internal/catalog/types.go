package catalog

// カタログサービスのエンドポイントごとのレスポンススキーマ。
// 外部JSONの形状変化と「存在しない」を区別するため、
// 必須フィールドのIDはポインタで受け、nilを未検出として扱う。

// errorPayload はカタログサービスのエラーレスポンスボディ。
type errorPayload struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// genreItem はジャンル1件。
type genreItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// genreListResponse はジャンル一覧エンドポイントのレスポンス。
type genreListResponse struct {
	Genres []genreItem `json:"genres"`
}

// summaryItem は一覧系エンドポイントの1件。
// シリーズはname、映画はtitleを使うため両方を受ける。
type summaryItem struct {
	ID          *int    `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
}

// pagedListResponse はページネーション付き一覧エンドポイントのレスポンス。
type pagedListResponse struct {
	Page       int           `json:"page"`
	Results    []summaryItem `json:"results"`
	TotalPages int           `json:"total_pages"`
}

// seasonItem はシリーズ詳細に含まれるシーズン1件。
type seasonItem struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

// episodeStub はシリーズ詳細に含まれる直近・次回エピソードの要約。
type episodeStub struct {
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	AirDate       string `json:"air_date"`
}

// seriesDetailResponse はシリーズ詳細エンドポイントのレスポンス。
type seriesDetailResponse struct {
	ID               *int         `json:"id"`
	Name             string       `json:"name"`
	Overview         string       `json:"overview"`
	VoteAverage      float64      `json:"vote_average"`
	PosterPath       string       `json:"poster_path"`
	Genres           []genreItem  `json:"genres"`
	Seasons          []seasonItem `json:"seasons"`
	LastEpisodeToAir *episodeStub `json:"last_episode_to_air"`
	NextEpisodeToAir *episodeStub `json:"next_episode_to_air"`
	FirstAirDate     string       `json:"first_air_date"`
}

// movieDetailResponse は映画詳細エンドポイントのレスポンス。
type movieDetailResponse struct {
	ID          *int        `json:"id"`
	Title       string      `json:"title"`
	Overview    string      `json:"overview"`
	VoteAverage float64     `json:"vote_average"`
	PosterPath  string      `json:"poster_path"`
	Genres      []genreItem `json:"genres"`
	ReleaseDate string      `json:"release_date"`
}

// castItem はエピソード詳細のゲスト出演者1件。
type castItem struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

// episodeDetailResponse はエピソード詳細エンドポイントのレスポンス。
type episodeDetailResponse struct {
	ID            *int       `json:"id"`
	Name          string     `json:"name"`
	Overview      string     `json:"overview"`
	VoteAverage   float64    `json:"vote_average"`
	StillPath     string     `json:"still_path"`
	SeasonNumber  int        `json:"season_number"`
	EpisodeNumber int        `json:"episode_number"`
	AirDate       string     `json:"air_date"`
	GuestStars    []castItem `json:"guest_stars"`
}

// guestSessionResponse はゲストセッション発行エンドポイントのレスポンス。
type guestSessionResponse struct {
	Success        bool   `json:"success"`
	GuestSessionID string `json:"guest_session_id"`
}
