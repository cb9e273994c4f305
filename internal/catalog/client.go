package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/hitoshi/watchman/internal/model"
	"github.com/hitoshi/watchman/internal/security"
)

// maxSimilarResults は類似作品一覧の上限件数。
// カタログの報告件数に関わらず、サービス側の並び順のまま先頭から切り詰める。
const maxSimilarResults = 12

// Client はカタログサービスの型付きクライアント。
// エンドポイントごとに1操作を公開し、外部JSONを内部の値オブジェクトへ射影する。
// 存在しない作品の参照は想定内の事象としてnilを返し、エラーにしない。
type Client struct {
	dispatcher Dispatcher
	sanitizer  security.ContentSanitizerService
	sessions   SessionRenewer
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(dispatcher Dispatcher, sanitizer security.ContentSanitizerService, sessions SessionRenewer, logger *slog.Logger) *Client {
	return &Client{
		dispatcher: dispatcher,
		sanitizer:  sanitizer,
		sessions:   sessions,
		logger:     logger,
	}
}

// isNotFound はStatusError 404かを判定する。
// 存在しない作品への参照は通常の結果として扱う。
func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// GetSeries はシリーズ詳細を取得する。存在しない場合は(nil, nil)を返す。
func (c *Client) GetSeries(ctx context.Context, id int) (*model.Series, error) {
	body, err := c.dispatcher.Dispatch(ctx, "get_series", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/tv/%d", id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp seriesDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("シリーズ詳細レスポンスのパースに失敗しました: %w", err)
	}
	// IDが欠けたレスポンスはエラーペイロードか形状不一致。未検出として扱う。
	if resp.ID == nil {
		return nil, nil
	}

	return c.mapSeries(&resp), nil
}

// GetMovie は映画詳細を取得する。存在しない場合は(nil, nil)を返す。
func (c *Client) GetMovie(ctx context.Context, id int) (*model.Movie, error) {
	body, err := c.dispatcher.Dispatch(ctx, "get_movie", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/movie/%d", id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp movieDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("映画詳細レスポンスのパースに失敗しました: %w", err)
	}
	if resp.ID == nil {
		return nil, nil
	}

	return &model.Movie{
		ID:          *resp.ID,
		Title:       c.sanitizer.Sanitize(resp.Title),
		Overview:    c.sanitizer.Sanitize(resp.Overview),
		VoteAverage: resp.VoteAverage,
		PosterPath:  resp.PosterPath,
		Genres:      genreNames(resp.Genres),
		ReleaseDate: resp.ReleaseDate,
	}, nil
}

// ResolveName は作品の表示名を解決する。通知一覧で使用する。
// 存在しない作品は("", nil)を返し、呼び出し側がスキップを判断する。
func (c *Client) ResolveName(ctx context.Context, ref model.MediaRef) (string, error) {
	switch ref.Type {
	case model.MediaTypeSeries:
		series, err := c.GetSeries(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		if series == nil {
			return "", nil
		}
		return series.Name, nil
	case model.MediaTypeMovie:
		movie, err := c.GetMovie(ctx, ref.ID)
		if err != nil {
			return "", err
		}
		if movie == nil {
			return "", nil
		}
		return movie.Title, nil
	default:
		return "", model.NewInvalidMediaTypeError(ref.Type)
	}
}

// GetPopular は人気作品の一覧を取得する。
func (c *Client) GetPopular(ctx context.Context, mediaType model.MediaType, page int) (*model.PagedSummaries, error) {
	return c.getPagedList(ctx, "get_popular", mediaType, fmt.Sprintf("/%s/popular", mediaType), page)
}

// GetTopRated は高評価作品の一覧を取得する。
func (c *Client) GetTopRated(ctx context.Context, mediaType model.MediaType, page int) (*model.PagedSummaries, error) {
	return c.getPagedList(ctx, "get_top_rated", mediaType, fmt.Sprintf("/%s/top_rated", mediaType), page)
}

// getPagedList はページネーション付き一覧エンドポイントの共通処理。
func (c *Client) getPagedList(ctx context.Context, endpoint string, mediaType model.MediaType, path string, page int) (*model.PagedSummaries, error) {
	if !mediaType.Valid() {
		return nil, model.NewInvalidMediaTypeError(mediaType)
	}
	if page < 1 {
		return nil, model.NewInvalidPageError(page)
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	body, err := c.dispatcher.Dispatch(ctx, endpoint, Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  q,
	})
	if err != nil {
		return nil, err
	}

	var resp pagedListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("一覧レスポンスのパースに失敗しました: %w", err)
	}

	return &model.PagedSummaries{
		Results:    c.mapSummaries(resp.Results, mediaType),
		TotalPages: resp.TotalPages,
	}, nil
}

// Search はシリーズと映画を同時に検索する。
// 2つのサブクエリは並行に実行され、いずれかが失敗した場合はエラーを返す。
// 結果セットは上流で独立にページネーションされるため、
// TotalPagesには両者の最大値を報告する。
func (c *Client) Search(ctx context.Context, query string, page int) (*model.SearchResults, error) {
	if page < 1 {
		return nil, model.NewInvalidPageError(page)
	}

	var (
		wg         sync.WaitGroup
		seriesResp *pagedListResponse
		movieResp  *pagedListResponse
		seriesErr  error
		movieErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		seriesResp, seriesErr = c.searchOne(ctx, "/search/tv", query, page)
	}()
	go func() {
		defer wg.Done()
		movieResp, movieErr = c.searchOne(ctx, "/search/movie", query, page)
	}()
	wg.Wait()

	if seriesErr != nil {
		return nil, seriesErr
	}
	if movieErr != nil {
		return nil, movieErr
	}

	totalPages := seriesResp.TotalPages
	if movieResp.TotalPages > totalPages {
		totalPages = movieResp.TotalPages
	}

	return &model.SearchResults{
		Series:     c.mapSummaries(seriesResp.Results, model.MediaTypeSeries),
		Movies:     c.mapSummaries(movieResp.Results, model.MediaTypeMovie),
		TotalPages: totalPages,
	}, nil
}

// searchOne は1メディア種別の検索サブクエリを実行する。
func (c *Client) searchOne(ctx context.Context, path, query string, page int) (*pagedListResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))

	body, err := c.dispatcher.Dispatch(ctx, "search", Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  q,
	})
	if err != nil {
		return nil, err
	}

	var resp pagedListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("検索レスポンスのパースに失敗しました: %w", err)
	}
	return &resp, nil
}

// GetGenres はメディア種別ごとのジャンル一覧を取得する。
func (c *Client) GetGenres(ctx context.Context, mediaType model.MediaType) ([]model.Genre, error) {
	if !mediaType.Valid() {
		return nil, model.NewInvalidMediaTypeError(mediaType)
	}

	body, err := c.dispatcher.Dispatch(ctx, "get_genres", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/genre/%s/list", mediaType),
	})
	if err != nil {
		return nil, err
	}

	var resp genreListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ジャンル一覧レスポンスのパースに失敗しました: %w", err)
	}

	genres := make([]model.Genre, 0, len(resp.Genres))
	for _, g := range resp.Genres {
		genres = append(genres, model.Genre{ID: g.ID, Name: g.Name})
	}
	return genres, nil
}

// Discover はジャンル指定で作品を発見する。
func (c *Client) Discover(ctx context.Context, mediaType model.MediaType, genreID, page int) (*model.PagedSummaries, error) {
	if !mediaType.Valid() {
		return nil, model.NewInvalidMediaTypeError(mediaType)
	}
	if page < 1 {
		return nil, model.NewInvalidPageError(page)
	}

	q := url.Values{}
	q.Set("with_genres", strconv.Itoa(genreID))
	q.Set("page", strconv.Itoa(page))

	body, err := c.dispatcher.Dispatch(ctx, "discover", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/discover/%s", mediaType),
		Query:  q,
	})
	if err != nil {
		return nil, err
	}

	var resp pagedListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ディスカバーレスポンスのパースに失敗しました: %w", err)
	}

	return &model.PagedSummaries{
		Results:    c.mapSummaries(resp.Results, mediaType),
		TotalPages: resp.TotalPages,
	}, nil
}

// GetEpisode はエピソード詳細を取得する。存在しない場合は(nil, nil)を返す。
func (c *Client) GetEpisode(ctx context.Context, seriesID, season, episode int) (*model.Episode, error) {
	if season < 1 || episode < 1 {
		return nil, model.NewInvalidEpisodeError(season, episode)
	}

	body, err := c.dispatcher.Dispatch(ctx, "get_episode", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/tv/%d/season/%d/episode/%d", seriesID, season, episode),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp episodeDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("エピソード詳細レスポンスのパースに失敗しました: %w", err)
	}
	if resp.ID == nil {
		return nil, nil
	}

	guests := make([]model.CastMember, 0, len(resp.GuestStars))
	for _, g := range resp.GuestStars {
		guests = append(guests, model.CastMember{Name: g.Name, Character: g.Character})
	}

	return &model.Episode{
		Code:        model.EpisodeMarker{Season: resp.SeasonNumber, Episode: resp.EpisodeNumber}.String(),
		SeriesID:    seriesID,
		Name:        c.sanitizer.Sanitize(resp.Name),
		Overview:    c.sanitizer.Sanitize(resp.Overview),
		VoteAverage: resp.VoteAverage,
		StillPath:   resp.StillPath,
		Season:      resp.SeasonNumber,
		Episode:     resp.EpisodeNumber,
		AirDate:     resp.AirDate,
		GuestStars:  guests,
	}, nil
}

// GetSimilar は類似作品の一覧を取得する。
// カタログの報告件数に関わらず、先頭から最大12件に切り詰める。
func (c *Client) GetSimilar(ctx context.Context, ref model.MediaRef) ([]model.MediaSummary, error) {
	if !ref.Type.Valid() {
		return nil, model.NewInvalidMediaTypeError(ref.Type)
	}

	body, err := c.dispatcher.Dispatch(ctx, "get_similar", Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/%s/%d/similar", ref.Type, ref.ID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var resp pagedListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("類似作品レスポンスのパースに失敗しました: %w", err)
	}

	summaries := c.mapSummaries(resp.Results, ref.Type)
	if len(summaries) > maxSimilarResults {
		summaries = summaries[:maxSimilarResults]
	}
	return summaries, nil
}

// SubmitRating はユーザーのゲストセッションでレーティングを送信する。
// セッション未取得の場合はオンデマンドで発行する。
// カタログが401でセッション期限切れを報告した場合は、
// 新しいセッションを発行してちょうど1回だけ再送する。
// 2回目も失敗した場合はエラーをそのまま伝播する（無限再発行はしない）。
func (c *Client) SubmitRating(ctx context.Context, ref model.MediaRef, userID string, value float64) error {
	if !ref.Type.Valid() {
		return model.NewInvalidMediaTypeError(ref.Type)
	}

	sessionID, err := c.sessions.Ensure(ctx, userID)
	if err != nil {
		return err
	}

	err = c.postRating(ctx, ref, sessionID, value)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.IsSessionExpired() {
		c.logger.Info("ゲストセッションの期限切れを検出しました。再発行して再送します",
			slog.String("user_id", userID),
			slog.String("media", ref.String()),
		)
		sessionID, err = c.sessions.Renew(ctx, userID)
		if err != nil {
			return err
		}
		return c.postRating(ctx, ref, sessionID, value)
	}
	return err
}

// postRating はレーティング送信リクエストを1回発行する。
func (c *Client) postRating(ctx context.Context, ref model.MediaRef, sessionID string, value float64) error {
	payload, err := json.Marshal(map[string]float64{"value": value})
	if err != nil {
		return fmt.Errorf("レーティングリクエストの構築に失敗しました: %w", err)
	}

	q := url.Values{}
	q.Set("guest_session_id", sessionID)

	_, err = c.dispatcher.Dispatch(ctx, "submit_rating", Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/%s/%d/rating", ref.Type, ref.ID),
		Query:  q,
		Body:   payload,
	})
	return err
}

// mapSeries はシリーズ詳細レスポンスを値オブジェクトへ射影する。
func (c *Client) mapSeries(resp *seriesDetailResponse) *model.Series {
	seasons := make(map[int]int, len(resp.Seasons))
	for _, s := range resp.Seasons {
		// シーズン0はスペシャル扱いのため視聴進捗の対象にしない
		if s.SeasonNumber < 1 {
			continue
		}
		seasons[s.SeasonNumber] = s.EpisodeCount
	}

	var latestAired model.EpisodeMarker
	if resp.LastEpisodeToAir != nil {
		latestAired = model.EpisodeMarker{
			Season:  resp.LastEpisodeToAir.SeasonNumber,
			Episode: resp.LastEpisodeToAir.EpisodeNumber,
		}
	}

	nextAirDate := ""
	if resp.NextEpisodeToAir != nil {
		nextAirDate = resp.NextEpisodeToAir.AirDate
	}

	return &model.Series{
		ID:           *resp.ID,
		Name:         c.sanitizer.Sanitize(resp.Name),
		Overview:     c.sanitizer.Sanitize(resp.Overview),
		VoteAverage:  resp.VoteAverage,
		PosterPath:   resp.PosterPath,
		Genres:       genreNames(resp.Genres),
		Seasons:      seasons,
		LatestAired:  latestAired,
		NextAirDate:  nextAirDate,
		FirstAirDate: resp.FirstAirDate,
	}
}

// mapSummaries は一覧レスポンスの行を値オブジェクトへ射影する。
// IDを持たない行は形状不一致として読み飛ばす。
func (c *Client) mapSummaries(items []summaryItem, mediaType model.MediaType) []model.MediaSummary {
	summaries := make([]model.MediaSummary, 0, len(items))
	for _, item := range items {
		if item.ID == nil {
			continue
		}
		title := item.Title
		if mediaType == model.MediaTypeSeries {
			title = item.Name
		}
		summaries = append(summaries, model.MediaSummary{
			Ref:         model.MediaRef{Type: mediaType, ID: *item.ID},
			Title:       c.sanitizer.Sanitize(title),
			Overview:    c.sanitizer.Sanitize(item.Overview),
			PosterPath:  item.PosterPath,
			VoteAverage: item.VoteAverage,
		})
	}
	return summaries
}

// genreNames はジャンルの名前だけを取り出す。
func genreNames(genres []genreItem) []string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}
