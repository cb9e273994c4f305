package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/watchman/internal/model"
)

// CatalogServiceInterface はカタログ閲覧ハンドラーが必要とするサービスインターフェース。
// catalog.Clientがそのまま実装する。
type CatalogServiceInterface interface {
	GetSeries(ctx context.Context, id int) (*model.Series, error)
	GetMovie(ctx context.Context, id int) (*model.Movie, error)
	GetPopular(ctx context.Context, mediaType model.MediaType, page int) (*model.PagedSummaries, error)
	GetTopRated(ctx context.Context, mediaType model.MediaType, page int) (*model.PagedSummaries, error)
	Search(ctx context.Context, query string, page int) (*model.SearchResults, error)
	GetGenres(ctx context.Context, mediaType model.MediaType) ([]model.Genre, error)
	Discover(ctx context.Context, mediaType model.MediaType, genreID, page int) (*model.PagedSummaries, error)
	GetEpisode(ctx context.Context, seriesID, season, episode int) (*model.Episode, error)
	GetSimilar(ctx context.Context, ref model.MediaRef) ([]model.MediaSummary, error)
}

// CatalogHandler はカタログ閲覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{
		service: service,
	}
}

// --- レスポンス型 ---

// summaryResponse は一覧系エンドポイントの1作品。
type summaryResponse struct {
	MediaType   string  `json:"media_type"`
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path,omitempty"`
	VoteAverage float64 `json:"vote_average"`
}

// pagedResponse はページネーション付きの一覧レスポンス。
type pagedResponse struct {
	Results    []summaryResponse `json:"results"`
	TotalPages int               `json:"total_pages"`
}

// searchResponse はシリーズと映画の同時検索のレスポンス。
type searchResponse struct {
	Series     []summaryResponse `json:"series"`
	Movies     []summaryResponse `json:"movies"`
	TotalPages int               `json:"total_pages"`
}

// seriesResponse はシリーズ詳細のレスポンス。
type seriesResponse struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Overview     string         `json:"overview"`
	VoteAverage  float64        `json:"vote_average"`
	PosterPath   string         `json:"poster_path,omitempty"`
	Genres       []string       `json:"genres"`
	Seasons      map[string]int `json:"seasons"`
	LatestAired  string         `json:"latest_aired"`
	NextAirDate  string         `json:"next_air_date,omitempty"`
	FirstAirDate string         `json:"first_air_date,omitempty"`
}

// movieResponse は映画詳細のレスポンス。
type movieResponse struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	VoteAverage float64  `json:"vote_average"`
	PosterPath  string   `json:"poster_path,omitempty"`
	Genres      []string `json:"genres"`
	ReleaseDate string   `json:"release_date,omitempty"`
}

// episodeResponse はエピソード詳細のレスポンス。
type episodeResponse struct {
	Code        string         `json:"code"`
	SeriesID    int            `json:"series_id"`
	Name        string         `json:"name"`
	Overview    string         `json:"overview"`
	VoteAverage float64        `json:"vote_average"`
	StillPath   string         `json:"still_path,omitempty"`
	Season      int            `json:"season"`
	Episode     int            `json:"episode"`
	AirDate     string         `json:"air_date,omitempty"`
	GuestStars  []castResponse `json:"guest_stars"`
}

// castResponse はゲスト出演者1名。
type castResponse struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

// genreResponse はジャンル1件。
type genreResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// --- ハンドラー ---

// GetDetail は作品詳細を取得する。
// GET /api/catalog/{type}/{id}
func (h *CatalogHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	mediaType := model.MediaType(chi.URLParam(r, "type"))
	if !mediaType.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMediaTypeError(mediaType))
		return
	}

	id, ok := parseIntParam(w, r, "id")
	if !ok {
		return
	}
	ref := model.MediaRef{Type: mediaType, ID: id}

	if mediaType == model.MediaTypeSeries {
		series, err := h.service.GetSeries(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if series == nil {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewMediaNotFoundError(ref))
			return
		}
		writeJSON(w, toSeriesResponse(series))
		return
	}

	movie, err := h.service.GetMovie(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if movie == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMediaNotFoundError(ref))
		return
	}
	writeJSON(w, toMovieResponse(movie))
}

// GetPopular は人気作品の一覧を取得する。
// GET /api/catalog/{type}/popular?page=N
func (h *CatalogHandler) GetPopular(w http.ResponseWriter, r *http.Request) {
	h.pagedList(w, r, h.service.GetPopular)
}

// GetTopRated は高評価作品の一覧を取得する。
// GET /api/catalog/{type}/top-rated?page=N
func (h *CatalogHandler) GetTopRated(w http.ResponseWriter, r *http.Request) {
	h.pagedList(w, r, h.service.GetTopRated)
}

// pagedList は人気・高評価一覧に共通のページング付き取得処理。
func (h *CatalogHandler) pagedList(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, mediaType model.MediaType, page int) (*model.PagedSummaries, error)) {
	mediaType := model.MediaType(chi.URLParam(r, "type"))

	page, ok := parsePageQuery(w, r)
	if !ok {
		return
	}

	result, err := fetch(r.Context(), mediaType, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, pagedResponse{
		Results:    toSummaryResponses(result.Results),
		TotalPages: result.TotalPages,
	})
}

// Search はシリーズと映画を同時検索する。
// GET /api/catalog/search?q=query&page=N
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "検索クエリが指定されていません。",
			Category: "validation",
			Action:   "qパラメータに検索語を指定してください。",
		})
		return
	}

	page, ok := parsePageQuery(w, r)
	if !ok {
		return
	}

	results, err := h.service.Search(r.Context(), query, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, searchResponse{
		Series:     toSummaryResponses(results.Series),
		Movies:     toSummaryResponses(results.Movies),
		TotalPages: results.TotalPages,
	})
}

// GetGenres はメディア種別のジャンル一覧を取得する。
// GET /api/catalog/{type}/genres
func (h *CatalogHandler) GetGenres(w http.ResponseWriter, r *http.Request) {
	mediaType := model.MediaType(chi.URLParam(r, "type"))

	genres, err := h.service.GetGenres(r.Context(), mediaType)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]genreResponse, len(genres))
	for i, g := range genres {
		resp[i] = genreResponse{ID: g.ID, Name: g.Name}
	}
	writeJSON(w, resp)
}

// Discover はジャンル指定で作品を発見する。
// GET /api/catalog/{type}/discover?genre_id=N&page=N
func (h *CatalogHandler) Discover(w http.ResponseWriter, r *http.Request) {
	mediaType := model.MediaType(chi.URLParam(r, "type"))

	genreID, err := strconv.Atoi(r.URL.Query().Get("genre_id"))
	if err != nil || genreID < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ジャンルIDが不正です。",
			Category: "validation",
			Action:   "genre_idパラメータに正の整数を指定してください。",
		})
		return
	}

	page, ok := parsePageQuery(w, r)
	if !ok {
		return
	}

	result, err := h.service.Discover(r.Context(), mediaType, genreID, page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, pagedResponse{
		Results:    toSummaryResponses(result.Results),
		TotalPages: result.TotalPages,
	})
}

// GetEpisode はエピソード詳細を取得する。
// GET /api/catalog/tv/{id}/seasons/{season}/episodes/{episode}
func (h *CatalogHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	seriesID, ok := parseIntParam(w, r, "id")
	if !ok {
		return
	}
	season, ok := parseIntParam(w, r, "season")
	if !ok {
		return
	}
	episode, ok := parseIntParam(w, r, "episode")
	if !ok {
		return
	}

	ep, err := h.service.GetEpisode(r.Context(), seriesID, season, episode)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ep == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewEpisodeNotFoundError(seriesID, season, episode))
		return
	}

	guests := make([]castResponse, len(ep.GuestStars))
	for i, g := range ep.GuestStars {
		guests[i] = castResponse{Name: g.Name, Character: g.Character}
	}

	writeJSON(w, episodeResponse{
		Code:        ep.Code,
		SeriesID:    ep.SeriesID,
		Name:        ep.Name,
		Overview:    ep.Overview,
		VoteAverage: ep.VoteAverage,
		StillPath:   ep.StillPath,
		Season:      ep.Season,
		Episode:     ep.Episode,
		AirDate:     ep.AirDate,
		GuestStars:  guests,
	})
}

// GetSimilar は類似作品の一覧を取得する（最大12件）。
// GET /api/catalog/{type}/{id}/similar
func (h *CatalogHandler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	mediaType := model.MediaType(chi.URLParam(r, "type"))
	if !mediaType.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMediaTypeError(mediaType))
		return
	}

	id, ok := parseIntParam(w, r, "id")
	if !ok {
		return
	}

	similar, err := h.service.GetSimilar(r.Context(), model.MediaRef{Type: mediaType, ID: id})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, toSummaryResponses(similar))
}

// --- 変換・パースヘルパー ---

func toSummaryResponses(summaries []model.MediaSummary) []summaryResponse {
	resp := make([]summaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = summaryResponse{
			MediaType:   string(s.Ref.Type),
			ID:          s.Ref.ID,
			Title:       s.Title,
			Overview:    s.Overview,
			PosterPath:  s.PosterPath,
			VoteAverage: s.VoteAverage,
		}
	}
	return resp
}

func toSeriesResponse(series *model.Series) seriesResponse {
	seasons := make(map[string]int, len(series.Seasons))
	for number, count := range series.Seasons {
		seasons[strconv.Itoa(number)] = count
	}
	return seriesResponse{
		ID:           series.ID,
		Name:         series.Name,
		Overview:     series.Overview,
		VoteAverage:  series.VoteAverage,
		PosterPath:   series.PosterPath,
		Genres:       series.Genres,
		Seasons:      seasons,
		LatestAired:  series.LatestAired.String(),
		NextAirDate:  series.NextAirDate,
		FirstAirDate: series.FirstAirDate,
	}
}

func toMovieResponse(movie *model.Movie) movieResponse {
	return movieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		Overview:    movie.Overview,
		VoteAverage: movie.VoteAverage,
		PosterPath:  movie.PosterPath,
		Genres:      movie.Genres,
		ReleaseDate: movie.ReleaseDate,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// parseIntParam はURLパラメータを正の整数としてパースする。
// 不正な場合はエラーレスポンスを書き込みfalseを返す。
func parseIntParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "URLパラメータが不正です: " + name,
			Category: "validation",
			Action:   "正の整数を指定してください。",
		})
		return 0, false
	}
	return value, true
}

// parsePageQuery はpageクエリパラメータをパースする。省略時は1。
// 不正な場合はエラーレスポンスを書き込みfalseを返す。
func parsePageQuery(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPageError(page))
		return 0, false
	}
	return page, true
}
