package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/watchman/internal/middleware"
	"github.com/hitoshi/watchman/internal/model"
)

// WatchlistServiceInterface はウォッチリストハンドラーが必要とするサービスインターフェース。
// tracker.Serviceがそのまま実装する。
type WatchlistServiceInterface interface {
	AddMedia(ctx context.Context, userID string, ref model.MediaRef) error
	RemoveMedia(ctx context.Context, userID string, ref model.MediaRef) error
	MarkEpisodeViewed(ctx context.Context, userID string, seriesID, season, episode int) error
	RecomputeAll(ctx context.Context, userID string) error
	GetStatusBuckets(ctx context.Context, userID string) (*model.StatusBuckets, error)
	ListFollowed(ctx context.Context, userID string) ([]*model.WatchRecord, error)
}

// WatchlistHandler はウォッチリスト関連のHTTPハンドラー。
type WatchlistHandler struct {
	service WatchlistServiceInterface
}

// NewWatchlistHandler はWatchlistHandlerを生成する。
func NewWatchlistHandler(service WatchlistServiceInterface) *WatchlistHandler {
	return &WatchlistHandler{
		service: service,
	}
}

// addMediaRequest はフォロー追加のリクエストボディ。
type addMediaRequest struct {
	MediaType string `json:"media_type"`
	ID        int    `json:"id"`
}

// progressRequest は視聴位置更新のリクエストボディ。
type progressRequest struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// watchRecordResponse はフォロー中レコード1件のレスポンス。
type watchRecordResponse struct {
	MediaType  string   `json:"media_type"`
	ID         int      `json:"id"`
	LastViewed string   `json:"last_viewed,omitempty"`
	Status     string   `json:"status,omitempty"`
	Grade      *float64 `json:"grade,omitempty"`
}

// refResponse はステータス分類結果内の1作品。
type refResponse struct {
	MediaType string `json:"media_type"`
	ID        int    `json:"id"`
}

// statusBucketsResponse はステータス分類結果のレスポンス。
type statusBucketsResponse struct {
	NotUpToDate []refResponse `json:"not_up_to_date"`
	UpToDate    []refResponse `json:"up_to_date"`
	Finished    []refResponse `json:"finished"`
}

// Add は作品をウォッチリストに追加する。
// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディが不正です。",
			Category: "validation",
			Action:   "media_typeとidを含むJSONを送信してください。",
		})
		return
	}

	ref := model.MediaRef{Type: model.MediaType(req.MediaType), ID: req.ID}
	if err := h.service.AddMedia(r.Context(), userID, ref); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Remove は作品をウォッチリストから削除する。冪等。
// DELETE /api/watchlist/{type}/{id}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	mediaType := model.MediaType(chi.URLParam(r, "type"))
	if !mediaType.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMediaTypeError(mediaType))
		return
	}
	id, ok := parseIntParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveMedia(r.Context(), userID, model.MediaRef{Type: mediaType, ID: id}); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List はフォロー中の全作品を返す。
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	records, err := h.service.ListFollowed(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]watchRecordResponse, len(records))
	for i, record := range records {
		item := watchRecordResponse{
			MediaType: string(record.MediaType),
			ID:        record.ExternalID,
			Grade:     record.Grade,
		}
		if record.IsSeries() {
			item.LastViewed = record.LastViewed.String()
			item.Status = string(record.Status)
		}
		resp[i] = item
	}
	writeJSON(w, resp)
}

// GetStatus はフォロー中シリーズのステータス分類を返す。
// GET /api/watchlist/status
func (h *WatchlistHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	buckets, err := h.service.GetStatusBuckets(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, statusBucketsResponse{
		NotUpToDate: toRefResponses(buckets.NotUpToDate),
		UpToDate:    toRefResponses(buckets.UpToDate),
		Finished:    toRefResponses(buckets.Finished),
	})
}

// UpdateProgress はシリーズの視聴位置を更新する。
// PUT /api/watchlist/tv/{id}/progress
func (h *WatchlistHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	seriesID, ok := parseIntParam(w, r, "id")
	if !ok {
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディが不正です。",
			Category: "validation",
			Action:   "seasonとepisodeを含むJSONを送信してください。",
		})
		return
	}

	if err := h.service.MarkEpisodeViewed(r.Context(), userID, seriesID, req.Season, req.Episode); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Recompute はフォロー中全シリーズのステータスを再計算する。
// POST /api/watchlist/recompute
func (h *WatchlistHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.RecomputeAll(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toRefResponses(refs []model.MediaRef) []refResponse {
	resp := make([]refResponse, len(refs))
	for i, ref := range refs {
		resp[i] = refResponse{MediaType: string(ref.Type), ID: ref.ID}
	}
	return resp
}
