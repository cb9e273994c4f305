package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/watchman/internal/middleware"
	"github.com/hitoshi/watchman/internal/model"
)

// RatingServiceInterface は評価ハンドラーが必要とするサービスインターフェース。
type RatingServiceInterface interface {
	RateMedia(ctx context.Context, userID string, ref model.MediaRef, value float64) error
}

// RatingHandler は作品評価のHTTPハンドラー。
// 評価はカタログへの書き込みを伴うため、専用のレートリミットレーンで保護される。
type RatingHandler struct {
	service RatingServiceInterface
}

// NewRatingHandler はRatingHandlerを生成する。
func NewRatingHandler(service RatingServiceInterface) *RatingHandler {
	return &RatingHandler{
		service: service,
	}
}

// rateRequest は評価送信のリクエストボディ。
type rateRequest struct {
	Value float64 `json:"value"`
}

// Rate はフォロー中の作品に評価を送信する。
// POST /api/catalog/{type}/{id}/rating
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
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

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディが不正です。",
			Category: "validation",
			Action:   "valueを含むJSONを送信してください。",
		})
		return
	}

	ref := model.MediaRef{Type: mediaType, ID: id}
	if err := h.service.RateMedia(r.Context(), userID, ref, req.Value); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
