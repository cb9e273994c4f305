// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/watchman/internal/catalog"
	"github.com/hitoshi/watchman/internal/model"
)

// apiErrorResponse はAPIエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorized は認証エラーの統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// カタログゲートウェイの型付きエラー（リトライ上限・到達不能）もここで変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	var throttled *catalog.ThrottledError
	if errors.As(err, &throttled) {
		slog.Warn("catalog request throttled", slog.Int("attempts", throttled.Attempts))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewCatalogThrottledError())
		return
	}

	var transport *catalog.TransportError
	if errors.As(err, &transport) {
		slog.Error("catalog unreachable", slog.String("error", transport.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewCatalogUnavailableError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidMediaType, model.ErrCodeInvalidEpisode,
		model.ErrCodeInvalidRating, model.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case model.ErrCodeMediaNotFound, model.ErrCodeEpisodeNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotFollowed:
		return http.StatusConflict
	case model.ErrCodeCatalogThrottled:
		return http.StatusServiceUnavailable
	case model.ErrCodeCatalogUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
