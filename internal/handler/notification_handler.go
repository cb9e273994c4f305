package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/watchman/internal/middleware"
	"github.com/hitoshi/watchman/internal/notification"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	GetNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	GetNotificationCount(ctx context.Context, userID string) (int, error)
}

// NotificationHandler は未消化エピソード通知のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		service: service,
	}
}

// notificationResponse は通知1件のレスポンス。
type notificationResponse struct {
	MediaType string `json:"media_type"`
	ID        int    `json:"id"`
	Name      string `json:"name"`
}

// notificationCountResponse は通知件数のレスポンス。
type notificationCountResponse struct {
	Count int `json:"count"`
}

// List は未視聴エピソードのあるシリーズの通知一覧を返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	notifications, err := h.service.GetNotifications(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]notificationResponse, len(notifications))
	for i, n := range notifications {
		resp[i] = notificationResponse{
			MediaType: string(n.Ref.Type),
			ID:        n.Ref.ID,
			Name:      n.Name,
		}
	}
	writeJSON(w, resp)
}

// Count は通知件数のみを返す。カタログへの名前解決は行わない軽量版。
// GET /api/notifications/count
func (h *NotificationHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	count, err := h.service.GetNotificationCount(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, notificationCountResponse{Count: count})
}
