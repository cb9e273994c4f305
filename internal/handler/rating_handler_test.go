package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/watchman/internal/catalog"
	"github.com/hitoshi/watchman/internal/model"
)

// mockRatingService はRatingServiceInterfaceのモック実装。
type mockRatingService struct {
	rateMediaFn func(ctx context.Context, userID string, ref model.MediaRef, value float64) error
}

func (m *mockRatingService) RateMedia(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
	if m.rateMediaFn != nil {
		return m.rateMediaFn(ctx, userID, ref, value)
	}
	return nil
}

func newRatingRequest(t *testing.T, mediaType, id, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/"+mediaType+"/"+id+"/rating", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "type", mediaType)
	req = withChiURLParam(req, "id", id)
	return req
}

func TestRatingHandler_Rate_Success(t *testing.T) {
	svc := &mockRatingService{
		rateMediaFn: func(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if ref.Type != model.MediaTypeSeries || ref.ID != 1399 {
				t.Errorf("ref = %v, want tv/1399", ref)
			}
			if value != 8.5 {
				t.Errorf("value = %v, want 8.5", value)
			}
			return nil
		},
	}

	h := NewRatingHandler(svc)
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "tv", "1399", `{"value": 8.5}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestRatingHandler_Rate_InvalidValue(t *testing.T) {
	svc := &mockRatingService{
		rateMediaFn: func(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
			return model.NewInvalidRatingError(value)
		},
	}

	h := NewRatingHandler(svc)
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "tv", "1399", `{"value": 7.3}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeInvalidRating {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeInvalidRating)
	}
}

// フォローしていない作品への評価は409を返す
func TestRatingHandler_Rate_NotFollowed_Returns409(t *testing.T) {
	svc := &mockRatingService{
		rateMediaFn: func(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
			return model.NewNotFollowedError(ref)
		},
	}

	h := NewRatingHandler(svc)
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "movie", "550", `{"value": 9.0}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	result := parseAPIErrorResponse(t, w)
	if result["code"] != model.ErrCodeNotFollowed {
		t.Errorf("code = %q, want %q", result["code"], model.ErrCodeNotFollowed)
	}
}

func TestRatingHandler_Rate_Throttled_Returns503(t *testing.T) {
	svc := &mockRatingService{
		rateMediaFn: func(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
			return &catalog.ThrottledError{Attempts: 5}
		},
	}

	h := NewRatingHandler(svc)
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "tv", "1399", `{"value": 8.0}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRatingHandler_Rate_InvalidMediaType(t *testing.T) {
	h := NewRatingHandler(&mockRatingService{})
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "book", "1", `{"value": 8.0}`))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRatingHandler_Rate_InvalidJSON(t *testing.T) {
	h := NewRatingHandler(&mockRatingService{})
	w := httptest.NewRecorder()

	h.Rate(w, newRatingRequest(t, "tv", "1399", `{invalid`))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRatingHandler_Rate_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewRatingHandler(&mockRatingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/catalog/tv/1399/rating", bytes.NewBufferString(`{"value": 8.0}`))
	req = withChiURLParam(req, "type", "tv")
	req = withChiURLParam(req, "id", "1399")
	w := httptest.NewRecorder()

	h.Rate(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
