package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestGoogleOAuthProvider_GetLoginURL は認証URLの構成を検証する。
func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-123",
		RedirectURL: "https://example.com/callback",
	})

	loginURL := provider.GetLoginURL("state-abc")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}

	if !strings.HasPrefix(loginURL, defaultGoogleAuthURL) {
		t.Errorf("login URL should start with %q, got %q", defaultGoogleAuthURL, loginURL)
	}

	query := parsed.Query()
	if query.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q, want %q", query.Get("client_id"), "client-123")
	}
	if query.Get("state") != "state-abc" {
		t.Errorf("state = %q, want %q", query.Get("state"), "state-abc")
	}
	if !strings.Contains(query.Get("scope"), "email") {
		t.Errorf("scope should contain email, got %q", query.Get("scope"))
	}
}

// TestGoogleOAuthProvider_ExchangeCode はコード交換とユーザー情報取得の
// 一連のフローを検証する。
func TestGoogleOAuthProvider_ExchangeCode(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.PostFormValue("code") != "auth-code" {
			t.Errorf("code = %q, want %q", r.PostFormValue("code"), "auth-code")
		}
		if r.PostFormValue("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", r.PostFormValue("grant_type"), "authorization_code")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-xyz",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer access-token-xyz" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer access-token-xyz")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sub":   "google-sub-42",
			"email": "user@example.com",
			"name":  "Test User",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	info, err := provider.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}

	if info.ProviderUserID != "google-sub-42" {
		t.Errorf("ProviderUserID = %q, want %q", info.ProviderUserID, "google-sub-42")
	}
	if info.Email != "user@example.com" {
		t.Errorf("Email = %q, want %q", info.Email, "user@example.com")
	}
	if info.Provider != "google" {
		t.Errorf("Provider = %q, want %q", info.Provider, "google")
	}
}

// TestGoogleOAuthProvider_ExchangeCode_TokenError はトークン交換失敗時の
// エラー処理を検証する。
func TestGoogleOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "expired-code"); err == nil {
		t.Error("expected error for failed token exchange")
	}
}

// TestGoogleOAuthProvider_ExchangeCode_EmptySub はsubが空のユーザー情報を
// 拒否することを検証する。
func TestGoogleOAuthProvider_ExchangeCode_EmptySub(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token"})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"email": "user@example.com"})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Error("expected error for user info without sub")
	}
}
