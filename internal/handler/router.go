package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/watchman/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なDB疎通確認のインターフェース。
// *sql.DBがそのまま実装する。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カタログ閲覧
	CatalogService CatalogServiceInterface

	// ウォッチリスト・評価
	WatchlistService WatchlistServiceInterface
	RatingService    RatingServiceInterface

	// 通知
	NotificationService NotificationServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → SecurityHeadersMiddleware → CORSMiddleware
//	→ SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と運用ルート（/health、/metrics）はセッション認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	watchlistHandler := NewWatchlistHandler(deps.WatchlistService)
	ratingHandler := NewRatingHandler(deps.RatingService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプ
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// カタログ閲覧
		r.Route("/api/catalog", func(r chi.Router) {
			r.Get("/search", catalogHandler.Search)

			r.Route("/{type}", func(r chi.Router) {
				r.Get("/popular", catalogHandler.GetPopular)
				r.Get("/top-rated", catalogHandler.GetTopRated)
				r.Get("/genres", catalogHandler.GetGenres)
				r.Get("/discover", catalogHandler.Discover)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", catalogHandler.GetDetail)
					r.Get("/similar", catalogHandler.GetSimilar)
					r.Get("/seasons/{season}/episodes/{episode}", catalogHandler.GetEpisode)

					// POST /api/catalog/{type}/{id}/rating - 評価送信（評価専用レート制限を追加）
					r.With(deps.RateLimiter.RatingMiddleware()).Post("/rating", ratingHandler.Rate)
				})
			})
		})

		// ウォッチリスト管理
		r.Route("/api/watchlist", func(r chi.Router) {
			r.Post("/", watchlistHandler.Add)
			r.Get("/", watchlistHandler.List)
			r.Get("/status", watchlistHandler.GetStatus)
			r.Post("/recompute", watchlistHandler.Recompute)
			r.Put("/tv/{id}/progress", watchlistHandler.UpdateProgress)
			r.Delete("/{type}/{id}", watchlistHandler.Remove)
		})

		// 通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/count", notificationHandler.Count)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
