// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedview/internal/metrics"
	"github.com/hitoshi/feedview/internal/middleware"
)

//go:embed static
var staticFS embed.FS

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 記事
	ItemService ItemServiceInterface

	// メトリクス
	Gatherer prometheus.Gatherer

	// CookieSecure は表示設定CookieにSecure属性を付けるかどうか。
	CookieSecure bool
	// Now は現在時刻の取得関数。nilの場合はtime.Now。
	Now func() time.Time
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → RateLimit(General) → CORS(/apiのみ)
//
// /health と /metrics はレート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, r, http.StatusNotFound, notFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, methodNotAllowedError())
	})

	pageHandler := NewPageHandler(deps.ItemService, deps.Logger, deps.Now, deps.CookieSecure)
	itemHandler := NewItemHandler(deps.ItemService, deps.Logger, deps.Now)

	// --- 運用エンドポイント ---
	r.Get("/health", Health)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- 利用者向けエンドポイント ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", pageHandler.Index)
		r.Handle("/static/*", staticHandler())

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

			r.Get("/items", itemHandler.ListItems)
			// POST /api/refresh - 上流への取得を伴うため専用のレート制限を追加
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh", itemHandler.RefreshItems)
		})
	})

	return r
}

// staticHandler は埋め込みのCSS/JSを配信するハンドラーを返す。
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
