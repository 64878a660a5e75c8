package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedview/internal/item"
	"github.com/hitoshi/feedview/internal/middleware"
)

// --- モック定義 ---

// mockItemService はItemServiceInterfaceのモック実装。
type mockItemService struct {
	listFn    func(ctx context.Context, now time.Time) (*item.FeedView, error)
	refreshFn func(ctx context.Context, now time.Time) (*item.FeedView, error)

	listCalls    int
	refreshCalls int
}

func (m *mockItemService) List(ctx context.Context, now time.Time) (*item.FeedView, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, now)
	}
	return &item.FeedView{Title: "Example Feed", Items: []item.DisplayItem{}}, nil
}

func (m *mockItemService) Refresh(ctx context.Context, now time.Time) (*item.FeedView, error) {
	m.refreshCalls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, now)
	}
	return &item.FeedView{Title: "Example Feed", Items: []item.DisplayItem{}}, nil
}

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// sampleView はテスト用の表示データ。
func sampleView() *item.FeedView {
	return &item.FeedView{
		Title:     "Example Feed",
		Link:      "https://example.com/",
		FetchedAt: fixedNow,
		Items: []item.DisplayItem{
			{
				ID:           "item-1",
				Title:        "First post",
				Link:         "https://example.com/1",
				Published:    "2024-05-20T11:00:00Z",
				RelativeTime: "1 hour ago",
				AbsoluteTime: "May 20, 2024 at 11:00 AM",
				Excerpt:      "Hello world",
				Thumbnail:    "https://example.com/thumb.png",
				ContentHTML:  "<p>Hello <strong>world</strong></p>",
			},
			{
				ID:          "item-2",
				Title:       "(untitled)",
				ContentHTML: "",
			},
		},
	}
}

// newTestRouter はテスト用のルーターを生成する。
func newTestRouter(t *testing.T, svc ItemServiceInterface, rlCfg *middleware.RateLimiterConfig) http.Handler {
	t.Helper()

	cfg := middleware.DefaultRateLimiterConfig(1000)
	cfg.RefreshRate = 100
	cfg.RefreshBurst = 100
	if rlCfg != nil {
		cfg = *rlCfg
	}
	rl := middleware.NewRateLimiter(cfg, discardLogger())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "https://app.example.com",
		RateLimiter:       rl,
		ItemService:       svc,
		Gatherer:          prometheus.NewRegistry(),
		Now:               fixedClock,
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
