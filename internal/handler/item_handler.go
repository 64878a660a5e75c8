package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/feedview/internal/item"
	"github.com/hitoshi/feedview/internal/middleware"
)

// ItemServiceInterface は記事ハンドラーとページハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// List は現在のフィードをnow時点の表示用に変換して返す。
	List(ctx context.Context, now time.Time) (*item.FeedView, error)
	// Refresh はフィードを再取得してnow時点の表示用に変換して返す。
	Refresh(ctx context.Context, now time.Time) (*item.FeedView, error)
}

// ItemHandler は記事一覧JSON APIのHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
	logger  *slog.Logger
	now     func() time.Time
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface, logger *slog.Logger, now func() time.Time) *ItemHandler {
	if now == nil {
		now = time.Now
	}
	return &ItemHandler{
		service: service,
		logger:  logger,
		now:     now,
	}
}

// ListItems は表示対象の記事一覧を返す。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.List(r.Context(), h.now())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, view)
}

// RefreshItems はフィードを強制的に再取得し、更新後の記事一覧を返す。
// 取得に失敗した場合でも直近の結果があればstale=trueで200を返す。
// POST /api/refresh
func (h *ItemHandler) RefreshItems(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Refresh(r.Context(), h.now())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, view)
}

// writeJSON はvをバッファにエンコードしてから書き込む。
// エンコードに失敗した場合はログに記録し、途中までのJSONを返さずに500を返す。
func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("failed to encode response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
