package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/feedview/internal/item"
	"github.com/hitoshi/feedview/internal/middleware"
	"github.com/hitoshi/feedview/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplates はHTMLページのテンプレート集合。
var pageTemplates = template.Must(
	template.New("").Funcs(template.FuncMap{
		// contentHTML は安全性判定を通過した本文をエスケープせずに埋め込む
		"contentHTML": func(s string) template.HTML { return template.HTML(s) },
		"toggleQuery": toggleQuery,
	}).ParseFS(templateFS, "templates/*.html"),
)

// pageData はindex.htmlに渡すデータ。
type pageData struct {
	Feed  *item.FeedView
	Prefs Preferences
}

// errorPageData はerror.htmlに渡すデータ。
type errorPageData struct {
	Status    int
	Error     *model.APIError
	RequestID string
	Prefs     Preferences
}

// PageHandler はフィード一覧のHTMLページを返すハンドラー。
type PageHandler struct {
	service      ItemServiceInterface
	logger       *slog.Logger
	now          func() time.Time
	cookieSecure bool
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(service ItemServiceInterface, logger *slog.Logger, now func() time.Time, cookieSecure bool) *PageHandler {
	if now == nil {
		now = time.Now
	}
	return &PageHandler{
		service:      service,
		logger:       logger,
		now:          now,
		cookieSecure: cookieSecure,
	}
}

// Index はフィード一覧ページを描画する。
// GET /?view=list|grid&theme=light|dark
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	prefs, apiErr := resolvePreferences(w, r, h.cookieSecure)
	if apiErr != nil {
		// 不正な設定値の場合は既定の見た目でエラーページを表示する
		h.renderError(w, r, http.StatusBadRequest, apiErr, Preferences{View: ViewList, Theme: ThemeLight})
		return
	}

	view, err := h.service.List(r.Context(), h.now())
	if err != nil {
		status, apiErr := resolveAPIError(r, h.logger, err)
		h.renderError(w, r, status, apiErr, prefs)
		return
	}

	h.render(w, r, http.StatusOK, "index.html", pageData{Feed: view, Prefs: prefs})
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError, prefs Preferences) {
	h.render(w, r, status, "error.html", errorPageData{
		Status:    status,
		Error:     apiErr,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		Prefs:     prefs,
	})
}

// render はテンプレートをバッファに描画してからレスポンスに書き込む。
// 描画に失敗した場合は途中までのHTMLを返さずに500を返す。
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// toggleQuery は表示モード・テーマ切り替えリンクのクエリ文字列を返す。
func toggleQuery(key, value string) template.URL {
	q := url.Values{}
	q.Set(key, value)
	return template.URL("/?" + q.Encode())
}
