package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/feedview/internal/item"
	"github.com/hitoshi/feedview/internal/model"
)

func newTestPageHandler(svc ItemServiceInterface) *PageHandler {
	return NewPageHandler(svc, discardLogger(), fixedClock, true)
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestPageHandler_Index_DefaultListView(t *testing.T) {
	svc := &mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) { return sampleView(), nil },
	}
	h := newTestPageHandler(svc)

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/html; charset=utf-8")
	}

	body := w.Body.String()
	for _, want := range []string{
		`class="view-list"`,
		`data-theme="light"`,
		`<details class="entry" id="item-1">`,
		`<p>Hello <strong>world</strong></p>`,
		`title="May 20, 2024 at 11:00 AM"`,
		`>1 hour ago</time>`,
		`href="https://example.com/1"`,
		`(untitled)`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
	if strings.Contains(body, `class="grid"`) {
		t.Error("list view should not render the grid")
	}

	// 既定値のみの場合はCookieを書き込まない
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("cookies = %v, want none", w.Result().Cookies())
	}
}

func TestPageHandler_Index_GridViewFromQuery(t *testing.T) {
	svc := &mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) { return sampleView(), nil },
	}
	h := newTestPageHandler(svc)

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/?view=grid", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{
		`class="view-grid"`,
		`<article class="card" id="item-1">`,
		`src="https://example.com/thumb.png"`,
		`<p class="card-excerpt">Hello world</p>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body does not contain %q", want)
		}
	}
	// カード表示では本文HTMLを埋め込まない
	if strings.Contains(body, "<strong>world</strong>") {
		t.Error("grid view should not render content HTML")
	}

	c := findCookie(w.Result(), ViewCookieName)
	if c == nil {
		t.Fatal("expected view cookie to be set")
	}
	if c.Value != ViewGrid {
		t.Errorf("cookie value = %q, want %q", c.Value, ViewGrid)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("unexpected cookie attributes: %+v", c)
	}
}

func TestPageHandler_Index_PreferencesFromCookie(t *testing.T) {
	h := newTestPageHandler(&mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) { return sampleView(), nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ViewCookieName, Value: ViewGrid})
	req.AddCookie(&http.Cookie{Name: ThemeCookieName, Value: ThemeDark})
	w := httptest.NewRecorder()

	h.Index(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `class="view-grid"`) {
		t.Error("expected grid view from cookie")
	}
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Error("expected dark theme from cookie")
	}
	if !strings.Contains(body, "Light mode") {
		t.Error("expected toggle to light mode in dark theme")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("cookies should not be rewritten when preferences come from cookies")
	}
}

func TestPageHandler_Index_QueryOverridesCookie(t *testing.T) {
	h := newTestPageHandler(&mockItemService{})

	req := httptest.NewRequest(http.MethodGet, "/?theme=dark", nil)
	req.AddCookie(&http.Cookie{Name: ThemeCookieName, Value: ThemeLight})
	w := httptest.NewRecorder()

	h.Index(w, req)

	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Error("expected dark theme from query")
	}
	c := findCookie(w.Result(), ThemeCookieName)
	if c == nil || c.Value != ThemeDark {
		t.Errorf("theme cookie = %+v, want value %q", c, ThemeDark)
	}
}

func TestPageHandler_Index_InvalidCookieFallsBack(t *testing.T) {
	h := newTestPageHandler(&mockItemService{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ViewCookieName, Value: "table"})
	w := httptest.NewRecorder()

	h.Index(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `class="view-list"`) {
		t.Error("expected fallback to list view")
	}
}

func TestPageHandler_Index_InvalidPreferences(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode string
	}{
		{"不正な表示モード", "/?view=table", model.ErrCodeInvalidViewMode},
		{"空の表示モード", "/?view=", model.ErrCodeInvalidViewMode},
		{"不正なテーマ", "/?theme=blue", model.ErrCodeInvalidTheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockItemService{}
			h := newTestPageHandler(svc)

			w := httptest.NewRecorder()
			h.Index(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if !strings.Contains(w.Body.String(), `data-code="`+tt.wantCode+`"`) {
				t.Errorf("error page does not contain code %q", tt.wantCode)
			}
			if svc.listCalls != 0 {
				t.Errorf("List called %d times, want 0", svc.listCalls)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("invalid preferences must not be persisted")
			}
		})
	}
}

func TestPageHandler_Index_FeedUnavailable(t *testing.T) {
	h := newTestPageHandler(&mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) {
			return nil, model.NewFeedUnavailableError()
		},
	})

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/?view=grid", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	body := w.Body.String()
	if !strings.Contains(body, model.NewFeedUnavailableError().Action) {
		t.Error("error page should show the action")
	}
	// 有効な設定はエラーページにも反映する
	if !strings.Contains(body, `class="view-grid"`) {
		t.Error("expected grid view on error page")
	}
}

func TestPageHandler_Index_StaleAndEmpty(t *testing.T) {
	h := newTestPageHandler(&mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) {
			return &item.FeedView{Title: "Example Feed", Items: []item.DisplayItem{}, Stale: true}, nil
		},
	})

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	if !strings.Contains(body, "No items to display.") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(body, "could not be refreshed") {
		t.Error("expected stale notice")
	}
}

func TestPageHandler_Index_EscapesTitles(t *testing.T) {
	h := newTestPageHandler(&mockItemService{
		listFn: func(ctx context.Context, now time.Time) (*item.FeedView, error) {
			return &item.FeedView{
				Title: "<b>Feed</b>",
				Items: []item.DisplayItem{{ID: "item-x", Title: `<img src=x>`}},
			}, nil
		},
	})

	w := httptest.NewRecorder()
	h.Index(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	if strings.Contains(body, "<img src=x>") || strings.Contains(body, "<b>Feed</b>") {
		t.Error("titles must be HTML-escaped")
	}
	if !strings.Contains(body, "&lt;img src=x&gt;") {
		t.Error("expected escaped item title")
	}
}
