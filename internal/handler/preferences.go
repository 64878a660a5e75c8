package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/feedview/internal/model"
)

// 表示モード
const (
	ViewList = "list"
	ViewGrid = "grid"
)

// テーマ
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// 表示設定を保存するCookie名
const (
	ViewCookieName  = "view"
	ThemeCookieName = "theme"
)

// preferenceMaxAge は表示設定Cookieの有効期間。
const preferenceMaxAge = 365 * 24 * time.Hour

// Preferences はページ表示の設定。
type Preferences struct {
	View  string
	Theme string
}

// preference は1つの表示設定の解決ルール。
type preference struct {
	param    string
	cookie   string
	fallback string
	allowed  []string
	invalid  func(string) *model.APIError
}

var (
	viewPreference = preference{
		param:    "view",
		cookie:   ViewCookieName,
		fallback: ViewList,
		allowed:  []string{ViewList, ViewGrid},
		invalid:  model.NewInvalidViewModeError,
	}
	themePreference = preference{
		param:    "theme",
		cookie:   ThemeCookieName,
		fallback: ThemeLight,
		allowed:  []string{ThemeLight, ThemeDark},
		invalid:  model.NewInvalidThemeError,
	}
)

func (p preference) valid(v string) bool {
	for _, a := range p.allowed {
		if v == a {
			return true
		}
	}
	return false
}

// resolve はクエリパラメータ、Cookie、既定値の順に設定値を決定する。
// クエリパラメータで指定された値は検証し、不正ならAPIErrorを返す。
// Cookieの不正値は無視して既定値を使う。
// fromQueryはクエリパラメータで指定された値を採用したかどうか。
func (p preference) resolve(r *http.Request) (value string, fromQuery bool, err *model.APIError) {
	if q := r.URL.Query(); q.Has(p.param) {
		v := q.Get(p.param)
		if !p.valid(v) {
			return "", false, p.invalid(v)
		}
		return v, true, nil
	}
	if c, cerr := r.Cookie(p.cookie); cerr == nil && p.valid(c.Value) {
		return c.Value, false, nil
	}
	return p.fallback, false, nil
}

// resolvePreferences はリクエストから表示設定を決定し、クエリで変更された設定をCookieに保存する。
func resolvePreferences(w http.ResponseWriter, r *http.Request, cookieSecure bool) (Preferences, *model.APIError) {
	var prefs Preferences

	view, viewChanged, apiErr := viewPreference.resolve(r)
	if apiErr != nil {
		return prefs, apiErr
	}
	theme, themeChanged, apiErr := themePreference.resolve(r)
	if apiErr != nil {
		return prefs, apiErr
	}

	if viewChanged {
		setPreferenceCookie(w, ViewCookieName, view, cookieSecure)
	}
	if themeChanged {
		setPreferenceCookie(w, ThemeCookieName, theme, cookieSecure)
	}

	prefs.View = view
	prefs.Theme = theme
	return prefs, nil
}

func setPreferenceCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(preferenceMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
