package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
)

// newTestLogger はテスト用のJSONロガーを生成する。
func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// okHandler は200を返すだけのハンドラー。
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// requestFrom は指定したRemoteAddrからのGETリクエストを生成する。
func requestFrom(remoteAddr, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	return req
}
