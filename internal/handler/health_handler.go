package handler

import (
	"log/slog"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// Health はプロセスの生存確認に応答する。上流フィードやDBの状態には依存しない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, slog.Default(), http.StatusOK, healthResponse{Status: "ok"})
}
