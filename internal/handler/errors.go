package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/feedview/internal/middleware"
	"github.com/hitoshi/feedview/internal/model"
)

// ErrCodeNotFound はルートが存在しない場合のエラーコード。
const ErrCodeNotFound = "NOT_FOUND"

// ErrCodeMethodNotAllowed はメソッドが許可されていない場合のエラーコード。
const ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

// resolveAPIError はサービス層のエラーをAPIErrorとHTTPステータスコードに変換する。
// APIError以外のエラーは内部エラーとして扱い、詳細はログのみに記録する。
func resolveAPIError(r *http.Request, logger *slog.Logger, err error) (int, *model.APIError) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return mapAPIErrorToHTTPStatus(apiErr), apiErr
	}

	logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	return http.StatusInternalServerError, middleware.InternalError()
}

// handleServiceError はサービス層から返されたエラーをJSONのエラーレスポンスとして書き込む。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, apiErr := resolveAPIError(r, logger, err)
	middleware.WriteErrorResponse(w, r, status, apiErr)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidViewMode, model.ErrCodeInvalidTheme, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeFetchFailed, model.ErrCodeParseFailed:
		return http.StatusBadGateway
	case model.ErrCodeFeedUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func notFoundError() *model.APIError {
	return &model.APIError{
		Code:     ErrCodeNotFound,
		Message:  "ページが見つかりません。",
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

func methodNotAllowedError() *model.APIError {
	return &model.APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "このメソッドは許可されていません。",
		Category: "validation",
		Action:   "GETまたはPOSTでアクセスしてください。",
	}
}
