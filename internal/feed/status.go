package feed

import "fmt"

// StatusClass はHTTPステータスコードに基づく取得結果の分類。
type StatusClass int

const (
	// StatusOK は取得成功（200）。
	StatusOK StatusClass = iota
	// StatusNotModified はコンテンツ未変更（304）。
	StatusNotModified
	// StatusStop は再試行しても回復しないステータス（404/410/401/403）。
	StatusStop
	// StatusBackoff は時間をおいて再試行するステータス（429/5xx）。
	StatusBackoff
	// StatusUnknown は未知のステータスコード。
	StatusUnknown
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode == 200:
		return StatusOK
	case statusCode == 304:
		return StatusNotModified
	case statusCode == 404 || statusCode == 410:
		return StatusStop
	case statusCode == 401 || statusCode == 403:
		return StatusStop
	case statusCode == 429:
		return StatusBackoff
	case statusCode >= 500:
		return StatusBackoff
	default:
		return StatusUnknown
	}
}

// StatusError は上流フィードが成功以外のステータスを返した場合のエラー。
type StatusError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}
