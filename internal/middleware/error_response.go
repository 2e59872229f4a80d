package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponseBody はエラーレスポンスの統一フォーマット。
// 全てのエラーは {"error": "<message>"} の形で返す。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// クライアントに返す定型メッセージ
const (
	MessageNotAuthorized      = "Not authorized"
	MessageInvalidToken       = "Invalid token"
	MessageServiceUnavailable = "Service unavailable"
	MessageServerError        = "Server error"
	MessageTooManyRequests    = "Too many requests"
	MessageInvalidCSRFToken   = "Invalid CSRF token"
)

// WriteJSON は任意の値をJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse は統一フォーマットでエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponseBody{Error: message})
}

// WriteInternalServerError は500エラーを書き込む。内部の詳細はクライアントに返さない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, MessageServerError)
}
