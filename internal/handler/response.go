// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/medialog/internal/middleware"
	"github.com/hitoshi/medialog/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 64 << 10

// okResponse は {"ok": true} のレスポンス。
type okResponse struct {
	OK bool `json:"ok"`
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
// 空ボディはゼロ値のまま成功とし、必須項目の判定はサービス層に任せる。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingFields, model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeEmailExists:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeEntryNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// principalOrUnauthorized はコンテキストのPrincipalを返す。
// 認証ミドルウェアの内側でのみ呼ばれるため、欠落時は401を書き込んでnilを返す。
func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) *model.Principal {
	p, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, middleware.MessageNotAuthorized)
		return nil
	}
	return p
}
