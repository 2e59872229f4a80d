package middleware

import (
	"context"
	"net/http"
	"strings"
)

// RequestClass は認証失敗時の応答形式を決めるリクエスト種別。
type RequestClass int

const (
	// PageRequest はブラウザのページ遷移。失敗時はログイン画面へリダイレクトする。
	PageRequest RequestClass = iota
	// APIRequest はJSON API呼び出し。失敗時はJSONエラーを返す。
	APIRequest
)

// String はログ出力用の名前を返す。
func (c RequestClass) String() string {
	if c == APIRequest {
		return "api"
	}
	return "page"
}

const requestClassContextKey contextKey = "request_class"

// ClassifyPath はパスからリクエスト種別を判定する。
// /api 配下はAPI、それ以外はページとして扱う。
func ClassifyPath(path string) RequestClass {
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		return APIRequest
	}
	return PageRequest
}

// NewClassifyMiddleware はリクエスト種別を1度だけ判定してコンテキストに格納するミドルウェアを返す。
func NewClassifyMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), requestClassContextKey, ClassifyPath(r.URL.Path))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestClassFromRequest はコンテキストのリクエスト種別を返す。
// 未設定の場合はパスから判定する。
func RequestClassFromRequest(r *http.Request) RequestClass {
	if c, ok := r.Context().Value(requestClassContextKey).(RequestClass); ok {
		return c
	}
	return ClassifyPath(r.URL.Path)
}
