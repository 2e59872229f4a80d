package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want RequestClass
	}{
		{"/api", APIRequest},
		{"/api/entries", APIRequest},
		{"/api/auth/login", APIRequest},
		{"/apiary", PageRequest},
		{"/app", PageRequest},
		{"/login", PageRequest},
		{"/", PageRequest},
	}

	for _, tt := range tests {
		if got := ClassifyPath(tt.path); got != tt.want {
			t.Errorf("ClassifyPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// TestClassifyMiddleware_StoresClassOnce はルーティングでパスが変わっても最初の判定が使われることを検証する。
func TestClassifyMiddleware_StoresClassOnce(t *testing.T) {
	var got RequestClass
	handler := NewClassifyMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = "/app"
		got = RequestClassFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != APIRequest {
		t.Errorf("class = %v, want %v", got, APIRequest)
	}
}

func TestRequestClassFromRequest_FallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if got := RequestClassFromRequest(req); got != APIRequest {
		t.Errorf("class = %v, want %v", got, APIRequest)
	}
}
