package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/securecookie"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// SessionCookie はセッションIDを署名付きCookieとして読み書きする。
// Cookieには不透明なIDのみを格納し、内容はサーバー側が正とする。
type SessionCookie struct {
	codec  *securecookie.SecureCookie
	maxAge int
	domain string
}

// NewSessionCookie はSessionCookieを生成する。maxAgeは秒で指定する。
func NewSessionCookie(secret string, maxAge int, domain string) *SessionCookie {
	codec := securecookie.New(deriveKey(secret, "session"), nil)
	codec.MaxAge(maxAge)
	return &SessionCookie{codec: codec, maxAge: maxAge, domain: domain}
}

// Write はセッションIDを署名してCookieに設定する。
func (c *SessionCookie) Write(w http.ResponseWriter, sessionID string) error {
	encoded, err := c.codec.Encode(SessionCookieName, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(encoded, c.maxAge))
	return nil
}

// Read はリクエストのCookieからセッションIDを取り出す。
// Cookieが無い、または署名が不正な場合は空文字を返す。
func (c *SessionCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	var sessionID string
	if err := c.codec.Decode(SessionCookieName, cookie.Value, &sessionID); err != nil {
		return ""
	}
	return sessionID
}

// Clear はセッションCookieを削除する。
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *SessionCookie) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// deriveKey は用途ごとに独立した32バイトの鍵を導出する。
func deriveKey(secret, purpose string) []byte {
	sum := sha256.Sum256([]byte(purpose + ":" + secret))
	return sum[:]
}
