package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
)

// Audience はログインフローが発行する資格情報の種別を決めるクライアント区分。
type Audience string

const (
	// AudienceWeb はセッションCookieを発行するブラウザクライアント。
	AudienceWeb Audience = "web"
	// AudienceMobile はBearerトークンを発行するネイティブクライアント。
	AudienceMobile Audience = "mobile"
)

// ParseAudience はクエリ値からAudienceを決定する。mobile以外はwebとして扱う。
func ParseAudience(s string) Audience {
	if s == string(AudienceMobile) || s == "1" {
		return AudienceMobile
	}
	return AudienceWeb
}

const (
	// OAuthStateCookieName はstateのnonceを保持するCookie名。
	OAuthStateCookieName = "oauth_state"
	oauthStateMaxAge     = 600
)

// OAuthState はIdPとの往復で保持するstateの中身。
type OAuthState struct {
	Audience Audience `json:"aud"`
	Nonce    string   `json:"nonce"`
}

// StateCodec はOAuthStateを暗号化・署名した不透明な文字列に変換する。
// 有効期間は10分。
type StateCodec struct {
	codec *securecookie.SecureCookie
}

// NewStateCodec はStateCodecを生成する。
func NewStateCodec(secret string) *StateCodec {
	codec := securecookie.New(deriveKey(secret, "oauth-state-hash"), deriveKey(secret, "oauth-state-block"))
	codec.MaxAge(oauthStateMaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &StateCodec{codec: codec}
}

// Seal はstateを不透明な文字列に変換する。
func (s *StateCodec) Seal(state OAuthState) (string, error) {
	v, err := s.codec.Encode(OAuthStateCookieName, state)
	if err != nil {
		return "", fmt.Errorf("failed to seal oauth state: %w", err)
	}
	return v, nil
}

// Open は文字列を検証してstateを復元する。改ざん・期限切れの場合はエラーを返す。
func (s *StateCodec) Open(value string) (*OAuthState, error) {
	var state OAuthState
	if err := s.codec.Decode(OAuthStateCookieName, value, &state); err != nil {
		return nil, fmt.Errorf("failed to open oauth state: %w", err)
	}
	return &state, nil
}

// WriteStateCookie はnonceをCookieに設定する。
// IdPからのトップレベル遷移で送信されるようSameSite=Laxとする。
func WriteStateCookie(w http.ResponseWriter, nonce string) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    nonce,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadStateCookie はnonceをCookieから取り出す。
func ReadStateCookie(r *http.Request) string {
	cookie, err := r.Cookie(OAuthStateCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearStateCookie はnonceのCookieを削除する。
func ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
