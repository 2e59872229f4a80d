package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired はトークンの有効期限切れを表す。
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenMalformed はトークンの形式不正を表す。
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenBadSignature はトークンの署名不一致を表す。
	ErrTokenBadSignature = errors.New("auth: token signature invalid")
)

// TokenClaims はBearerトークンに埋め込むクレーム。
type TokenClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のBearerトークンを発行・検証する。
// 検証は署名と有効期限のみで完結し、ストアを参照しない。
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// Issue はクレームに発行日時と有効期限を設定して署名済みトークンを返す。
func (t *TokenIssuer) Issue(claims TokenClaims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.Subject = claims.UserID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
func (t *TokenIssuer) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %w", ErrTokenBadSignature, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing id claim", ErrTokenMalformed)
	}
	return claims, nil
}
