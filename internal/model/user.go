// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashとGoogleIDの少なくとも一方が設定されている。
// Googleログインで作成されたユーザーはパスワードを持たない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // 空の場合はパスワードログイン不可
	GoogleID     string // 空の場合は外部IdP未連携
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword はパスワードログインが可能なユーザーかどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Session はユーザーのログインセッションを表す。
// Cookieには署名済みのIDのみを保持し、内容はサーバー側が正とする。
type Session struct {
	ID        string
	UserID    string
	Username  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired は指定時刻の時点でセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PrincipalSource はPrincipalをどの認証手段で解決したかを表す。
type PrincipalSource string

const (
	// PrincipalSourceSession はサーバー側セッションから解決したことを示す。
	PrincipalSourceSession PrincipalSource = "session"
	// PrincipalSourceBearer はBearerトークンから解決したことを示す。
	PrincipalSourceBearer PrincipalSource = "bearer"
)

// Principal はリクエストに紐づく認証済みの主体を表す。
// 解決後はイミュータブルとして扱い、永続化しない。
type Principal struct {
	UserID   string
	Username string
	Source   PrincipalSource
}
