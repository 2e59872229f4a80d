// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/medialog/internal/model"
)

var (
	// ErrDuplicateEmail はメールアドレスが既に登録済みの場合に返される。
	ErrDuplicateEmail = errors.New("repository: email already exists")
	// ErrDuplicateGoogleID はGoogle IDが既に別ユーザーに紐付いている場合に返される。
	ErrDuplicateGoogleID = errors.New("repository: google id already linked")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogleのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// LinkGoogleID は既存ユーザーにGoogle IDを紐付ける。
	LinkGoogleID(ctx context.Context, userID, googleID string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// EntryRepository はエントリーデータの永続化インターフェース。
// すべての操作は所有者のuserIDで絞り込む。
type EntryRepository interface {
	// ListByUserID はユーザーのエントリーを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Entry, error)

	// Create はエントリーを作成する。
	Create(ctx context.Context, entry *model.Entry) error

	// Update はエントリーを部分更新し、更新後の値を返す。
	// 対象が存在しないか他ユーザーの所有の場合はnilを返す。
	Update(ctx context.Context, userID, id string, patch *model.EntryPatch) (*model.Entry, error)

	// Delete はエントリーを削除する。削除対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)

	// DeleteByUserID はユーザーの全エントリーを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
