package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/medialog/internal/model"
)

const entryColumns = `id, user_id, media_type, title, rating, review, consumed_at, created_at, updated_at`

// PostgresEntryRepo はPostgreSQLを使用したエントリーリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.Entry, error) {
	e := &model.Entry{}
	var mediaType string
	var consumedAt sql.NullTime
	if err := row.Scan(
		&e.ID, &e.UserID, &mediaType, &e.Title, &e.Rating, &e.Review,
		&consumedAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.MediaType = model.MediaType(mediaType)
	if consumedAt.Valid {
		t := consumedAt.Time
		e.ConsumedAt = &t
	}
	return e, nil
}

// ListByUserID はユーザーのエントリーを作成日時の降順で返す。
func (r *PostgresEntryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("エントリー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("エントリーのスキャンに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エントリー一覧の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// Create はエントリーを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, string(entry.MediaType), entry.Title, entry.Rating, entry.Review,
		entry.ConsumedAt, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エントリーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はエントリーを部分更新し、更新後の値を返す。
// patchのnilフィールドは既存の値を維持する。
func (r *PostgresEntryRepo) Update(ctx context.Context, userID, id string, patch *model.EntryPatch) (*model.Entry, error) {
	var mediaType *string
	if patch.MediaType != nil {
		s := string(*patch.MediaType)
		mediaType = &s
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE entries SET
			media_type  = COALESCE($3::text, media_type),
			title       = COALESCE($4::text, title),
			rating      = COALESCE($5::numeric, rating),
			review      = COALESCE($6::text, review),
			consumed_at = CASE WHEN $7::boolean THEN $8::timestamptz ELSE consumed_at END,
			updated_at  = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+entryColumns,
		id, userID,
		mediaType, patch.Title, patch.Rating, patch.Review,
		patch.HasConsumedAtChange(), patch.ConsumedAt,
	)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エントリーの更新に失敗しました: %w", err)
	}
	return e, nil
}

// Delete はエントリーを削除する。削除対象が存在しない場合はfalseを返す。
func (r *PostgresEntryRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("エントリーの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByUserID はユーザーの全エントリーを削除する。
func (r *PostgresEntryRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのエントリー削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
