package model

import "time"

// MediaType はエントリーの種別（本・映画）を表す。
type MediaType string

const (
	MediaTypeBook  MediaType = "book"
	MediaTypeMovie MediaType = "movie"
)

// Valid は定義済みの種別かどうかを返す。
func (m MediaType) Valid() bool {
	return m == MediaTypeBook || m == MediaTypeMovie
}

// Entry はユーザーが記録した1件の鑑賞・読書ログを表す。
// レビューは本人のみが閲覧できる。
type Entry struct {
	ID         string
	UserID     string
	MediaType  MediaType
	Title      string
	Rating     float64 // 1〜5
	Review     string
	ConsumedAt *time.Time // 読了日・鑑賞日。未設定はnil
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EntryPatch はエントリーの部分更新内容を表す。
// nilのフィールドは変更しない。ConsumedAtはClearConsumedAtがtrueの場合にnullへ更新する。
type EntryPatch struct {
	MediaType       *MediaType
	Title           *string
	Rating          *float64
	Review          *string
	ConsumedAt      *time.Time
	ClearConsumedAt bool
}

// HasConsumedAtChange はconsumed_atの更新を伴うかどうかを返す。
func (p *EntryPatch) HasConsumedAtChange() bool {
	return p.ConsumedAt != nil || p.ClearConsumedAt
}
