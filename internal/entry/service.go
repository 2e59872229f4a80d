// Package entry は本・映画の記録（エントリー）の管理機能を提供する。
// すべての操作は認証済みユーザー本人のエントリーに限定される。
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/medialog/internal/model"
	"github.com/hitoshi/medialog/internal/repository"
	"github.com/hitoshi/medialog/internal/security"
)

// 入力値の上限
const (
	MaxTitleLength  = 120
	MaxReviewLength = 600
	MinRating       = 1
	MaxRating       = 5
)

// Service はエントリー管理のサービス層。
type Service struct {
	repo      repository.EntryRepository
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.EntryRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// fields は正規化後のエントリー項目。validatorで範囲を検証する。
type fields struct {
	MediaType string  `validate:"oneof=book movie"`
	Title     string  `validate:"required,max=120"`
	Rating    float64 `validate:"gte=1,lte=5"`
	Review    string  `validate:"max=600"`
}

// List はユーザーのエントリーを作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Entry, error) {
	entries, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリー一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// Create はエントリーを作成する。
// mediaType、title、ratingは必須。欠落している場合は "Missing fields" を返す。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Entry, error) {
	if in.MediaType == nil || in.Title == nil || *in.Title == "" || in.Rating == nil {
		return nil, model.NewMissingFieldsError()
	}

	f := fields{
		MediaType: *in.MediaType,
		Title:     s.sanitizer.Sanitize(*in.Title),
		Rating:    *in.Rating,
	}
	if in.Review != nil {
		f.Review = s.sanitizer.Sanitize(*in.Review)
	}
	if err := s.validateFields(&f); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &model.Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		MediaType:  model.MediaType(f.MediaType),
		Title:      f.Title,
		Rating:     f.Rating,
		Review:     f.Review,
		ConsumedAt: in.ConsumedAt.Time,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("エントリーの作成に失敗しました: %w", err)
	}

	slog.Debug("entry created", slog.String("user_id", userID), slog.String("entry_id", e.ID))
	return e, nil
}

// Update はエントリーを部分更新する。
// 存在しない、他ユーザーの所有、またはIDの形式が不正な場合は "Entry not found" を返す。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewEntryNotFoundError()
	}

	patch := &model.EntryPatch{}

	if in.MediaType != nil {
		mt := model.MediaType(*in.MediaType)
		if !mt.Valid() {
			return nil, model.NewValidationError("mediaType must be book or movie")
		}
		patch.MediaType = &mt
	}
	if in.Title != nil {
		title := s.sanitizer.Sanitize(*in.Title)
		if title == "" {
			return nil, model.NewValidationError("Title is required")
		}
		if err := s.validate.Var(title, "max=120"); err != nil {
			return nil, titleTooLongError()
		}
		patch.Title = &title
	}
	if in.Rating != nil {
		if !validRating(*in.Rating) {
			return nil, ratingError()
		}
		r := *in.Rating
		patch.Rating = &r
	}
	if in.Review != nil {
		review := s.sanitizer.Sanitize(*in.Review)
		if err := s.validate.Var(review, "max=600"); err != nil {
			return nil, reviewTooLongError()
		}
		patch.Review = &review
	}
	if in.ConsumedAt.Set {
		if in.ConsumedAt.Time == nil {
			patch.ClearConsumedAt = true
		} else {
			patch.ConsumedAt = in.ConsumedAt.Time
		}
	}

	updated, err := s.repo.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, fmt.Errorf("エントリーの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewEntryNotFoundError()
	}
	return updated, nil
}

// Delete はエントリーを削除する。
// 存在しない、他ユーザーの所有、またはIDの形式が不正な場合は "Entry not found" を返す。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewEntryNotFoundError()
	}

	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("エントリーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewEntryNotFoundError()
	}
	return nil
}

// validateFields は作成時の項目を検証する。
// 評価の範囲を種別より先に検証する。
func (s *Service) validateFields(f *fields) error {
	if !validRating(f.Rating) {
		return ratingError()
	}
	err := s.validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError("Invalid input")
	}
	switch verrs[0].Field() {
	case "MediaType":
		return model.NewValidationError("mediaType must be book or movie")
	case "Title":
		if verrs[0].Tag() == "required" {
			return model.NewValidationError("Title is required")
		}
		return titleTooLongError()
	case "Review":
		return reviewTooLongError()
	default:
		return ratingError()
	}
}

// validRating はNaNも範囲外として扱う。
func validRating(r float64) bool {
	return r >= MinRating && r <= MaxRating
}

func ratingError() error {
	return model.NewValidationError("Rating must be between 1 and 5")
}

func titleTooLongError() error {
	return model.NewValidationError(fmt.Sprintf("Title must be at most %d characters", MaxTitleLength))
}

func reviewTooLongError() error {
	return model.NewValidationError(fmt.Sprintf("Review must be at most %d characters", MaxReviewLength))
}
