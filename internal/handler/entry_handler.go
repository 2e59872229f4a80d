package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/medialog/internal/entry"
	"github.com/hitoshi/medialog/internal/middleware"
	"github.com/hitoshi/medialog/internal/model"
)

// EntryServiceInterface はエントリーハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Entry, error)
	Create(ctx context.Context, userID string, in entry.CreateInput) (*model.Entry, error)
	Update(ctx context.Context, userID, id string, in entry.UpdateInput) (*model.Entry, error)
	Delete(ctx context.Context, userID, id string) error
}

// EntryHandler はエントリーCRUDのHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// entryResponse はエントリーのJSONレスポンス。
type entryResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	MediaType  string     `json:"mediaType"`
	Title      string     `json:"title"`
	Rating     float64    `json:"rating"`
	Review     string     `json:"review"`
	ConsumedAt *time.Time `json:"consumedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		MediaType:  string(e.MediaType),
		Title:      e.Title,
		Rating:     e.Rating,
		Review:     e.Review,
		ConsumedAt: e.ConsumedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// List は認証ユーザーのエントリー一覧を返す。
// GET /api/entries
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principalOrUnauthorized(w, r)
	if p == nil {
		return
	}

	entries, err := h.service.List(r.Context(), p.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Create はエントリーを作成する。
// POST /api/entries
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := principalOrUnauthorized(w, r)
	if p == nil {
		return
	}

	var in entry.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := h.service.Create(r.Context(), p.UserID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toEntryResponse(created))
}

// Update はエントリーを部分更新する。他ユーザーのエントリーは404として扱う。
// PUT /api/entries/{id}
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := principalOrUnauthorized(w, r)
	if p == nil {
		return
	}

	var in entry.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	updated, err := h.service.Update(r.Context(), p.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toEntryResponse(updated))
}

// Delete はエントリーを削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := principalOrUnauthorized(w, r)
	if p == nil {
		return
	}

	if err := h.service.Delete(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, okResponse{OK: true})
}
