package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/storage"
)

type DepositRequest struct {
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

type BalanceResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   uint64    `json:"balance"`
}

type ProfileResponse struct {
	UserID          uuid.UUID `json:"user_id"`
	CompletedOrders uint64    `json:"completed_orders"`
	TotalReviews    uint64    `json:"total_reviews"`
	AverageRating   float64   `json:"average_rating"`
	TotalEarnings   uint64    `json:"total_earnings"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ToProfileResponse(p *entity.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:          p.UserID,
		CompletedOrders: p.CompletedOrders,
		TotalReviews:    p.TotalReviews,
		AverageRating:   float64(p.AverageRating) / 100,
		TotalEarnings:   uint64(p.TotalEarnings),
		UpdatedAt:       p.UpdatedAt,
	}
}

type FileResponse struct {
	Ref    string `json:"ref"`
	Digest string `json:"digest"`
	MIME   string `json:"mime"`
	Size   int64  `json:"size"`
}

func ToFileResponse(f *storage.StoredFile) FileResponse {
	return FileResponse{Ref: f.Ref, Digest: f.Digest, MIME: f.MIME, Size: f.Size}
}
