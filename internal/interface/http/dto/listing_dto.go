package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// ListingRequest общий формат создания и изменения объявления.
type ListingRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	Price         uint64 `json:"price" binding:"required,gt=0"`
	DeliveryHours int    `json:"delivery_hours" binding:"required,gt=0"`
	MaxRevisions  int    `json:"max_revisions" binding:"min=0"`
}

func (r ListingRequest) ToTerms() entity.ListingTerms {
	return entity.ListingTerms{
		Title:        r.Title,
		Description:  r.Description,
		Price:        valueobject.Amount(r.Price),
		DeliveryTime: time.Duration(r.DeliveryHours) * time.Hour,
		MaxRevisions: r.MaxRevisions,
	}
}

type ListingResponse struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           uint64    `json:"price"`
	DeliveryHours   int       `json:"delivery_hours"`
	MaxRevisions    int       `json:"max_revisions"`
	Active          bool      `json:"active"`
	TotalOrders     uint64    `json:"total_orders"`
	CompletedOrders uint64    `json:"completed_orders"`
	RatingCount     uint64    `json:"rating_count"`
	AverageRating   float64   `json:"average_rating"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ToListingResponse(l *entity.Listing) ListingResponse {
	resp := ListingResponse{
		ID:              l.ID,
		OwnerID:         l.Owner,
		Title:           l.Title,
		Description:     l.Description,
		Price:           uint64(l.Price),
		DeliveryHours:   int(l.DeliveryTime / time.Hour),
		MaxRevisions:    l.MaxRevisions,
		Active:          l.Active,
		TotalOrders:     l.TotalOrders,
		CompletedOrders: l.CompletedOrders,
		RatingCount:     l.RatingCount,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.RatingCount > 0 {
		resp.AverageRating = float64(l.RatingSum) / float64(l.RatingCount)
	}
	return resp
}

func ToListingResponses(listings []*entity.Listing) []ListingResponse {
	out := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, ToListingResponse(l))
	}
	return out
}
