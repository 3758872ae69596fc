package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// PlatformPolicy настройки платформы, которые используют операции с заказами.
// Ставка комиссии из политики читается только при пополнении эскроу.
type PlatformPolicy struct {
	FeeRate            valueobject.BasisPoints
	DisputePeriod      time.Duration
	AutoReleaseEnabled bool
	Treasury           uuid.UUID
	MaxMilestones      int
	Listing            ListingLimits
}
