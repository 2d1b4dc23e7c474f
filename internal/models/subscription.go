package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"

	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

var (
	Plans                = []string{PlanFree, PlanPremium}
	SubscriptionStatuses = []string{SubscriptionActive, SubscriptionCancelled, SubscriptionExpired}
)

// Subscription holds a firm's plan. There is at most one per firm.
type Subscription struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	FirmID    string     `gorm:"size:36;not null;uniqueIndex" json:"firm_id"`
	Plan      string     `gorm:"size:16;not null;default:free" json:"plan"`
	Status    string     `gorm:"size:16;not null;default:active" json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	AutoRenew bool       `gorm:"default:false" json:"auto_renew"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// EffectivePlan is the plan limits are computed from: a premium plan that is
// not active, or whose expiry has passed, counts as free.
func (s *Subscription) EffectivePlan(at time.Time) string {
	if s.Plan != PlanPremium {
		return PlanFree
	}
	if s.Status != SubscriptionActive {
		return PlanFree
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(at) {
		return PlanFree
	}
	return PlanPremium
}
