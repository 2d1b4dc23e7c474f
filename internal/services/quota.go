package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// Unlimited marks a plan limit with no cap.
const Unlimited = -1

// PlanLimits caps what a firm may create on a plan.
type PlanLimits struct {
	Clients          int `json:"clients"`
	DueDatesPerMonth int `json:"due_dates_per_month"`
}

var planLimits = map[string]PlanLimits{
	models.PlanFree:    {Clients: 10, DueDatesPerMonth: 3},
	models.PlanPremium: {Clients: 100, DueDatesPerMonth: Unlimited},
}

// LimitsFor returns the limits of plan, falling back to free.
func LimitsFor(plan string) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[models.PlanFree]
}

// QuotaResult is the outcome of a limit check.
type QuotaResult struct {
	Resource string `json:"resource"`
	Allowed  bool   `json:"allowed"`
	Current  int64  `json:"current"`
	Limit    int    `json:"limit"`
	Plan     string `json:"plan"`
}

func newQuotaResult(resource string, current int64, limit int, plan string) QuotaResult {
	return QuotaResult{
		Resource: resource,
		Allowed:  limit == Unlimited || current < int64(limit),
		Current:  current,
		Limit:    limit,
		Plan:     plan,
	}
}

// Usage summarizes a firm's subscription and both quotas.
type Usage struct {
	Subscription  *models.Subscription `json:"subscription"`
	EffectivePlan string               `json:"effective_plan"`
	Clients       QuotaResult          `json:"clients"`
	DueDates      QuotaResult          `json:"due_dates"`
}

// QuotaService counts a firm's resources and compares them to its plan.
//
// Checks run before, not inside, the caller's insert, so two concurrent
// creates can both pass at limit-1 and overshoot by the number of racers.
type QuotaService struct {
	DB    *gorm.DB
	Audit *AuditRecorder
	Clock func() time.Time
}

func NewQuotaService(db *gorm.DB, audit *AuditRecorder) *QuotaService {
	return &QuotaService{DB: db, Audit: audit, Clock: time.Now}
}

func (s *QuotaService) now() time.Time { return s.Clock().UTC() }

// GetOrCreateSubscription is the only place a subscription row is created.
// A firm without one gets a free, active subscription.
func (s *QuotaService) GetOrCreateSubscription(ctx context.Context, firmID string) (*models.Subscription, error) {
	db := s.DB.WithContext(ctx)
	var sub models.Subscription
	err := db.Where("firm_id = ?", firmID).First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	sub = models.Subscription{FirmID: firmID, Plan: models.PlanFree, Status: models.SubscriptionActive}
	if err := db.Create(&sub).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		// Lost the creation race; the winner's row is the subscription.
		sub = models.Subscription{}
		if err := db.Where("firm_id = ?", firmID).First(&sub).Error; err != nil {
			return nil, fmt.Errorf("reload subscription: %w", err)
		}
	}
	return &sub, nil
}

func (s *QuotaService) effectivePlan(ctx context.Context, firmID string) (string, error) {
	sub, err := s.GetOrCreateSubscription(ctx, firmID)
	if err != nil {
		return "", err
	}
	return sub.EffectivePlan(s.now()), nil
}

// CheckClientLimit counts every client of the firm.
func (s *QuotaService) CheckClientLimit(ctx context.Context, firmID string) (QuotaResult, error) {
	plan, err := s.effectivePlan(ctx, firmID)
	if err != nil {
		return QuotaResult{}, err
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Client{}).Where("firm_id = ?", firmID).Count(&count).Error; err != nil {
		return QuotaResult{}, fmt.Errorf("count clients: %w", err)
	}
	return newQuotaResult("clients", count, LimitsFor(plan).Clients, plan), nil
}

// CheckDueDateLimit counts due dates created since the start of the current
// calendar month in UTC.
func (s *QuotaService) CheckDueDateLimit(ctx context.Context, firmID string) (QuotaResult, error) {
	plan, err := s.effectivePlan(ctx, firmID)
	if err != nil {
		return QuotaResult{}, err
	}
	monthStart := now.With(s.now()).BeginningOfMonth()
	var count int64
	err = s.DB.WithContext(ctx).Model(&models.DueDate{}).
		Where("firm_id = ? AND created_at >= ?", firmID, monthStart).
		Count(&count).Error
	if err != nil {
		return QuotaResult{}, fmt.Errorf("count due dates: %w", err)
	}
	return newQuotaResult("due_dates", count, LimitsFor(plan).DueDatesPerMonth, plan), nil
}

// Usage reports the subscription and both quotas.
func (s *QuotaService) Usage(ctx context.Context, firmID string) (*Usage, error) {
	sub, err := s.GetOrCreateSubscription(ctx, firmID)
	if err != nil {
		return nil, err
	}
	clients, err := s.CheckClientLimit(ctx, firmID)
	if err != nil {
		return nil, err
	}
	dueDates, err := s.CheckDueDateLimit(ctx, firmID)
	if err != nil {
		return nil, err
	}
	return &Usage{Subscription: sub, EffectivePlan: sub.EffectivePlan(s.now()), Clients: clients, DueDates: dueDates}, nil
}

// PlanChange is a request to move a firm to another plan. Payment
// verification happens before this is called.
type PlanChange struct {
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	AutoRenew *bool      `json:"auto_renew"`
}

// SetPlan updates the firm's subscription and records the change.
func (s *QuotaService) SetPlan(ctx context.Context, actor Actor, in PlanChange) (*models.Subscription, error) {
	v := validation.Violations{}
	validation.OneOf("plan", in.Plan, models.Plans, v)
	if in.Status == "" {
		in.Status = models.SubscriptionActive
	}
	validation.OneOf("status", in.Status, models.SubscriptionStatuses, v)
	if !v.Empty() {
		return nil, invalid(v)
	}

	sub, err := s.GetOrCreateSubscription(ctx, actor.FirmID)
	if err != nil {
		return nil, err
	}
	changes := map[string]Change{}
	if sub.Plan != in.Plan {
		changes["plan"] = Change{From: sub.Plan, To: in.Plan}
	}
	if sub.Status != in.Status {
		changes["status"] = Change{From: sub.Status, To: in.Status}
	}
	if !sameTime(sub.ExpiresAt, in.ExpiresAt) {
		changes["expires_at"] = Change{From: sub.ExpiresAt, To: in.ExpiresAt}
	}
	sub.Plan = in.Plan
	sub.Status = in.Status
	sub.ExpiresAt = in.ExpiresAt
	if in.AutoRenew != nil {
		sub.AutoRenew = *in.AutoRenew
	}
	if err := s.DB.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if len(changes) > 0 {
		s.Audit.Record(ctx, AuditEntry{
			Actor:      actor,
			Kind:       models.KindSubscriptionUpdated,
			Action:     fmt.Sprintf("Changed firm plan to %s", sub.Plan),
			ActionType: models.ActionEdited,
			Details:    &AuditDetails{Changes: changes},
		})
	}
	return sub, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
