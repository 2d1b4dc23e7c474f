package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"gorm.io/gorm"
)

// DueDateInput creates a due date. ClientID selects the legacy single-client
// form; leave it nil to track clients through attachments.
type DueDateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Label       string  `json:"label"`
	Date        string  `json:"date"`
	Status      string  `json:"status"`
	Recurrence  string  `json:"recurrence"`
	ClientID    *string `json:"client_id"`
}

// DueDatePatch is the only editable surface of a due date.
type DueDatePatch struct {
	Title *string `json:"title"`
	Date  *string `json:"date"`
}

// DueDateFilter narrows List.
type DueDateFilter struct {
	ClientID string
	Status   string
	From     *time.Time
	To       *time.Time
}

type DueDateService struct {
	DB    *gorm.DB
	Quota *QuotaService
	Audit *AuditRecorder
}

func NewDueDateService(db *gorm.DB, quota *QuotaService, audit *AuditRecorder) *DueDateService {
	return &DueDateService{DB: db, Quota: quota, Audit: audit}
}

// DecodeDueDatePatch parses an update body, rejecting any field other than
// title and date.
func DecodeDueDatePatch(body []byte) (DueDatePatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return DueDatePatch{}, invalidField("body", "invalid_json")
	}
	v := validation.Violations{}
	for key := range raw {
		if key != "title" && key != "date" {
			v.Add(key, "not_updatable")
		}
	}
	if !v.Empty() {
		return DueDatePatch{}, invalid(v)
	}
	var p DueDatePatch
	if err := json.Unmarshal(body, &p); err != nil {
		return DueDatePatch{}, invalidField("body", "invalid_json")
	}
	return p, nil
}

func (s *DueDateService) Create(ctx context.Context, actor Actor, in DueDateInput) (*models.DueDate, error) {
	v := validation.Violations{}
	in.Title = strings.TrimSpace(in.Title)
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	validation.MaxLen("label", in.Label, 100, v)
	date, _ := validation.Date("date", in.Date, v)
	if in.Status == "" {
		in.Status = models.StatusNotReadyToFile
	}
	validation.OneOf("status", in.Status, models.OpenStatuses, v)
	if in.Recurrence == "" {
		in.Recurrence = models.RecurrenceNone
	}
	validation.OneOf("recurrence", in.Recurrence, models.Recurrences, v)
	if in.ClientID != nil && *in.ClientID == "" {
		in.ClientID = nil
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	quota, err := s.Quota.CheckDueDateLimit(ctx, actor.FirmID)
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		return nil, quotaExceeded(quota)
	}

	db := s.DB.WithContext(ctx)
	if in.ClientID != nil {
		var n int64
		if err := db.Model(&models.Client{}).Where("id = ? AND firm_id = ?", *in.ClientID, actor.FirmID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, invalidField("client_id", "not_found")
		}
	}

	dd := models.DueDate{
		FirmID:      actor.FirmID,
		ClientID:    in.ClientID,
		Title:       in.Title,
		Description: in.Description,
		Label:       in.Label,
		Date:        date,
		Status:      in.Status,
		Recurrence:  in.Recurrence,
		CreatedBy:   actor.UserID,
	}
	if err := db.Create(&dd).Error; err != nil {
		return nil, fmt.Errorf("create due date: %w", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		DueDateID:  dd.ID,
		ClientID:   deref(dd.ClientID),
		Kind:       models.KindDueDateCreated,
		Action:     fmt.Sprintf("Created due date %q", dd.Title),
		ActionType: models.ActionCreated,
		Details: &AuditDetails{
			DueDateTitle: dd.Title,
			Updated:      map[string]any{"title": dd.Title, "date": formatDay(dd.Date), "recurrence": dd.Recurrence},
		},
	})
	return &dd, nil
}

// Get loads a due date of the firm.
func (s *DueDateService) Get(ctx context.Context, firmID, id string) (*models.DueDate, error) {
	var dd models.DueDate
	err := s.DB.WithContext(ctx).Where("id = ? AND firm_id = ?", id, firmID).First(&dd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("due date")
	}
	if err != nil {
		return nil, err
	}
	return &dd, nil
}

// List returns the firm's due dates ordered by date. A client filter matches
// both legacy single-client due dates and due dates the client is attached to.
func (s *DueDateService) List(ctx context.Context, firmID string, f DueDateFilter) ([]models.DueDate, error) {
	q := s.DB.WithContext(ctx).Where("firm_id = ?", firmID)
	if f.ClientID != "" {
		attached := s.DB.Model(&models.DueDateClient{}).Select("due_date_id").
			Where("firm_id = ? AND client_id = ?", firmID, f.ClientID)
		q = q.Where("client_id = ? OR id IN (?)", f.ClientID, attached)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	var out []models.DueDate
	if err := q.Order("date ASC, created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a title/date patch and records previous and updated values.
func (s *DueDateService) Update(ctx context.Context, actor Actor, id string, p DueDatePatch) (*models.DueDate, error) {
	v := validation.Violations{}
	var newDate time.Time
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
		validation.Required("title", t, v)
		validation.MaxLen("title", t, 255, v)
	}
	if p.Date != nil {
		newDate, _ = validation.Date("date", *p.Date, v)
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	dd, err := s.Get(ctx, actor.FirmID, id)
	if err != nil {
		return nil, err
	}
	previous := map[string]any{}
	updated := map[string]any{}
	cols := map[string]any{}
	if p.Title != nil && *p.Title != dd.Title {
		previous["title"], updated["title"] = dd.Title, *p.Title
		cols["title"] = *p.Title
	}
	if p.Date != nil && !newDate.Equal(dd.Date) {
		previous["date"], updated["date"] = formatDay(dd.Date), formatDay(newDate)
		cols["date"] = newDate
	}
	if len(cols) == 0 {
		return dd, nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.DueDate{}).Where("id = ?", dd.ID).Updates(cols).Error; err != nil {
		return nil, fmt.Errorf("update due date: %w", err)
	}
	oldTitle := dd.Title
	if p.Title != nil {
		dd.Title = *p.Title
	}
	if p.Date != nil {
		dd.Date = newDate
	}

	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		DueDateID:  dd.ID,
		ClientID:   deref(dd.ClientID),
		Kind:       models.KindDueDateUpdated,
		Action:     fmt.Sprintf("Updated due date %q", oldTitle),
		ActionType: models.ActionEdited,
		Details:    &AuditDetails{DueDateTitle: dd.Title, Previous: previous, Updated: updated},
	})
	return dd, nil
}

// Delete removes the due date and every attachment row, then records the
// title it had.
func (s *DueDateService) Delete(ctx context.Context, actor Actor, id string) error {
	dd, err := s.Get(ctx, actor.FirmID, id)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("firm_id = ? AND due_date_id = ?", actor.FirmID, dd.ID).Delete(&models.DueDateClient{}).Error; err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		if err := tx.Delete(dd).Error; err != nil {
			return fmt.Errorf("delete due date: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		DueDateID:  dd.ID,
		ClientID:   deref(dd.ClientID),
		Kind:       models.KindDueDateDeleted,
		Action:     fmt.Sprintf("Deleted due date %q", dd.Title),
		ActionType: models.ActionDeleted,
		Details: &AuditDetails{
			DueDateTitle: dd.Title,
			Previous:     map[string]any{"title": dd.Title, "date": formatDay(dd.Date)},
		},
	})
	return nil
}

func formatDay(t time.Time) string { return t.UTC().Format(validation.DateLayout) }
