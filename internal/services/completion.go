package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionResult reports what Complete did.
type CompletionResult struct {
	Success          bool    `json:"success"`
	AlreadyCompleted bool    `json:"already_completed"`
	NextOccurrenceID *string `json:"next_occurrence_id,omitempty"`
}

// CompletionService marks due dates completed and rolls recurring ones forward.
type CompletionService struct {
	DB    *gorm.DB
	Audit *AuditRecorder
	Clock func() time.Time
}

func NewCompletionService(db *gorm.DB, audit *AuditRecorder) *CompletionService {
	return &CompletionService{DB: db, Audit: audit, Clock: time.Now}
}

// Complete marks the due date completed, records the audit entry and creates
// the next occurrence of a recurring due date, all in one transaction.
// Completing an already completed due date is a successful no-op.
//
// Attachments are not copied to the next occurrence.
func (s *CompletionService) Complete(ctx context.Context, actor Actor, dueDateID string) (*CompletionResult, error) {
	res := &CompletionResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dd models.DueDate
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND firm_id = ?", dueDateID, actor.FirmID).
			First(&dd).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("due date")
		}
		if err != nil {
			return fmt.Errorf("lock due date: %w", err)
		}
		if dd.IsCompleted() {
			res.AlreadyCompleted = true
			return nil
		}

		completedAt := s.Clock().UTC()
		if err := tx.Model(&models.DueDate{}).Where("id = ?", dd.ID).Updates(map[string]any{
			"status":       models.StatusCompleted,
			"completed_at": completedAt,
			"completed_by": actor.UserID,
		}).Error; err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}

		details := &AuditDetails{
			DueDateTitle: dd.Title,
			Changes:      map[string]Change{"status": {From: dd.Status, To: models.StatusCompleted}},
		}
		if next, ok := NextOccurrence(dd.Date, dd.Recurrence); ok {
			id, err := s.rollForward(tx, actor, &dd, next)
			if err != nil {
				return err
			}
			if id != "" {
				res.NextOccurrenceID = &id
				details.NextOccurrenceID = id
			}
		}

		return s.Audit.RecordTx(tx, AuditEntry{
			Actor:      actor,
			DueDateID:  dd.ID,
			ClientID:   deref(dd.ClientID),
			Kind:       models.KindDueDateCompleted,
			Action:     fmt.Sprintf("Completed due date %q", dd.Title),
			ActionType: models.ActionEdited,
			Details:    details,
		})
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, aborted(err)
	}
	res.Success = true
	return res, nil
}

// rollForward creates the next occurrence unless one already exists for the
// same client, title and day. It returns "" when creation was skipped.
func (s *CompletionService) rollForward(tx *gorm.DB, actor Actor, dd *models.DueDate, next time.Time) (string, error) {
	dayStart := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
	q := tx.Model(&models.DueDate{}).
		Where("firm_id = ? AND title = ? AND date >= ? AND date < ?", dd.FirmID, dd.Title, dayStart, dayStart.AddDate(0, 0, 1))
	if dd.ClientID == nil {
		q = q.Where("client_id IS NULL")
	} else {
		q = q.Where("client_id = ?", *dd.ClientID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return "", fmt.Errorf("check next occurrence: %w", err)
	}
	if n > 0 {
		return "", nil
	}

	occurrence := models.DueDate{
		FirmID:      dd.FirmID,
		ClientID:    dd.ClientID,
		Title:       dd.Title,
		Description: dd.Description,
		Label:       dd.Label,
		Date:        next,
		Status:      models.StatusPending,
		Recurrence:  dd.Recurrence,
		CreatedBy:   actor.UserID,
	}
	if err := tx.Create(&occurrence).Error; err != nil {
		return "", fmt.Errorf("create next occurrence: %w", err)
	}
	return occurrence.ID, nil
}
