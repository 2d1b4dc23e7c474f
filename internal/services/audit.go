package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor is the firm member performing an operation.
type Actor struct {
	FirmID string
	UserID uint
}

// Change is a before/after pair for one field.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// AuditDetails is the JSON payload stored with an audit entry. Changes holds
// per-field diffs; Previous/Updated hold snapshots for edits and deletes. The
// names are captured at write time so the feed can describe deleted entities.
type AuditDetails struct {
	Changes          map[string]Change `json:"changes,omitempty"`
	Previous         map[string]any    `json:"previous,omitempty"`
	Updated          map[string]any    `json:"updated,omitempty"`
	ClientName       string            `json:"client_name,omitempty"`
	DueDateTitle     string            `json:"due_date_title,omitempty"`
	NextOccurrenceID string            `json:"next_occurrence_id,omitempty"`
}

// AuditEntry is what services hand to the recorder. Empty ids are stored as NULL.
type AuditEntry struct {
	Actor           Actor
	DueDateID       string
	DueDateClientID string
	ClientID        string
	Kind            string
	Action          string
	ActionType      string
	Details         *AuditDetails
}

// AuditRecorder appends audit rows. It never updates or deletes them.
type AuditRecorder struct{ DB *gorm.DB }

func NewAuditRecorder(db *gorm.DB) *AuditRecorder { return &AuditRecorder{DB: db} }

// Record writes the entry best-effort: a failure is logged and the calling
// operation still succeeds.
func (r *AuditRecorder) Record(ctx context.Context, e AuditEntry) {
	if err := r.RecordTx(r.DB.WithContext(ctx), e); err != nil {
		log.Printf("Failed to save audit log (%s, firm %s): %v", e.Kind, e.Actor.FirmID, err)
	}
}

// RecordTx writes the entry through tx and reports failures, for callers whose
// audit row must commit or roll back with their own writes.
func (r *AuditRecorder) RecordTx(tx *gorm.DB, e AuditEntry) error {
	row := models.Audit{
		FirmID:          e.Actor.FirmID,
		UserID:          e.Actor.UserID,
		DueDateID:       optional(e.DueDateID),
		DueDateClientID: optional(e.DueDateClientID),
		ClientID:        optional(e.ClientID),
		Kind:            e.Kind,
		Action:          e.Action,
		ActionType:      e.ActionType,
	}
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		row.Details = datatypes.JSON(raw)
	}
	return tx.Create(&row).Error
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
