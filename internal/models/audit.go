package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit action types.
const (
	ActionCreated = "created"
	ActionEdited  = "edited"
	ActionDeleted = "deleted"
)

var ActionTypes = []string{ActionCreated, ActionEdited, ActionDeleted}

// Audit kinds, stamped at write time and used to categorize activity.
const (
	KindDueDateCreated   = "due_date.created"
	KindDueDateUpdated   = "due_date.updated"
	KindDueDateDeleted   = "due_date.deleted"
	KindDueDateCompleted = "due_date.completed"

	KindAttachmentCreated = "attachment.created"
	KindAttachmentUpdated = "attachment.updated"
	KindAttachmentDeleted = "attachment.deleted"

	KindClientCreated = "client.created"
	KindClientUpdated = "client.updated"
	KindClientDeleted = "client.deleted"

	KindSubscriptionUpdated = "subscription.updated"
	KindMemberRoleChanged   = "member.role_changed"
)

// Audit is an append-only record of a change in a firm. Rows are never
// updated or deleted, and references are kept as plain ids so entries
// outlive the entities they describe.
type Audit struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	FirmID          string         `gorm:"size:36;not null;index:idx_audits_firm_created,priority:1" json:"firm_id"`
	UserID          uint           `gorm:"index" json:"user_id"`
	DueDateID       *string        `gorm:"size:36;index" json:"due_date_id,omitempty"`
	DueDateClientID *string        `gorm:"size:36" json:"due_date_client_id,omitempty"`
	ClientID        *string        `gorm:"size:36;index" json:"client_id,omitempty"`
	Kind            string         `gorm:"size:64;index" json:"kind,omitempty"`
	Action          string         `gorm:"type:text;not null" json:"action"`
	ActionType      string         `gorm:"size:16;not null" json:"action_type"`
	Details         datatypes.JSON `json:"details,omitempty"`
	CreatedAt       time.Time      `gorm:"index:idx_audits_firm_created,priority:2" json:"created_at"`
}

func (a *Audit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All returns every model managed by the schema, in dependency order.
func All() []any {
	return []any{
		&Permission{}, &Profile{}, &User{},
		&Client{}, &DueDate{}, &DueDateClient{},
		&Subscription{}, &Audit{},
	}
}
