package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DocStatusPending  = "pending"
	DocStatusReceived = "received"

	WorkStatusPending   = "pending"
	WorkStatusCompleted = "completed"
)

var (
	DocStatuses  = []string{DocStatusPending, DocStatusReceived}
	WorkStatuses = []string{WorkStatusPending, WorkStatusCompleted}
)

// DueDateClient attaches one client to a multi-client due date and tracks the
// client's document and work progress independently. At most one row exists
// per (firm, due date, client).
type DueDateClient struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	FirmID          string     `gorm:"size:36;not null;uniqueIndex:uk_due_date_clients_firm_due_date_client,priority:1" json:"firm_id"`
	DueDateID       string     `gorm:"size:36;not null;uniqueIndex:uk_due_date_clients_firm_due_date_client,priority:2" json:"due_date_id"`
	ClientID        string     `gorm:"size:36;not null;uniqueIndex:uk_due_date_clients_firm_due_date_client,priority:3;index" json:"client_id"`
	DocStatus       string     `gorm:"size:16;not null;default:pending" json:"doc_status"`
	WorkStatus      string     `gorm:"size:16;not null;default:pending" json:"work_status"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	UpdatedBy       *uint      `json:"updated_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (a *DueDateClient) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
