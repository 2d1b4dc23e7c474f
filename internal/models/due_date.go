package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Due date statuses. Pending is the initial status of an occurrence created
// by rolling a recurring due date forward.
const (
	StatusNotReadyToFile = "notReadyToFile"
	StatusReadyToFile    = "readyToFile"
	StatusCompleted      = "completed"
	StatusPending        = "pending"
)

const (
	RecurrenceNone      = "none"
	RecurrenceMonthly   = "monthly"
	RecurrenceQuarterly = "quarterly"
	RecurrenceYearly    = "yearly"
)

var (
	// OpenStatuses are the statuses a due date may be created with.
	OpenStatuses = []string{StatusNotReadyToFile, StatusReadyToFile, StatusPending}
	Statuses     = []string{StatusNotReadyToFile, StatusReadyToFile, StatusPending, StatusCompleted}
	Recurrences  = []string{RecurrenceNone, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly}
)

// DueDate is a filing deadline. A nil ClientID means the due date tracks its
// clients through DueDateClient rows; a set ClientID is the legacy
// single-client form and carries no attachments.
//
// CompletedAt and CompletedBy are set if and only if Status is completed.
type DueDate struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	FirmID      string     `gorm:"size:36;not null;index:idx_due_dates_firm_date,priority:1" json:"firm_id"`
	ClientID    *string    `gorm:"size:36;index" json:"client_id,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Label       string     `gorm:"size:100" json:"label,omitempty"`
	Date        time.Time  `gorm:"not null;index:idx_due_dates_firm_date,priority:2" json:"date"`
	Status      string     `gorm:"size:32;not null;default:notReadyToFile" json:"status"`
	Recurrence  string     `gorm:"size:16;not null;default:none" json:"recurrence"`
	CreatedBy   uint       `json:"created_by"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *uint      `json:"completed_by,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (d *DueDate) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func (d *DueDate) IsCompleted() bool { return d.Status == StatusCompleted }

// IsSingleClient reports whether this is a legacy single-client due date.
func (d *DueDate) IsSingleClient() bool { return d.ClientID != nil && *d.ClientID != "" }
