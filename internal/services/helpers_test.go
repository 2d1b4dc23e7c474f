package services

import (
	"testing"
	"time"

	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	actor       Actor
	audit       *AuditRecorder
	quota       *QuotaService
	dueDates    *DueDateService
	clients     *ClientService
	attachments *AttachmentService
	completion  *CompletionService
	activity    *ActivityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.NewTestDB(t)
	firmID := uuid.NewString()
	user := testutil.CreateMember(t, conn, firmID, "owner@firm.test", db.ProfileAdmin)

	audit := NewAuditRecorder(conn)
	quota := NewQuotaService(conn, audit)
	return &fixture{
		db:          conn,
		actor:       Actor{FirmID: firmID, UserID: user.ID},
		audit:       audit,
		quota:       quota,
		dueDates:    NewDueDateService(conn, quota, audit),
		clients:     NewClientService(conn, quota, audit),
		attachments: NewAttachmentService(conn, audit, 4),
		completion:  NewCompletionService(conn, audit),
		activity:    NewActivityService(conn, 50, 200),
	}
}

// premium moves the fixture's firm to an active premium plan.
func (f *fixture) premium(t *testing.T) {
	t.Helper()
	if _, err := f.quota.SetPlan(t.Context(), f.actor, PlanChange{Plan: models.PlanPremium}); err != nil {
		t.Fatalf("set plan: %v", err)
	}
}

// dueDate inserts a due date directly, bypassing quota and audit.
func (f *fixture) dueDate(t *testing.T, title string, date time.Time, recurrence string, clientID *string) models.DueDate {
	t.Helper()
	dd := models.DueDate{
		FirmID:     f.actor.FirmID,
		ClientID:   clientID,
		Title:      title,
		Date:       date,
		Status:     models.StatusNotReadyToFile,
		Recurrence: recurrence,
		CreatedBy:  f.actor.UserID,
	}
	if err := f.db.Create(&dd).Error; err != nil {
		t.Fatalf("create due date: %v", err)
	}
	return dd
}

func (f *fixture) audits(t *testing.T, kind string) []models.Audit {
	t.Helper()
	var rows []models.Audit
	if err := f.db.Where("firm_id = ? AND kind = ?", f.actor.FirmID, kind).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audits: %v", err)
	}
	return rows
}

func ptr[T any](v T) *T { return &v }
