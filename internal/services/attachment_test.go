package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAttachSkipsExistingClients(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")
	b := testutil.CreateClient(t, f.db, f.actor.FirmID, "B")
	c := testutil.CreateClient(t, f.db, f.actor.FirmID, "C")

	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, res.AttachedIDs, 2)

	res, err = f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)

	var rows []models.DueDateClient
	require.NoError(t, f.db.Where("due_date_id = ?", dd.ID).Find(&rows).Error)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, models.DocStatusPending, r.DocStatus)
		assert.Equal(t, models.WorkStatusPending, r.WorkStatus)
	}
	assert.Len(t, f.audits(t, models.KindAttachmentCreated), 3)
}

func TestInsertAttachmentTreatsDuplicateAsSkip(t *testing.T) {
	f := newFixture(t)
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")

	row := func() *models.DueDateClient {
		return &models.DueDateClient{FirmID: f.actor.FirmID, DueDateID: dd.ID, ClientID: a.ID,
			DocStatus: models.DocStatusPending, WorkStatus: models.WorkStatusPending}
	}
	ok, err := f.attachments.insertAttachment(t.Context(), row())
	require.NoError(t, err)
	assert.True(t, ok)

	// a concurrent attach that lost the race
	ok, err = f.attachments.insertAttachment(t.Context(), row())
	require.NoError(t, err)
	assert.False(t, ok)
}

// failInsertsFor makes every due_date_clients insert for clientID fail.
func failInsertsFor(t *testing.T, conn *gorm.DB, clientID string) {
	t.Helper()
	err := conn.Callback().Create().Before("gorm:create").Register("test:fail_attach", func(tx *gorm.DB) {
		if row, ok := tx.Statement.Dest.(*models.DueDateClient); ok && row.ClientID == clientID {
			_ = tx.AddError(errors.New("transient io error"))
		}
	})
	require.NoError(t, err)
}

func TestAttachKeepsAndAuditsRowsWhenOneInsertFails(t *testing.T) {
	f := newFixture(t)
	f.attachments.Concurrency = 1
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")
	b := testutil.CreateClient(t, f.db, f.actor.FirmID, "B")
	failInsertsFor(t, f.db, b.ID)

	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []string{b.ID}, res.FailedClientIDs)

	var count int64
	require.NoError(t, f.db.Model(&models.DueDateClient{}).Where("due_date_id = ?", dd.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	audits := f.audits(t, models.KindAttachmentCreated)
	require.Len(t, audits, 1)
	require.NotNil(t, audits[0].ClientID)
	assert.Equal(t, a.ID, *audits[0].ClientID)

	// nothing attached at all is an error
	_, err = f.attachments.Attach(ctx, f.actor, dd.ID, []string{b.ID})
	require.Error(t, err)
	assert.Len(t, f.audits(t, models.KindAttachmentCreated), 1)
}

func TestConcurrentAttachLeavesOneRow(t *testing.T) {
	f := newFixture(t)
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		errs     []error
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.attachments.Attach(t.Context(), f.actor, dd.ID, []string{a.ID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			inserted += res.Inserted
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, inserted)
	var count int64
	require.NoError(t, f.db.Model(&models.DueDateClient{}).Where("due_date_id = ? AND client_id = ?", dd.ID, a.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, f.audits(t, models.KindAttachmentCreated), 1)
}

func TestAttachRejectsInvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")
	legacy := f.dueDate(t, "Legacy", day(2025, 5, 15), models.RecurrenceNone, &a.ID)
	multi := f.dueDate(t, "Multi", day(2025, 5, 15), models.RecurrenceNone, nil)

	_, err := f.attachments.Attach(ctx, f.actor, legacy.ID, []string{a.ID})
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindValidation, svcErr.Kind)
	assert.Equal(t, "single_client_due_date", svcErr.Fields["due_date_id"])

	_, err = f.attachments.Attach(ctx, f.actor, multi.ID, []string{a.ID, "nope"})
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "unknown_client", svcErr.Fields["client_ids"])

	_, err = f.attachments.Attach(ctx, f.actor, multi.ID, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.attachments.Attach(ctx, f.actor, "missing", []string{a.ID})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusWithoutBodyTogglesDocStatus(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")
	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID})
	require.NoError(t, err)
	id := res.AttachedIDs[0]

	got, err := f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{})
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusReceived, got.DocStatus)
	require.NotNil(t, got.UpdatedBy)

	got, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{})
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusPending, got.DocStatus)
	assert.Equal(t, models.WorkStatusPending, got.WorkStatus)
}

func TestUpdateStatusRecordsOnlyChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "Acme")
	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID})
	require.NoError(t, err)
	id := res.AttachedIDs[0]

	_, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{WorkStatus: ptr("done")})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{
		DocStatus:  ptr(models.DocStatusPending),
		WorkStatus: ptr(models.WorkStatusCompleted),
	})
	require.NoError(t, err)

	rows := f.audits(t, models.KindAttachmentUpdated)
	require.Len(t, rows, 1)
	d := Describe(rows[0], Names{Actor: "Owner"})
	require.Len(t, d.Changes, 1)
	assert.Equal(t, FieldChange{Field: "work_status", From: "pending", To: "completed"}, d.Changes[0])
	assert.Contains(t, d.Sentence, `"Acme" on "Corporate tax"`)

	// unchanged values write nothing
	_, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{WorkStatus: ptr(models.WorkStatusCompleted)})
	require.NoError(t, err)
	assert.Len(t, f.audits(t, models.KindAttachmentUpdated), 1)
}

func TestUpdateStatusSetsAndClearsLastContacted(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	fixed := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	f.attachments.Clock = func() time.Time { return fixed }
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "Acme")
	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID})
	require.NoError(t, err)
	id := res.AttachedIDs[0]

	got, err := f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{LastContactedAt: ptr("now")})
	require.NoError(t, err)
	require.NotNil(t, got.LastContactedAt)
	assert.True(t, fixed.Equal(*got.LastContactedAt))

	_, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{LastContactedAt: ptr("yesterday")})
	require.ErrorIs(t, err, ErrValidation)

	got, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{LastContactedAt: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.LastContactedAt)

	var stored models.DueDateClient
	require.NoError(t, f.db.First(&stored, "id = ?", id).Error)
	assert.Nil(t, stored.LastContactedAt)
	assert.Equal(t, models.DocStatusPending, stored.DocStatus, "a clear is not a toggle")

	rows := f.audits(t, models.KindAttachmentUpdated)
	require.Len(t, rows, 2)
	var cleared bool
	for _, r := range rows {
		if strings.Contains(Describe(r, Names{Actor: "Owner"}).Sentence, `last_contacted_at cleared (was "2025-03-14T09:30:00Z")`) {
			cleared = true
		}
	}
	assert.True(t, cleared, "expected a cleared change in the activity feed")

	// clearing an empty value changes nothing
	_, err = f.attachments.UpdateStatus(ctx, f.actor, id, AttachmentPatch{LastContactedAt: ptr("")})
	require.NoError(t, err)
	assert.Len(t, f.audits(t, models.KindAttachmentUpdated), 2)
}

func TestDetachRecordsNames(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "Acme")
	res, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID})
	require.NoError(t, err)

	require.NoError(t, f.attachments.Detach(ctx, f.actor, res.AttachedIDs[0]))
	require.ErrorIs(t, f.attachments.Detach(ctx, f.actor, res.AttachedIDs[0]), ErrNotFound)

	rows := f.audits(t, models.KindAttachmentDeleted)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ActionDeleted, rows[0].ActionType)
	assert.Contains(t, rows[0].Action, "Acme")
	assert.Contains(t, rows[0].Action, "Corporate tax")
}

func TestListAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "Beta")
	b := testutil.CreateClient(t, f.db, f.actor.FirmID, "Alpha")
	_, err := f.attachments.Attach(ctx, f.actor, dd.ID, []string{a.ID, b.ID})
	require.NoError(t, err)

	views, err := f.attachments.ListForDueDate(ctx, f.actor.FirmID, dd.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Alpha", views[0].Client.Name)
	assert.Equal(t, "Corporate tax", views[0].DueDate.Title)

	views, err = f.attachments.ListForClient(ctx, f.actor.FirmID, a.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, dd.ID, views[0].DueDate.ID)
}
