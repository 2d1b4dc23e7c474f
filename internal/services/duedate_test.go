package services

import (
	"testing"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDueDateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	tests := []struct {
		name  string
		in    DueDateInput
		field string
		code  string
	}{
		{"missing title", DueDateInput{Date: "2025-01-01"}, "title", "required"},
		{"bad date", DueDateInput{Title: "x", Date: "01/02/2025"}, "date", "invalid_date"},
		{"completed on create", DueDateInput{Title: "x", Date: "2025-01-01", Status: models.StatusCompleted}, "status", "invalid_value"},
		{"unknown recurrence", DueDateInput{Title: "x", Date: "2025-01-01", Recurrence: "weekly"}, "recurrence", "invalid_value"},
		{"unknown client", DueDateInput{Title: "x", Date: "2025-01-01", ClientID: ptr("nope")}, "client_id", "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dueDates.Create(ctx, f.actor, tt.in)
			var svcErr *Error
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, KindValidation, svcErr.Kind)
			assert.Equal(t, tt.code, svcErr.Fields[tt.field])
		})
	}
}

func TestCreateDueDateDefaults(t *testing.T) {
	f := newFixture(t)
	dd, err := f.dueDates.Create(t.Context(), f.actor, DueDateInput{Title: "  VAT  ", Date: "2025-04-30"})
	require.NoError(t, err)
	assert.Equal(t, "VAT", dd.Title)
	assert.Equal(t, models.StatusNotReadyToFile, dd.Status)
	assert.Equal(t, models.RecurrenceNone, dd.Recurrence)
	assert.True(t, dd.Date.Equal(day(2025, 4, 30)))
	assert.Len(t, f.audits(t, models.KindDueDateCreated), 1)
}

func TestDecodeDueDatePatch(t *testing.T) {
	p, err := DecodeDueDatePatch([]byte(`{"title":"New","date":"2025-02-01"}`))
	require.NoError(t, err)
	assert.Equal(t, "New", *p.Title)
	assert.Equal(t, "2025-02-01", *p.Date)

	_, err = DecodeDueDatePatch([]byte(`{"title":"New","status":"completed"}`))
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "not_updatable", svcErr.Fields["status"])

	_, err = DecodeDueDatePatch([]byte(`not json`))
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateDueDateRecordsPreviousValues(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Old title", day(2025, 3, 1), models.RecurrenceNone, nil)

	got, err := f.dueDates.Update(ctx, f.actor, dd.ID, DueDatePatch{Title: ptr("New title"), Date: ptr("2025-03-01")})
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)

	rows := f.audits(t, models.KindDueDateUpdated)
	require.Len(t, rows, 1)
	d := Describe(rows[0], Names{Actor: "Owner", DueDate: "New title"})
	require.Len(t, d.Changes, 1, "an unchanged date is not recorded")
	assert.Equal(t, FieldChange{Field: "title", From: "Old title", To: "New title"}, d.Changes[0])

	_, err = f.dueDates.Update(ctx, f.actor, "missing", DueDatePatch{Title: ptr("x")})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDueDateCascades(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	dd := f.dueDate(t, "Corporate tax", day(2025, 5, 15), models.RecurrenceNone, nil)
	ids := make([]string, 3)
	for i, name := range []string{"A", "B", "C"} {
		ids[i] = testutil.CreateClient(t, f.db, f.actor.FirmID, name).ID
	}
	_, err := f.attachments.Attach(ctx, f.actor, dd.ID, ids)
	require.NoError(t, err)

	require.NoError(t, f.dueDates.Delete(ctx, f.actor, dd.ID))

	var n int64
	require.NoError(t, f.db.Model(&models.DueDateClient{}).Where("due_date_id = ?", dd.ID).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	_, err = f.dueDates.Get(ctx, f.actor.FirmID, dd.ID)
	require.ErrorIs(t, err, ErrNotFound)

	rows := f.audits(t, models.KindDueDateDeleted)
	require.Len(t, rows, 1)
	d := Describe(rows[0], Names{Actor: "Owner"})
	assert.Equal(t, `Owner deleted due date "Corporate tax"`, d.Sentence)
}

func TestListDueDatesByClient(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	a := testutil.CreateClient(t, f.db, f.actor.FirmID, "A")
	b := testutil.CreateClient(t, f.db, f.actor.FirmID, "B")

	legacy := f.dueDate(t, "Legacy", day(2025, 2, 1), models.RecurrenceNone, &a.ID)
	multi := f.dueDate(t, "Multi", day(2025, 1, 1), models.RecurrenceNone, nil)
	f.dueDate(t, "Unrelated", day(2025, 3, 1), models.RecurrenceNone, &b.ID)
	_, err := f.attachments.Attach(ctx, f.actor, multi.ID, []string{a.ID})
	require.NoError(t, err)

	got, err := f.dueDates.List(ctx, f.actor.FirmID, DueDateFilter{ClientID: a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, multi.ID, got[0].ID)
	assert.Equal(t, legacy.ID, got[1].ID)

	from := day(2025, 1, 15)
	got, err = f.dueDates.List(ctx, f.actor.FirmID, DueDateFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
