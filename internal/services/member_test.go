package services

import (
	"testing"

	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	members := NewMemberService(f.db, f.audit)
	clerk := testutil.CreateMember(t, f.db, f.actor.FirmID, "clerk@firm.test", db.ProfileStaff)
	outsider := testutil.CreateMember(t, f.db, "other-firm", "x@other.test", db.ProfileStaff)

	got, err := members.AssignRole(ctx, f.actor, clerk.ID, db.ProfileManager)
	require.NoError(t, err)
	assert.Equal(t, db.ProfileManager, got.Role)

	_, err = members.AssignRole(ctx, f.actor, clerk.ID, "owner")
	require.ErrorIs(t, err, ErrValidation)
	_, err = members.AssignRole(ctx, f.actor, outsider.ID, db.ProfileManager)
	require.ErrorIs(t, err, ErrNotFound)

	list, err := members.List(ctx, f.actor.FirmID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "clerk@firm.test", list[0].Email)
	assert.Equal(t, db.ProfileManager, list[0].Role)

	rows := f.audits(t, models.KindMemberRoleChanged)
	require.Len(t, rows, 1)
	assert.Equal(t, CategoryFirm, Categorize(rows[0]))
	d := Describe(rows[0], Names{Actor: "Owner"})
	assert.Equal(t, `Owner changed a member role: role from "staff" to "manager"`, d.Sentence)
}
