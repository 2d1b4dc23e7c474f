package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-duedates/auth"
	"github.com/diewo77/go-duedates/internal/db"
	"github.com/diewo77/go-duedates/internal/testutil"
)

func TestLoginIssuesSessionAndToken(t *testing.T) {
	conn := testutil.NewTestDB(t)
	user := testutil.CreateMember(t, conn, "firm-1", "owner@firm.test", db.ProfileAdmin)
	h := NewAuthHandler(conn, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"email":"owner@firm.test"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatal("expected a session cookie")
	}
	var resp struct {
		UserID uint   `json:"user_id"`
		FirmID string `json:"firm_id"`
		Token  string `json:"token"`
	}
	decodeBody(t, w, &resp)
	if resp.UserID != user.ID || resp.FirmID != "firm-1" {
		t.Fatalf("unexpected login response %+v", resp)
	}
	uid, err := auth.ParseToken(resp.Token)
	if err != nil || uid != user.ID {
		t.Fatalf("token does not round trip: uid=%d err=%v", uid, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"email":"nobody@firm.test"}`))
	w = httptest.NewRecorder()
	h.Login(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
}

func TestListRoles(t *testing.T) {
	conn := testutil.NewTestDB(t)
	h := NewRoleHandler(conn)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/roles", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp struct {
		Items []RoleView `json:"items"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Items) != 4 {
		t.Fatalf("expected 4 seeded roles got %d", len(resp.Items))
	}
	if resp.Items[0].Name != db.ProfileAdmin || len(resp.Items[0].Permissions) != 1 || resp.Items[0].Permissions[0] != "*:*" {
		t.Fatalf("unexpected admin role %+v", resp.Items[0])
	}

	w = httptest.NewRecorder()
	h.ListPermissions(w, httptest.NewRequest(http.MethodGet, "/api/permissions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
}
