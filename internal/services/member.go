package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"gorm.io/gorm"
)

// MemberView is a firm member with their role name.
type MemberView struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// MemberService lists a firm's users and assigns their roles.
type MemberService struct {
	DB    *gorm.DB
	Audit *AuditRecorder
}

func NewMemberService(db *gorm.DB, audit *AuditRecorder) *MemberService {
	return &MemberService{DB: db, Audit: audit}
}

func (s *MemberService) List(ctx context.Context, firmID string) ([]MemberView, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Preload("Profile").Where("firm_id = ?", firmID).Order("email ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]MemberView, len(users))
	for i, u := range users {
		out[i] = MemberView{ID: u.ID, Email: u.Email, Name: u.Name}
		if u.Profile != nil {
			out[i].Role = u.Profile.Name
		}
	}
	return out, nil
}

// AssignRole gives a member of the actor's firm the named profile. Callers
// must drop any cached profile of that user afterwards.
func (s *MemberService) AssignRole(ctx context.Context, actor Actor, userID uint, role string) (*MemberView, error) {
	v := validation.Violations{}
	validation.Required("role", role, v)
	if !v.Empty() {
		return nil, invalid(v)
	}
	db := s.DB.WithContext(ctx)

	var user models.User
	err := db.Preload("Profile").Where("id = ? AND firm_id = ?", userID, actor.FirmID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("member")
	}
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	err = db.Where("name = ?", role).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidField("role", "invalid_value")
	}
	if err != nil {
		return nil, err
	}

	previous := ""
	if user.Profile != nil {
		previous = user.Profile.Name
	}
	view := &MemberView{ID: user.ID, Email: user.Email, Name: user.Name, Role: profile.Name}
	if previous == profile.Name {
		return view, nil
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("profile_id", profile.ID).Error; err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}
	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Kind:       models.KindMemberRoleChanged,
		Action:     fmt.Sprintf("Changed role of member %s to %s", user.DisplayName(), profile.Name),
		ActionType: models.ActionEdited,
		Details:    &AuditDetails{Changes: map[string]Change{"role": {From: previous, To: profile.Name}}},
	})
	return view, nil
}
