package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/diewo77/go-duedates/validation"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ClientPatch updates the provided fields only.
type ClientPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type ClientService struct {
	DB    *gorm.DB
	Quota *QuotaService
	Audit *AuditRecorder
}

func NewClientService(db *gorm.DB, quota *QuotaService, audit *AuditRecorder) *ClientService {
	return &ClientService{DB: db, Quota: quota, Audit: audit}
}

func (s *ClientService) Create(ctx context.Context, actor Actor, in ClientInput) (*models.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.Email("email", in.Email, v)
	validation.MaxLen("phone", in.Phone, 50, v)
	if !v.Empty() {
		return nil, invalid(v)
	}

	quota, err := s.Quota.CheckClientLimit(ctx, actor.FirmID)
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		return nil, quotaExceeded(quota)
	}

	c := models.Client{FirmID: actor.FirmID, Name: in.Name, Email: in.Email, Phone: in.Phone, CreatedBy: actor.UserID}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		ClientID:   c.ID,
		Kind:       models.KindClientCreated,
		Action:     fmt.Sprintf("Added client %q", c.Name),
		ActionType: models.ActionCreated,
		Details:    &AuditDetails{ClientName: c.Name},
	})
	return &c, nil
}

func (s *ClientService) Get(ctx context.Context, firmID, id string) (*models.Client, error) {
	var c models.Client
	err := s.DB.WithContext(ctx).Where("id = ? AND firm_id = ?", id, firmID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("client")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) List(ctx context.Context, firmID string) ([]models.Client, error) {
	var out []models.Client
	if err := s.DB.WithContext(ctx).Where("firm_id = ?", firmID).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ClientService) Update(ctx context.Context, actor Actor, id string, p ClientPatch) (*models.Client, error) {
	v := validation.Violations{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
		validation.Required("name", name, v)
		validation.MaxLen("name", name, 255, v)
	}
	if p.Email != nil {
		validation.Email("email", *p.Email, v)
	}
	if p.Phone != nil {
		validation.MaxLen("phone", *p.Phone, 50, v)
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	c, err := s.Get(ctx, actor.FirmID, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]Change{}
	cols := map[string]any{}
	apply := func(field string, next *string, cur *string) {
		if next == nil || *next == *cur {
			return
		}
		changes[field] = Change{From: *cur, To: *next}
		cols[field] = *next
		*cur = *next
	}
	oldName := c.Name
	apply("name", p.Name, &c.Name)
	apply("email", p.Email, &c.Email)
	apply("phone", p.Phone, &c.Phone)
	if len(cols) == 0 {
		return c, nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Client{}).Where("id = ?", c.ID).Updates(cols).Error; err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		ClientID:   c.ID,
		Kind:       models.KindClientUpdated,
		Action:     fmt.Sprintf("Updated client %q", oldName),
		ActionType: models.ActionEdited,
		Details:    &AuditDetails{ClientName: c.Name, Changes: changes},
	})
	return c, nil
}

// Delete removes the client, its attachment rows, and its legacy
// single-client due dates together with their attachments.
func (s *ClientService) Delete(ctx context.Context, actor Actor, id string) error {
	c, err := s.Get(ctx, actor.FirmID, id)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var legacy []string
		if err := tx.Model(&models.DueDate{}).Where("firm_id = ? AND client_id = ?", actor.FirmID, c.ID).Pluck("id", &legacy).Error; err != nil {
			return err
		}
		q := tx.Where("firm_id = ?", actor.FirmID)
		if len(legacy) > 0 {
			q = q.Where("client_id = ? OR due_date_id IN ?", c.ID, legacy)
		} else {
			q = q.Where("client_id = ?", c.ID)
		}
		if err := q.Delete(&models.DueDateClient{}).Error; err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
		if len(legacy) > 0 {
			if err := tx.Where("id IN ?", legacy).Delete(&models.DueDate{}).Error; err != nil {
				return fmt.Errorf("delete due dates: %w", err)
			}
		}
		return tx.Delete(c).Error
	})
	if err != nil {
		return err
	}
	s.Audit.Record(ctx, AuditEntry{
		Actor:      actor,
		ClientID:   c.ID,
		Kind:       models.KindClientDeleted,
		Action:     fmt.Sprintf("Deleted client %q", c.Name),
		ActionType: models.ActionDeleted,
		Details:    &AuditDetails{ClientName: c.Name, Previous: map[string]any{"name": c.Name, "email": c.Email}},
	})
	return nil
}
