package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-duedates/internal/models"
	"gorm.io/gorm"
)

// Resource types guarded by the authorization gate.
const (
	ResourceDueDate      = "duedate"
	ResourceAttachment   = "attachment"
	ResourceClient       = "client"
	ResourceActivity     = "activity"
	ResourceSubscription = "subscription"
	ResourceMember       = "member"
)

// Default profile names.
const (
	ProfileAdmin   = "admin"
	ProfileManager = "manager"
	ProfileStaff   = "staff"
	ProfileViewer  = "viewer"
)

// SeedPermissions creates the core permissions for the application.
func SeedPermissions(db *gorm.DB) error {
	permissions := []struct {
		ResourceType string
		Action       string
		Description  string
	}{
		{"*", "*", "Full firm access"},

		{ResourceDueDate, "*", "All due date actions"},
		{ResourceDueDate, "list", "List due dates"},
		{ResourceDueDate, "view", "View due date details"},
		{ResourceDueDate, "create", "Create due dates"},
		{ResourceDueDate, "update", "Edit due date title and date"},
		{ResourceDueDate, "delete", "Delete due dates"},

		{ResourceAttachment, "*", "All client attachment actions"},
		{ResourceAttachment, "create", "Attach clients to due dates"},
		{ResourceAttachment, "delete", "Detach clients from due dates"},

		{ResourceClient, "*", "All client actions"},
		{ResourceClient, "list", "List clients"},
		{ResourceClient, "view", "View client details"},
		{ResourceClient, "create", "Create clients"},
		{ResourceClient, "update", "Edit clients"},
		{ResourceClient, "delete", "Delete clients"},

		{ResourceActivity, "list", "Read the firm activity feed"},

		{ResourceSubscription, "view", "View plan and usage"},
		{ResourceSubscription, "update", "Change the firm plan"},

		{ResourceMember, "list", "List firm members"},
		{ResourceMember, "update", "Change member roles"},
	}

	for _, p := range permissions {
		perm := models.Permission{
			ResourceType: p.ResourceType,
			Action:       p.Action,
			Description:  p.Description,
		}
		// Use FirstOrCreate to avoid duplicates
		result := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).
			FirstOrCreate(&perm)
		if result.Error != nil {
			return fmt.Errorf("seed permission %s:%s: %w", p.ResourceType, p.Action, result.Error)
		}
	}
	return nil
}

// SeedProfiles creates the default system profiles with their permissions.
func SeedProfiles(db *gorm.DB) error {
	if err := SeedPermissions(db); err != nil {
		return err
	}

	profiles := []struct {
		Name        string
		Description string
		Permissions []string
	}{
		{
			Name:        ProfileAdmin,
			Description: "Firm owner with every permission",
			Permissions: []string{"*:*"},
		},
		{
			Name:        ProfileManager,
			Description: "Manages due dates, clients and attachments",
			Permissions: []string{
				"duedate:*", "attachment:*", "client:*",
				"activity:list", "subscription:view", "member:list",
			},
		},
		{
			Name:        ProfileStaff,
			Description: "Day-to-day work on due dates and clients, no deletes",
			Permissions: []string{
				"duedate:list", "duedate:view", "duedate:create", "duedate:update",
				"attachment:create",
				"client:list", "client:view", "client:create", "client:update",
				"activity:list", "subscription:view",
			},
		},
		{
			Name:        ProfileViewer,
			Description: "Read-only access",
			Permissions: []string{
				"duedate:list", "duedate:view",
				"client:list", "client:view",
				"activity:list",
			},
		},
	}

	for _, p := range profiles {
		var profile models.Profile
		err := db.Where("name = ?", p.Name).First(&profile).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: p.Name, Description: p.Description, IsSystem: true}
			if err := db.Create(&profile).Error; err != nil {
				return err
			}
		}

		perms := make([]models.Permission, 0, len(p.Permissions))
		for _, code := range p.Permissions {
			resource, action, _ := strings.Cut(code, ":")
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, action).First(&perm).Error; err != nil {
				return fmt.Errorf("profile %s references unknown permission %s: %w", p.Name, code, err)
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}
