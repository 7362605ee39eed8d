package db

import (
	"errors"
	"fmt"

	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations and seeds baseline rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Plan{},
		&models.User{},
		&models.TokenTransaction{},
		&models.NotificationRecord{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultPlans(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureDefaultPlans seeds the plan catalog when it is empty.
func ensureDefaultPlans(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Plan{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count plans: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Plan{
		{Name: "Starter", Price: 999, DurationDays: 30, DailyRate: 50, SortOrder: 1, IsEnabled: true, Description: "50 credits per day"},
		{Name: "Professional", Price: 2499, DurationDays: 30, DailyRate: 150, SortOrder: 2, IsEnabled: true, Description: "150 credits per day"},
		{Name: "Enterprise", Price: 7999, DurationDays: 90, DailyRate: 300, SortOrder: 3, IsEnabled: true, Description: "300 credits per day, quarterly billing"},
	}
	for i := range defaults {
		if errCreate := conn.Create(&defaults[i]).Error; errCreate != nil {
			return fmt.Errorf("db: seed plan %q: %w", defaults[i].Name, errCreate)
		}
	}
	return nil
}

// HasAdmin reports whether at least one active admin account exists.
func HasAdmin(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, errors.New("db: nil connection")
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Where("active = ?", true).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("db: count admins: %w", errCount)
	}
	return count > 0, nil
}
