package db

import (
	"path/filepath"
	"testing"

	"github.com/clientsure/backend/internal/models"
)

func TestMigrate_SeedsDefaultPlans(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "db-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var plans []models.Plan
	if errFind := conn.Order("sort_order ASC").Find(&plans).Error; errFind != nil {
		t.Fatalf("list plans: %v", errFind)
	}
	if len(plans) != 3 {
		t.Fatalf("seeded %d plans, want 3", len(plans))
	}
	for _, plan := range plans {
		if plan.DailyRate <= 0 || plan.DurationDays <= 0 {
			t.Fatalf("plan %q has invalid quota fields: %+v", plan.Name, plan)
		}
		if !plan.IsEnabled {
			t.Fatalf("plan %q seeded disabled", plan.Name)
		}
	}

	// A second run must not duplicate the catalog.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	var count int64
	conn.Model(&models.Plan{}).Count(&count)
	if count != 3 {
		t.Fatalf("plan count after re-migrate = %d", count)
	}
}

func TestHasAdmin(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "db-admin-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	exists, errCheck := HasAdmin(conn)
	if errCheck != nil || exists {
		t.Fatalf("HasAdmin on empty db = %v, %v", exists, errCheck)
	}

	if errCreate := conn.Create(&models.Admin{Username: "root", Password: "x", Active: true}).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	exists, errCheck = HasAdmin(conn)
	if errCheck != nil || !exists {
		t.Fatalf("HasAdmin after create = %v, %v", exists, errCheck)
	}
}
