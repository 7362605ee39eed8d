package app

import (
	"os"
	"strings"

	"github.com/clientsure/backend/internal/db"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/security"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Environment variables consumed at first start to seed the admin account.
const (
	EnvAdminUsername = "ADMIN_USERNAME"
	EnvAdminPassword = "ADMIN_PASSWORD"
)

// EnsureAdmin seeds the first admin account from the environment when none
// exists yet. Without credentials the admin surface stays unreachable until
// one is created out of band.
func EnsureAdmin(conn *gorm.DB) error {
	exists, errCheck := db.HasAdmin(conn)
	if errCheck != nil {
		return errCheck
	}
	if exists {
		return nil
	}

	username := strings.TrimSpace(os.Getenv(EnvAdminUsername))
	password := os.Getenv(EnvAdminPassword)
	if username == "" || password == "" {
		log.Warn("app: no admin account exists and ADMIN_USERNAME/ADMIN_PASSWORD are unset")
		return nil
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}
	admin := models.Admin{Username: username, Password: hash, Active: true}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	log.Infof("app: seeded admin account %q", username)
	return nil
}
