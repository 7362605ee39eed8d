package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/config"
	handlers "github.com/clientsure/backend/internal/http/api/admin/handlers"
	"github.com/clientsure/backend/internal/ledger"
	"github.com/clientsure/backend/internal/lifecycle"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, engine *ledger.Engine, sweeper *lifecycle.Sweeper, cronSecret string) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	planHandler := handlers.NewPlanHandler(db)
	authed.POST("/plans", planHandler.Create)
	authed.GET("/plans", planHandler.List)
	authed.GET("/plans/:id", planHandler.Get)
	authed.PUT("/plans/:id", planHandler.Update)
	authed.DELETE("/plans/:id", planHandler.Delete)
	authed.POST("/plans/:id/enable", planHandler.Enable)
	authed.POST("/plans/:id/disable", planHandler.Disable)

	userHandler := handlers.NewUserHandler(db, engine)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.GET("/users/:id/tokens", userHandler.TokenStatus)
	authed.POST("/users/:id/bonus", userHandler.GrantBonus)

	transactionHandler := handlers.NewTransactionHandler(db)
	authed.GET("/transactions", transactionHandler.List)

	// Sweep triggers accept either an admin JWT or the cron secret so an
	// external scheduler can drive them without holding admin credentials.
	sweepGroup := adminGroup.Group("")
	sweepGroup.Use(cronOrAdminAuthMiddleware(db, jwtCfg, cronSecret))

	sweepHandler := handlers.NewSweepHandler(sweeper)
	sweepGroup.POST("/sweeps/refresh", sweepHandler.RunRefresh)
	sweepGroup.POST("/sweeps/lifecycle", sweepHandler.RunLifecycle)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, status, message := resolveAdmin(c, db, jwtCfg)
		if admin == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}
		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}

// cronOrAdminAuthMiddleware admits either a valid admin JWT or a matching
// X-Cron-Secret header.
func cronOrAdminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig, cronSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cronSecret != "" {
			provided := strings.TrimSpace(c.GetHeader("X-Cron-Secret"))
			if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(cronSecret)) == 1 {
				c.Set("adminUsername", "cron")
				c.Next()
				return
			}
		}

		admin, status, message := resolveAdmin(c, db, jwtCfg)
		if admin == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}
		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}

// resolveAdmin extracts and validates the bearer token, returning the admin
// record or an HTTP status and message describing the failure.
func resolveAdmin(c *gin.Context, db *gorm.DB, jwtCfg config.JWTConfig) (*models.Admin, int, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, http.StatusUnauthorized, "missing authorization header"
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, http.StatusUnauthorized, "invalid authorization format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, http.StatusUnauthorized, "empty token"
	}

	claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
	if errJWT != nil {
		return nil, http.StatusUnauthorized, "invalid token"
	}

	var admin models.Admin
	if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
		return nil, http.StatusUnauthorized, "admin not found"
	}
	if !admin.Active {
		return nil, http.StatusForbidden, "admin disabled"
	}
	return &admin, http.StatusOK, ""
}
