package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/config"
	handlers "github.com/clientsure/backend/internal/http/api/front/handlers"
	"github.com/clientsure/backend/internal/ledger"
	"github.com/clientsure/backend/internal/models"
	"github.com/clientsure/backend/internal/ratelimit"
	"github.com/clientsure/backend/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the user-facing API surface.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, engine *ledger.Engine, limiter ratelimit.Limiter, spendLimit int) {
	if r == nil || db == nil {
		return
	}

	frontGroup := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	frontGroup.POST("/auth/register", authHandler.Register)
	frontGroup.POST("/auth/login", authHandler.Login)

	planHandler := handlers.NewPlanFrontHandler(db)
	frontGroup.GET("/plans", planHandler.List)

	authed := frontGroup.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	tokenHandler := handlers.NewTokenHandler(db, engine, limiter, spendLimit)
	authed.GET("/tokens/balance", tokenHandler.Balance)
	authed.POST("/tokens/spend", tokenHandler.Spend)
	authed.GET("/tokens/history", tokenHandler.History)

	purchaseHandler := handlers.NewPurchaseHandler(db)
	authed.POST("/purchase/subscription", purchaseHandler.Subscribe)
	authed.POST("/purchase/tokens", purchaseHandler.Topup)
}

// userAuthMiddleware validates user JWTs and loads user context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseUserToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userEmail", user.Email)
		c.Next()
	}
}
