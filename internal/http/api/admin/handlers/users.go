package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	dbutil "github.com/clientsure/backend/internal/db"
	"github.com/clientsure/backend/internal/ledger"
	"github.com/clientsure/backend/internal/lifecycle"
	"github.com/clientsure/backend/internal/models"
	"gorm.io/gorm"
)

// UserHandler serves admin user inspection and bonus grants.
type UserHandler struct {
	db     *gorm.DB
	engine *ledger.Engine
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, engine *ledger.Engine) *UserHandler {
	return &UserHandler{db: db, engine: engine}
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":                   user.ID,
		"name":                 user.Name,
		"email":                user.Email,
		"phone":                user.Phone,
		"active":               user.Active,
		"plan_id":              user.PlanID,
		"sub_active":           user.SubActive,
		"sub_start_date":       user.SubStartDate,
		"sub_end_date":         user.SubEndDate,
		"daily_balance":        user.DailyBalance,
		"bonus_amount":         user.BonusAmount,
		"bonus_expires_at":     user.BonusExpiresAt,
		"lifecycle_state":      lifecycle.State(user.LifecycleState).String(),
		"total_spent_lifetime": user.TotalSpentLifetime,
		"created_at":           user.CreatedAt,
	}
}

// List returns users, optionally filtered by a name or email search term.
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		like := dbutil.CaseInsensitiveLikeExpr(h.db, "email") + " OR " + dbutil.CaseInsensitiveLikeExpr(h.db, "name")
		query = query.Where(like, pattern, pattern)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var users []models.User
	if errFind := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"users":     out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get returns one user by id.
func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

type grantBonusRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// GrantBonus installs a time-boxed bonus grant on the user.
func (h *UserHandler) GrantBonus(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	var body grantBonusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	grantedBy := c.GetString("adminUsername")
	grant, errGrant := h.engine.GrantBonus(c.Request.Context(), user.ID, body.Amount, strings.TrimSpace(body.Reason), grantedBy)
	if errGrant != nil {
		switch {
		case errors.Is(errGrant, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(errGrant, ledger.ErrBonusAlreadyActive):
			var live *ledger.BonusActiveError
			payload := gin.H{"error": "user already holds an active bonus"}
			if errors.As(errGrant, &live) {
				payload["amount"] = live.Amount
				payload["expires_at"] = live.ExpiresAt
			}
			c.JSON(http.StatusConflict, payload)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "grant bonus failed"})
		}
		return
	}

	c.JSON(http.StatusOK, grant)
}

// TokenStatus returns the user's reconciled pool breakdown.
func (h *UserHandler) TokenStatus(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	breakdown, errBalance := h.engine.Balance(c.Request.Context(), user.ID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load balance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         user.ID,
		"lifecycle_state": lifecycle.State(user.LifecycleState).String(),
		"balance":         breakdown,
	})
}

func (h *UserHandler) loadUser(c *gin.Context) (*models.User, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return nil, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil, false
	}
	return &user, true
}
