package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/clientsure/backend/internal/lifecycle"
)

// SweepHandler exposes manual triggers for the daily sweeps. The scheduler
// normally fires them; operators use these endpoints to recover a missed run.
type SweepHandler struct {
	sweeper *lifecycle.Sweeper
}

// NewSweepHandler constructs a SweepHandler.
func NewSweepHandler(sweeper *lifecycle.Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: sweeper}
}

// RunRefresh runs the refresh-and-renewal sweep and returns its summary.
func (h *SweepHandler) RunRefresh(c *gin.Context) {
	summary := h.sweeper.RunRefreshSweep(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

// RunLifecycle runs the lifecycle state sweep and returns its summary.
func (h *SweepHandler) RunLifecycle(c *gin.Context) {
	summary := h.sweeper.RunLifecycleSweep(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}
