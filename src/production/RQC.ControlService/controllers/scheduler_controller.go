package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logger "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Logger"
	metrics "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Metrics"
	api_models "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models/api"
	reconciler "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Reconciler"
)

// SchedulerController exposes the reconciliation cycle as an HTTP trigger
// for external schedulers. The internal ticker and this endpoint run the
// same cycle; commands are idempotent, so overlap is harmless.
type SchedulerController struct {
	reconciler *reconciler.Reconciler
	logger     *logger.Logger
}

// NewSchedulerController creates a new scheduler controller
func NewSchedulerController(rec *reconciler.Reconciler, logger *logger.Logger) *SchedulerController {
	return &SchedulerController{
		reconciler: rec,
		logger:     logger.WithComponent("scheduler_controller"),
	}
}

// RegisterRoutes registers the scheduler trigger with Gin
func (c *SchedulerController) RegisterRoutes(router *gin.Engine) {
	router.POST("/check_timers", c.CheckTimers)
}

// CheckTimers runs one reconciliation cycle.
func (c *SchedulerController) CheckTimers(ctx *gin.Context) {
	result, err := c.reconciler.RunCycle(ctx)
	if err != nil {
		c.logger.ErrorWithError(err, "reconcile cycle failed")
		metrics.IssuerRequests.WithLabelValues("check_timers", "error").Inc()
		ctx.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	metrics.IssuerRequests.WithLabelValues("check_timers", "ok").Inc()
	ctx.JSON(http.StatusOK, api_models.CheckTimersResponse{
		Success:        true,
		StoppedDevices: result.StoppedDevices,
		ExpiredCleared: result.ExpiredCleared,
	})
}
