package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	commander "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Commander"
	config "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Config"
	"gitlab.com/c2tech1/rqc.control_server/src/production/RQC.ControlService/middleware"
	logger "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Logger"
	metrics "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Metrics"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
	api_models "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models/api"
	interfaces "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Repository/Interfaces"
)

// Validation bounds for manual run inputs.
const (
	MoistureMin   = 0.0
	MoistureMax   = 100.0
	CorrectionMin = -50.0
	CorrectionMax = 50.0
)

// CommandController is the on-demand command issuer: it validates operator
// requests and forwards them through the command channel.
type CommandController struct {
	publisher          commander.Publisher
	auditRepo          interfaces.AuditRepository
	cfg                config.ControlConfig
	logger             *logger.Logger
	identityMiddleware *middleware.IdentityMiddleware

	// now is swappable for tests
	now func() time.Time
}

// NewCommandController creates a new command controller
func NewCommandController(publisher commander.Publisher, auditRepo interfaces.AuditRepository, cfg config.ControlConfig, logger *logger.Logger, identityMiddleware *middleware.IdentityMiddleware) *CommandController {
	return &CommandController{
		publisher:          publisher,
		auditRepo:          auditRepo,
		cfg:                cfg,
		logger:             logger.WithComponent("command_controller"),
		identityMiddleware: identityMiddleware,
		now:                time.Now,
	}
}

// RegisterRoutes registers the issuer routes with Gin
func (c *CommandController) RegisterRoutes(router *gin.Engine) {
	router.POST("/run_manual", c.identityMiddleware.Identify(), c.RunManual)
	router.POST("/simulate_sensor", c.identityMiddleware.Identify(), c.SimulateSensor)
}

// RunManual validates and dispatches an immediate run_manual or set_mode
// command. A request without a device code is a dry-run: the command still
// goes out, but to the default device.
func (c *CommandController) RunManual(ctx *gin.Context) {
	var req api_models.RunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.rejectRun(ctx, &req, "invalid request body: "+err.Error())
		return
	}

	now := c.now()

	var payload rqcmodels.CommandPayload
	switch req.Command {
	case "run_manual":
		if req.Moisture == nil {
			c.rejectRun(ctx, &req, "moisture is required")
			return
		}
		if req.Correction == nil {
			c.rejectRun(ctx, &req, "correction is required")
			return
		}
		moisture := float64(*req.Moisture)
		correction := float64(*req.Correction)
		if moisture < MoistureMin || moisture > MoistureMax {
			c.rejectRun(ctx, &req, "moisture must be between 0 and 100")
			return
		}
		if correction < CorrectionMin || correction > CorrectionMax {
			c.rejectRun(ctx, &req, "correction must be between -50 and 50")
			return
		}
		payload = rqcmodels.StartManualCommand{
			Moisture:   moisture,
			Correction: correction,
			Timestamp:  now,
		}
	case "set_mode":
		mode := rqcmodels.TimerMode(req.Mode)
		if mode != rqcmodels.TimerModeAuto && mode != rqcmodels.TimerModeManual {
			c.rejectRun(ctx, &req, "mode must be auto or manual")
			return
		}
		payload = rqcmodels.SetModeCommand{
			Mode:      mode,
			Timestamp: now,
		}
	default:
		c.rejectRun(ctx, &req, "command must be run_manual or set_mode")
		return
	}

	deviceCode := req.DeviceCode
	dispatchMode := rqcmodels.DispatchModeLive
	if deviceCode == "" {
		// Dry-run convention: publish for real, but to the default
		// device, so UI smoke tests exercise the full path.
		deviceCode = c.cfg.DefaultDeviceCode
		dispatchMode = rqcmodels.DispatchModeDryRun
	}

	command := rqcmodels.Command{DeviceCode: deviceCode, Payload: payload}
	if err := c.publisher.PublishCommands(ctx, []rqcmodels.Command{command}); err != nil {
		// Optimistic ack: the caller still gets a success response.
		// Observable only via logs and the audit trail.
		c.logger.ErrorWithError(err, "publish failed for "+deviceCode)
	}

	c.writeAudit(ctx, &req, deviceCode, dispatchMode, now)

	metrics.IssuerRequests.WithLabelValues("run_manual", "ok").Inc()
	ctx.JSON(http.StatusOK, api_models.RunResponse{
		OK:      true,
		Mode:    string(dispatchMode),
		Message: "command dispatched",
		Echo:    &req,
	})
}

func (c *CommandController) rejectRun(ctx *gin.Context, req *api_models.RunRequest, message string) {
	metrics.IssuerRequests.WithLabelValues("run_manual", "validation_error").Inc()
	ctx.JSON(http.StatusBadRequest, api_models.RunResponse{
		OK:      false,
		Mode:    "error",
		Message: message,
		Echo:    req,
	})
}

func (c *CommandController) writeAudit(ctx *gin.Context, req *api_models.RunRequest, deviceCode string, dispatchMode rqcmodels.DispatchMode, now time.Time) {
	record := rqcmodels.AuditRecord{
		ID:         uuid.New().String(),
		Timestamp:  now,
		Actor:      middleware.GetActorFromGinContext(ctx),
		Role:       middleware.GetRoleFromGinContext(ctx),
		Mode:       dispatchMode,
		Command:    req.Command,
		DeviceCode: deviceCode,
	}
	if req.Moisture != nil {
		record.Moisture = float64(*req.Moisture)
	}
	if req.Correction != nil {
		record.Correction = float64(*req.Correction)
	}

	// Audit failures never fail the command path.
	if err := c.auditRepo.CreateAuditRecord(ctx, record); err != nil {
		c.logger.ErrorWithError(err, "failed to write audit record")
	}
}

// SimulateSensor publishes a fabricated telemetry reading so downstream
// consumers can be tested without real hardware. Unlike RunManual, a
// transport failure here propagates to the caller.
func (c *CommandController) SimulateSensor(ctx *gin.Context) {
	var req api_models.SimulateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		metrics.IssuerRequests.WithLabelValues("simulate_sensor", "validation_error").Inc()
		ctx.JSON(http.StatusBadRequest, api_models.SimulateResponse{
			OK:      false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if req.DeviceCode == "" {
		metrics.IssuerRequests.WithLabelValues("simulate_sensor", "validation_error").Inc()
		ctx.JSON(http.StatusBadRequest, api_models.SimulateResponse{
			OK:      false,
			Message: "deviceCode is required",
		})
		return
	}

	value := 0
	if req.Type == "rice" {
		value = 1
	}

	event := rqcmodels.TelemetryEvent{
		Time:            c.now(),
		MoistureMachine: value,
		Temperature:     value,
		DeviceCode:      req.DeviceCode,
		Event:           "test",
	}

	if err := c.publisher.PublishTelemetry(ctx, event); err != nil {
		c.logger.ErrorWithError(err, "telemetry publish failed for "+req.DeviceCode)
		metrics.IssuerRequests.WithLabelValues("simulate_sensor", "error").Inc()
		ctx.JSON(http.StatusInternalServerError, api_models.SimulateResponse{
			OK:      false,
			Message: "failed to publish telemetry: " + err.Error(),
		})
		return
	}

	metrics.IssuerRequests.WithLabelValues("simulate_sensor", "ok").Inc()
	ctx.JSON(http.StatusOK, api_models.SimulateResponse{
		OK:      true,
		Message: "telemetry injected",
		Data:    &event,
	})
}
