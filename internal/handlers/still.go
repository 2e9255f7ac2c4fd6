package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"still_controller/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK     = "ok"
	statusQueued = "queued"

	errQueueCommand    = "failed to queue command"
	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, code int, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(code, resp)
}

// submit runs a control action and maps its error. A queued command answers 202: the
// control loop decides whether it is accepted on its next tick.
func (h *Handler) submit(c *gin.Context, command string, action func(context.Context) error) {
	if err := action(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, service.ErrBusy):
			h.logAndJSONError(c, http.StatusServiceUnavailable, err.Error(), "still_command_busy", err, "command", command)
		case errors.Is(err, service.ErrInvalidDuty):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errQueueCommand, "still_command_failed", err, "command", command)
		}
		return
	}
	h.respondWithStatusAndState(c, http.StatusAccepted, statusQueued, gin.H{"command": command})
}

// SetManualRequest is an exported model for Swagger docs of the manual duty payload.
type SetManualRequest struct {
	// Heater duty in percent, 0..100
	Duty int `json:"duty" example:"40"`
}

// SetIndicatorRequest is an exported model for Swagger docs of the indicator payload.
type SetIndicatorRequest struct {
	R int `json:"r" example:"255"`
	G int `json:"g" example:"0"`
	B int `json:"b" example:"0"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get still state
// @Description  Latest controller snapshot; before the first tick, the last persisted snapshot or an IDLE baseline.
// @Tags         still
// @Produce      json
// @Success      200  {object}  models.SystemSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/still/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "still_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Start a run
// @Description  Queues SET_PHASE HEATING. Accepted only from IDLE.
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}  "status, command, state"
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/start [post]
// @Security     BearerAuth
func (h *Handler) startStill(c *gin.Context) {
	h.submit(c, "start", h.services.Control.Start)
}

// @Summary      Stop a run
// @Description  Queues SET_PHASE COOLDOWN.
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/stop [post]
// @Security     BearerAuth
func (h *Handler) stopStill(c *gin.Context) {
	h.submit(c, "stop", h.services.Control.Stop)
}

// @Summary      Reset a fault
// @Description  Queues RESET. Rejected by the controller unless the still is below the safe-handle temperature.
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/reset [post]
// @Security     BearerAuth
func (h *Handler) resetStill(c *gin.Context) {
	h.submit(c, "reset", h.services.Control.Reset)
}

// @Summary      Shut the controller down
// @Description  Queues SHUTDOWN: heater off, final snapshot, control loop ends.
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/shutdown [post]
// @Security     BearerAuth
func (h *Handler) shutdownStill(c *gin.Context) {
	h.submit(c, "shutdown", h.services.Control.Shutdown)
}

// @Summary      Set manual duty
// @Description  Replaces the phase duty until cleared. Still subject to safety limits.
// @Tags         still
// @Accept       json
// @Produce      json
// @Param        body  body   SetManualRequest  true  "Manual duty payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/still/manual [post]
// @Security     BearerAuth
func (h *Handler) setManualDuty(c *gin.Context) {
	var req service.ManualParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.submit(c, "manual", func(ctx context.Context) error {
		return h.services.Control.SetManualDuty(ctx, *req.Duty)
	})
}

// @Summary      Clear manual duty
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/manual [delete]
// @Security     BearerAuth
func (h *Handler) clearManual(c *gin.Context) {
	h.submit(c, "clear_manual", h.services.Control.ClearManual)
}

// @Summary      Set indicator colour
// @Description  Overrides the phase colour of the status LED until cleared. FAULT always shows its own colour.
// @Tags         still
// @Accept       json
// @Produce      json
// @Param        body  body   SetIndicatorRequest  true  "RGB components, 0..255 each"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/still/indicator [put]
// @Security     BearerAuth
func (h *Handler) setIndicator(c *gin.Context) {
	var req service.IndicatorParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.submit(c, "indicator", func(ctx context.Context) error {
		return h.services.Control.SetIndicator(ctx, uint8(*req.R), uint8(*req.G), uint8(*req.B))
	})
}

// @Summary      Clear indicator colour
// @Tags         still
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/still/indicator [delete]
// @Security     BearerAuth
func (h *Handler) clearIndicator(c *gin.Context) {
	h.submit(c, "clear_indicator", h.services.Control.ClearIndicator)
}
