package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
)

// ReminderHandler exposes manual reminder sweeps
type ReminderHandler struct {
	BaseHandler
	scheduler *scheduler.ReminderScheduler
}

// NewReminderHandler creates a new ReminderHandler
func NewReminderHandler(s *scheduler.ReminderScheduler) *ReminderHandler {
	return &ReminderHandler{scheduler: s}
}

// Sweep handles POST /reminders/sweep. It runs one sweep synchronously and
// returns its counts; a sweep already in progress answers 409.
func (h *ReminderHandler) Sweep(c *gin.Context) {
	result, err := h.scheduler.TriggerNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrSweepInProgress) {
			h.ErrorWithCode(c, dto.ErrCodeSweepInProgress, "A reminder sweep is already running")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
