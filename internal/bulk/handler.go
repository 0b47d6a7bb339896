package bulk

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadcall_backend/platform/apperr"
	"leadcall_backend/platform/httpkit"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/validator"
)

// Handler exposes the bulk schedule API.
type Handler struct {
	service *Service
	val     *validator.Validator
	log     *logger.Logger
}

// NewHandler creates the bulk HTTP handler.
func NewHandler(service *Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

type startScheduleRequest struct {
	LeadIDs              []uuid.UUID `json:"leadIds" validate:"required,min=1,dive,required"`
	RequestedStart       *time.Time  `json:"requestedStart"`
	ParallelCalls        int         `json:"parallelCalls" validate:"required,min=1"`
	BatchIntervalSeconds int         `json:"batchIntervalSeconds" validate:"min=0"`
}

// HandleStartSchedule handles POST /api/v1/bulk-calls.
func (h *Handler) HandleStartSchedule(c *gin.Context) {
	var req startScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, h.log, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, h.log, apperr.Validation(err.Error()))
		return
	}

	start := time.Time{}
	if req.RequestedStart != nil {
		start = *req.RequestedStart
	}

	scheduleID, err := h.service.Start(c.Request.Context(), StartRequest{
		LeadIDs:        req.LeadIDs,
		RequestedStart: start,
		ParallelCalls:  req.ParallelCalls,
		BatchInterval:  time.Duration(req.BatchIntervalSeconds) * time.Second,
	})
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.Created(c, gin.H{"scheduleId": scheduleID})
}

// HandleGetProgress handles GET /api/v1/bulk-calls/:scheduleId.
func (h *Handler) HandleGetProgress(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("scheduleId"))
	if err != nil {
		httpkit.HandleError(c, h.log, apperr.BadRequest("invalid schedule id"))
		return
	}

	progress, err := h.service.Progress(c.Request.Context(), scheduleID)
	if errors.Is(err, ErrScheduleNotFound) {
		httpkit.HandleError(c, h.log, apperr.NotFound("bulk schedule not found"))
		return
	}
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.OK(c, progress)
}

// HandleListSchedules handles GET /api/v1/bulk-calls.
func (h *Handler) HandleListSchedules(c *gin.Context) {
	schedules, err := h.service.List(c.Request.Context(), 50)
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	httpkit.OK(c, gin.H{"schedules": schedules})
}

// HandleCancelSchedule handles DELETE /api/v1/bulk-calls/:scheduleId.
func (h *Handler) HandleCancelSchedule(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("scheduleId"))
	if err != nil {
		httpkit.HandleError(c, h.log, apperr.BadRequest("invalid schedule id"))
		return
	}

	err = h.service.Cancel(c.Request.Context(), scheduleID)
	if errors.Is(err, ErrScheduleNotFound) {
		httpkit.HandleError(c, h.log, apperr.NotFound("bulk schedule not found"))
		return
	}
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.OK(c, gin.H{"cancelled": true})
}
