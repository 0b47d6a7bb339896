package leads

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/apperr"
	"leadcall_backend/platform/httpkit"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/validator"
)

// Handler exposes the lead management API.
type Handler struct {
	service *Service
	val     *validator.Validator
	log     *logger.Logger
}

// NewHandler creates the leads HTTP handler.
func NewHandler(service *Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

type createLeadRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=200"`
	Phone          string `json:"phone" validate:"required"`
	WhatsAppNumber string `json:"whatsappNumber"`
	Email          string `json:"email" validate:"omitempty,email"`
	MaxRetryCount  int    `json:"maxRetryCount" validate:"min=0,max=10"`
}

// HandleCreateLead handles POST /api/v1/leads.
func (h *Handler) HandleCreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, h.log, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, h.log, apperr.Validation(err.Error()))
		return
	}

	lead, err := h.service.Create(c.Request.Context(), CreateInput{
		Name:           req.Name,
		Phone:          req.Phone,
		WhatsAppNumber: req.WhatsAppNumber,
		Email:          req.Email,
		MaxRetryCount:  req.MaxRetryCount,
	})
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.Created(c, lead)
}

// HandleListLeads handles GET /api/v1/leads.
func (h *Handler) HandleListLeads(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50, 1, 200)
	offset := parseIntDefault(c.Query("offset"), 0, 0, 1<<20)

	leads, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	if leads == nil {
		leads = []leadstore.Lead{}
	}
	httpkit.OK(c, gin.H{"leads": leads})
}

// HandleGetLead handles GET /api/v1/leads/:leadId.
func (h *Handler) HandleGetLead(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	lead, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, leadstore.ErrNotFound) {
		httpkit.HandleError(c, h.log, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.OK(c, lead)
}

// HandleDeleteLead handles DELETE /api/v1/leads/:leadId.
func (h *Handler) HandleDeleteLead(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	err := h.service.Delete(c.Request.Context(), id)
	if errors.Is(err, leadstore.ErrNotFound) {
		httpkit.HandleError(c, h.log, apperr.NotFound("lead not found"))
		return
	}
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	httpkit.NoContent(c)
}

// HandleForceCall handles POST /api/v1/leads/:leadId/call.
func (h *Handler) HandleForceCall(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}
	err := h.service.ForceCall(c.Request.Context(), id)
	switch {
	case errors.Is(err, leadstore.ErrNotFound):
		httpkit.HandleError(c, h.log, apperr.NotFound("lead not found"))
	case errors.Is(err, engine.ErrAlreadyActive):
		httpkit.HandleError(c, h.log, apperr.Conflict("lead already has an active engagement"))
	case errors.Is(err, engine.ErrNotEligible):
		httpkit.HandleError(c, h.log, apperr.Conflict("lead engagement already finished"))
	case err != nil:
		httpkit.HandleError(c, h.log, err)
	default:
		httpkit.OK(c, gin.H{"initiated": true})
	}
}

// HandlePendingJobs handles GET /api/v1/jobs.
func (h *Handler) HandlePendingJobs(c *gin.Context) {
	pending, err := h.service.PendingJobs(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, h.log, err)
		return
	}
	if pending == nil {
		pending = []jobs.Job{}
	}
	httpkit.OK(c, gin.H{"jobs": pending})
}

// HandleRetryConfig handles GET /api/v1/retry-config.
func (h *Handler) HandleRetryConfig(c *gin.Context) {
	httpkit.OK(c, h.service.RetryConfig())
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.HandleError(c, h.log, apperr.BadRequest("invalid lead id"))
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
