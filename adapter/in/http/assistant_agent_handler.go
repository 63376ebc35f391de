package http

import (
	"context"
	"errors"

	"assistant_server/core/domain"
	"assistant_server/core/port/in"
	"assistant_server/core/port/out"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AgentHandler serves the conversational agent backend. Requests arrive with a
// tenant-scoped service token and identify the household member by phone, so
// every endpoint resolves the phone to a user before touching the calendar.
type AgentHandler struct {
	calendarService in.CalendarService
	users           out.UserDirectory
	detector        out.EventDetectorPort
}

func NewAgentHandler(calendarService in.CalendarService, users out.UserDirectory, detector out.EventDetectorPort) *AgentHandler {
	return &AgentHandler{
		calendarService: calendarService,
		users:           users,
		detector:        detector,
	}
}

func (h *AgentHandler) Register(app fiber.Router) {
	agent := app.Group("/agent")
	agent.Post("/events", h.CreateEvent)
	agent.Post("/events/list", h.ListEvents)
	agent.Post("/availability", h.CheckAvailability)
	agent.Post("/detect", h.DetectEvent)
}

type agentEventRequest struct {
	UserPhone       string  `json:"user_phone"`
	Title           string  `json:"title"`
	Description     *string `json:"description,omitempty"`
	Location        *string `json:"location,omitempty"`
	Date            string  `json:"date"`
	Time            string  `json:"time,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Timezone        string  `json:"timezone,omitempty"`
	IdempotencyKey  *string `json:"idempotency_key,omitempty"`
	ForceCreate     bool    `json:"force_create,omitempty"`
}

func (h *AgentHandler) CreateEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req agentEventRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	user, err := h.resolveUser(c.Context(), tenantID, req.UserPhone)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent create event")
	}

	createReq := &in.CreateEventRequest{
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
		CreatedBy:       &user.ID,
		IdempotencyKey:  req.IdempotencyKey,
		SyncToGoogle:    true,
		SyncUserID:      &user.ID,
		ForceCreate:     req.ForceCreate,
	}

	res, err := h.calendarService.CreateEvent(c.Context(), tenantID, createReq)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent create event")
	}

	// The agent relays the warning verbatim and retries with force_create
	// when the user confirms.
	if !res.Created {
		return c.JSON(fiber.Map{
			"created":   false,
			"duplicate": res.Duplicate,
			"message":   res.Duplicate.Message,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created": true,
		"event":   res.Event,
	})
}

type agentListRequest struct {
	UserPhone     string `json:"user_phone"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	Search        string `json:"search,omitempty"`
	IncludeGoogle bool   `json:"include_google,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

func (h *AgentHandler) ListEvents(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req agentListRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	user, err := h.resolveUser(c.Context(), tenantID, req.UserPhone)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent list events")
	}

	listReq := &in.ListEventsRequest{
		Search: req.Search,
		Limit:  req.Limit,
	}
	if start, ok := parseDateQuery(req.StartDate); ok {
		listReq.StartDate = &start
	}
	if end, ok := parseDateQuery(req.EndDate); ok {
		listReq.EndDate = &end
	}
	if req.IncludeGoogle {
		listReq.IncludeRemote = true
		listReq.RemoteUserID = &user.ID
	}

	list, err := h.calendarService.ListEvents(c.Context(), tenantID, listReq)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent list events")
	}

	return c.JSON(fiber.Map{
		"events": list.Events,
		"total":  list.Total,
	})
}

type agentAvailabilityRequest struct {
	UserPhone       string `json:"user_phone"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
	IncludeGoogle   bool   `json:"include_google,omitempty"`
}

func (h *AgentHandler) CheckAvailability(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req agentAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	user, err := h.resolveUser(c.Context(), tenantID, req.UserPhone)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent availability")
	}

	availReq := &in.AvailabilityRequest{
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
	}
	if req.IncludeGoogle {
		availReq.RemoteUserID = &user.ID
	}

	result, err := h.calendarService.CheckAvailability(c.Context(), tenantID, availReq)
	if err != nil {
		return ServiceErrorResponse(c, err, "agent availability")
	}

	return c.JSON(result)
}

type agentDetectRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func (h *AgentHandler) DetectEvent(c *fiber.Ctx) error {
	if _, err := GetTenantID(c); err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	if h.detector == nil {
		return ErrorResponseWithCode(c, fiber.StatusServiceUnavailable, "DETECTOR_DISABLED", "event detection is not configured")
	}

	var req agentDetectRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.Message == "" {
		return ErrorResponse(c, 400, "message required")
	}

	result, err := h.detector.DetectEvent(c.Context(), req.Message, req.Context)
	if err != nil {
		return ServiceErrorResponse(c, err, "detect event")
	}

	return c.JSON(result)
}

// resolveUser maps a phone to an active member of the caller's tenant.
func (h *AgentHandler) resolveUser(ctx context.Context, tenantID uuid.UUID, phone string) (*domain.User, error) {
	if phone == "" {
		return nil, apperr.MissingField("user_phone")
	}

	user, err := h.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("user").WithDetail("phone", phone)
		}
		return nil, apperr.DatabaseError("resolve user", err)
	}
	if user.TenantID != tenantID {
		logger.Warn("[Agent] Phone %s resolved outside tenant %s", phone, tenantID)
		return nil, apperr.NotFound("user").WithDetail("phone", phone)
	}
	return user, nil
}
