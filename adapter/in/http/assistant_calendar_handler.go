package http

import (
	"time"

	"assistant_server/core/port/in"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CalendarHandler struct {
	calendarService in.CalendarService
}

func NewCalendarHandler(calendarService in.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

func (h *CalendarHandler) Register(app fiber.Router) {
	cal := app.Group("/calendar")
	cal.Get("/events", h.ListEvents)
	cal.Get("/events/next", h.NextEvent)
	cal.Get("/events/:id", h.GetEvent)
	cal.Post("/events", h.CreateEvent)
	cal.Put("/events/:id", h.UpdateEvent)
	cal.Delete("/events/:id", h.DeleteEvent)
	cal.Get("/availability", h.CheckAvailability)
	cal.Post("/sync/pending", h.ResyncPending)
}

func (h *CalendarHandler) ListEvents(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	pagination := GetPaginationParams(c, 50)
	req := &in.ListEventsRequest{
		Search: c.Query("search"),
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
	}

	if start, ok := parseDateQuery(c.Query("start_date")); ok {
		req.StartDate = &start
	}
	if end, ok := parseDateQuery(c.Query("end_date")); ok {
		req.EndDate = &end
	}

	// include_google merges the caller's own Google agenda into the listing.
	if c.QueryBool("include_google") {
		userID, err := GetUserID(c)
		if err != nil {
			return ErrorResponse(c, 401, "unauthorized")
		}
		req.IncludeRemote = true
		req.RemoteUserID = &userID
	}

	list, err := h.calendarService.ListEvents(c.Context(), tenantID, req)
	if err != nil {
		return ServiceErrorResponse(c, err, "list events")
	}

	return c.JSON(fiber.Map{
		"events": list.Events,
		"total":  list.Total,
	})
}

func (h *CalendarHandler) NextEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	event, err := h.calendarService.GetNextEvent(c.Context(), tenantID)
	if err != nil {
		return ServiceErrorResponse(c, err, "next event")
	}

	return c.JSON(fiber.Map{"event": event})
}

func (h *CalendarHandler) GetEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid event id")
	}

	event, err := h.calendarService.GetEvent(c.Context(), tenantID, eventID)
	if err != nil {
		return ServiceErrorResponse(c, err, "get event")
	}

	return c.JSON(event)
}

func (h *CalendarHandler) CreateEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req in.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	if req.CreatedBy == nil {
		req.CreatedBy = &userID
	}
	if req.SyncToGoogle && req.SyncUserID == nil {
		req.SyncUserID = &userID
	}
	if req.IdempotencyKey == nil {
		if key := c.Get("Idempotency-Key"); key != "" {
			req.IdempotencyKey = &key
		}
	}

	res, err := h.calendarService.CreateEvent(c.Context(), tenantID, &req)
	if err != nil {
		return ServiceErrorResponse(c, err, "create event")
	}

	// A duplicate clash is a first-class outcome, not an error. The caller
	// decides whether to retry with force_create.
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

func (h *CalendarHandler) UpdateEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid event id")
	}

	var req in.UpdateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	if req.SyncUserID == nil {
		if userID, err := GetUserID(c); err == nil {
			req.SyncUserID = &userID
		}
	}

	event, err := h.calendarService.UpdateEvent(c.Context(), tenantID, eventID, &req)
	if err != nil {
		return ServiceErrorResponse(c, err, "update event")
	}

	return c.JSON(event)
}

func (h *CalendarHandler) DeleteEvent(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid event id")
	}

	if err := h.calendarService.DeleteEvent(c.Context(), tenantID, eventID); err != nil {
		return ServiceErrorResponse(c, err, "delete event")
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *CalendarHandler) CheckAvailability(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	req := &in.AvailabilityRequest{
		Date:            c.Query("date"),
		Time:            c.Query("time"),
		DurationMinutes: c.QueryInt("duration_minutes", 0),
		Timezone:        c.Query("timezone"),
	}

	if c.QueryBool("include_google") {
		userID, err := GetUserID(c)
		if err != nil {
			return ErrorResponse(c, 401, "unauthorized")
		}
		req.RemoteUserID = &userID
	}

	result, err := h.calendarService.CheckAvailability(c.Context(), tenantID, req)
	if err != nil {
		return ServiceErrorResponse(c, err, "check availability")
	}

	return c.JSON(result)
}

func (h *CalendarHandler) ResyncPending(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	result, err := h.calendarService.ResyncPendingEvents(c.Context(), tenantID)
	if err != nil {
		return ServiceErrorResponse(c, err, "resync pending events")
	}

	return c.JSON(result)
}

// parseDateQuery accepts plain dates (2006-01-02) and RFC3339 timestamps.
func parseDateQuery(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
