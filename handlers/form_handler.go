package handlers

import (
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// FormHandler runs the IPO form reducer for clients that keep no form logic of their own
type FormHandler struct {
	Registrars *services.RegistrarService
	Utility    *services.UtilityService
	Now        func() time.Time
}

func NewFormHandler(registrars *services.RegistrarService) *FormHandler {
	return &FormHandler{
		Registrars: registrars,
		Utility:    services.NewUtilityService(),
		Now:        time.Now,
	}
}

// NewForm returns the initial state of a create form
func (h *FormHandler) NewForm(c *fiber.Ctx) error {
	ipoType := models.IPOType(strings.ToUpper(c.Query("ipoType", string(models.IPOTypeMainboard))))
	state := services.NewIPOForm(ipoType, h.Now())
	return success(c, fiber.StatusOK, fiber.Map{
		"state":   state,
		"summary": services.SummarizeIPOForm(state),
	})
}

type formEventRequest struct {
	State  models.IPOViewModel  `json:"state"`
	Event  *services.FormEvent  `json:"event"`
	Events []services.FormEvent `json:"events"`
	Mode   string               `json:"mode"`
}

// ApplyEvents folds one event, or a batch, into the posted state
func (h *FormHandler) ApplyEvents(c *fiber.Ctx) error {
	var req formEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}
	events := req.Events
	if req.Event != nil {
		events = append([]services.FormEvent{*req.Event}, events...)
	}
	if len(events) == 0 {
		return badRequest(c, "event is required")
	}

	formCtx := services.FormContext{IsEdit: strings.EqualFold(req.Mode, "edit")}
	if h.Registrars != nil {
		directory, err := h.Registrars.Directory(requestContext(c))
		if err != nil {
			// Registrar autofill is a convenience; the form still works without it
			logrus.WithError(err).Warn("Registrar directory unavailable for form events")
		} else {
			formCtx.Registrars = directory
		}
	}

	state, err := services.ReduceIPOFormEvents(req.State, events, formCtx)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"state":   state,
		"summary": services.SummarizeIPOForm(state),
	})
}

// Timeline derives the schedule for an open date
func (h *FormHandler) Timeline(c *fiber.Ctx) error {
	raw := c.Query("open_date")
	if raw == "" {
		return badRequest(c, "open_date is required")
	}
	open := h.Utility.ParseDate(raw)
	if open == nil {
		return badRequest(c, "open_date is not a valid date")
	}
	tl := services.DeriveTimeline(*open)
	return success(c, fiber.StatusOK, fiber.Map{
		"timeline":        tl,
		"suggestedStatus": services.SuggestedStatus(tl, h.Now()),
	})
}
