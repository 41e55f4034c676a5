package handlers

import (
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

// DraftHandler exposes submissions the backend did not accept
type DraftHandler struct {
	Drafts    *services.DraftService
	Submitter services.DraftSubmitter
}

func NewDraftHandler(drafts *services.DraftService, submitter services.DraftSubmitter) *DraftHandler {
	return &DraftHandler{Drafts: drafts, Submitter: submitter}
}

func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	draft, err := h.Drafts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, draft)
}

// RetryDraft submits a draft again with the caller's token
func (h *DraftHandler) RetryDraft(c *fiber.Ctx) error {
	result, err := h.Drafts.RetryDraft(requestContext(c), c.Params("id"), h.Submitter)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

func (h *DraftHandler) DiscardDraft(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Drafts.Discard(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"id": id})
}
