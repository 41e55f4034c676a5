package handlers

import (
	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{Service: service}
}

func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.Service.List(requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, users)
}

// GetCustomers returns users with the plain user role
func (h *UserHandler) GetCustomers(c *fiber.Ctx) error {
	users, err := h.Service.Customers(requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, users)
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.Service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	var update models.UserUpdate
	if err := c.BodyParser(&update); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := h.Service.Update(requestContext(c), c.Params("id"), update)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, user)
}

type panDocumentsRequest struct {
	PANDocuments []models.PANDocument `json:"panDocuments"`
}

// UpdatePAN replaces the PAN documents of a user
func (h *UserHandler) UpdatePAN(c *fiber.Ctx) error {
	var req panDocumentsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := h.Service.UpdatePAN(requestContext(c), c.Params("id"), req.PANDocuments)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Service.Delete(requestContext(c), id); err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"id": id})
}
