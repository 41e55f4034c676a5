package handlers

import (
	"strings"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

type RegistrarHandler struct {
	Service *services.RegistrarService
}

func NewRegistrarHandler(service *services.RegistrarService) *RegistrarHandler {
	return &RegistrarHandler{Service: service}
}

// GetRegistrars returns the registrar directory
func (h *RegistrarHandler) GetRegistrars(c *fiber.Ctx) error {
	registrars, err := h.Service.List(requestContext(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, registrars)
}

func (h *RegistrarHandler) CreateRegistrar(c *fiber.Ctx) error {
	registrar, logo, err := readRegistrar(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	created, err := h.Service.Create(requestContext(c), registrar, logo)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, created)
}

func (h *RegistrarHandler) UpdateRegistrar(c *fiber.Ctx) error {
	registrar, logo, err := readRegistrar(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	updated, err := h.Service.Update(requestContext(c), c.Params("id"), registrar, logo)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, updated)
}

func (h *RegistrarHandler) DeleteRegistrar(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Service.Delete(requestContext(c), id); err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"id": id})
}

// readRegistrar accepts JSON, or multipart fields with an optional "logo" file
func readRegistrar(c *fiber.Ctx) (models.Registrar, *models.Attachment, error) {
	var registrar models.Registrar
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&registrar); err != nil {
			return registrar, nil, err
		}
		return registrar, nil, nil
	}

	registrar = models.Registrar{
		Name:        c.FormValue("name"),
		Logo:        c.FormValue("logo"),
		WebsiteLink: c.FormValue("websiteLink"),
		Description: c.FormValue("description"),
	}
	logo, err := readAttachment(c, "logo")
	if err != nil {
		return registrar, nil, err
	}
	return registrar, logo, nil
}
