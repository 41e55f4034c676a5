package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/gofiber/fiber/v2"
)

// maxIconSize bounds uploaded icons
const maxIconSize = 5 << 20

type IPOHandler struct {
	Service *services.CachedIPOService
	Export  *services.ExportService
}

func NewIPOHandler(service *services.CachedIPOService, export *services.ExportService) *IPOHandler {
	return &IPOHandler{Service: service, Export: export}
}

// tableQuery reads the list filters shared by the table and the export
func tableQuery(c *fiber.Ctx) services.TableQuery {
	return services.TableQuery{
		Status:  c.Query("status"),
		IPOType: c.Query("ipoType"),
		Page:    c.QueryInt("page", 1),
		Limit:   c.QueryInt("limit", 20),
		Search:  c.Query("q"),
		Sort:    c.Query("sort"),
		Order:   c.Query("order", "asc"),
	}
}

func (h *IPOHandler) category(c *fiber.Ctx) (services.Resource, error) {
	return services.ParseCategory(c.Params("category"))
}

// GetIPOs returns one page of table rows for a category
func (h *IPOHandler) GetIPOs(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	page, err := h.Service.ListTable(requestContext(c), category, tableQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, page)
}

// ExportIPOs streams the filtered table as an xlsx workbook
func (h *IPOHandler) ExportIPOs(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	export, err := h.Export.ExportCategory(requestContext(c), category, tableQuery(c))
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, services.XLSXContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	return c.Status(fiber.StatusOK).Send(export.Content)
}

// GetIPOForm returns a record as the edit form's initial state
func (h *IPOHandler) GetIPOForm(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	vm, err := h.Service.GetForm(requestContext(c), category, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"form":    vm,
		"summary": services.SummarizeIPOForm(vm),
	})
}

// CreateIPO submits a new record
func (h *IPOHandler) CreateIPO(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	vm, icon, err := readIPOSubmission(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	result, err := h.Service.Create(requestContext(c), category, vm, icon)
	return submitted(c, fiber.StatusCreated, result, err)
}

// UpdateIPO replaces a record with the submitted form
func (h *IPOHandler) UpdateIPO(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	vm, icon, err := readIPOSubmission(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	result, err := h.Service.Update(requestContext(c), category, c.Params("id"), vm, icon)
	return submitted(c, fiber.StatusOK, result, err)
}

// UpdateIPOSection saves one section of a record
func (h *IPOHandler) UpdateIPOSection(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	section, err := services.ParseFormSection(c.Params("section"))
	if err != nil {
		return fail(c, err)
	}
	var vm models.IPOViewModel
	if err := c.BodyParser(&vm); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}
	if err := h.Service.UpdateSection(requestContext(c), category, c.Params("id"), section, vm); err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"section": section})
}

// DeleteIPO removes a record
func (h *IPOHandler) DeleteIPO(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	id := c.Params("id")
	if err := h.Service.Delete(requestContext(c), category, id); err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"id": id})
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteIPOs removes several records. Partial failures are reported per id.
func (h *IPOHandler) BulkDeleteIPOs(c *fiber.Ctx) error {
	category, err := h.category(c)
	if err != nil {
		return fail(c, err)
	}
	var req bulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids must not be empty")
	}
	result, err := h.Service.BulkDelete(requestContext(c), category, req.IDs)
	if err != nil {
		if len(result.Deleted) > 0 {
			return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
				"data":    result,
			})
		}
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

// submitted writes a create or update outcome. A failed submission kept as a
// draft carries its draft id in the error details.
func submitted(c *fiber.Ctx, status int, result services.SubmitResult, err error) error {
	if err != nil {
		return fail(c, err)
	}
	return success(c, status, result)
}

// readIPOSubmission accepts a JSON view model, or multipart with a "form" JSON
// field and an optional "icon" file
func readIPOSubmission(c *fiber.Ctx) (models.IPOViewModel, *models.Attachment, error) {
	var vm models.IPOViewModel
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&vm); err != nil {
			return vm, nil, fmt.Errorf("invalid request body: %w", err)
		}
		return vm, nil, nil
	}

	form := c.FormValue("form")
	if form == "" {
		return vm, nil, fmt.Errorf("multipart submissions need a form field")
	}
	if err := json.Unmarshal([]byte(form), &vm); err != nil {
		return vm, nil, fmt.Errorf("invalid form field: %w", err)
	}
	icon, err := readAttachment(c, "icon")
	if err != nil {
		return vm, nil, err
	}
	return vm, icon, nil
}

// readAttachment loads an optional uploaded file
func readAttachment(c *fiber.Ctx, field string) (*models.Attachment, error) {
	header, err := c.FormFile(field)
	if err != nil {
		// fasthttp reports a missing part as an error
		return nil, nil
	}
	if header.Size > maxIconSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", field, maxIconSize)
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return &models.Attachment{
		FieldName:   field,
		FileName:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}
