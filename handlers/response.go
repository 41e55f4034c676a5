package handlers

import (
	"context"
	"errors"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// requestContext carries the caller's bearer token to backend calls
func requestContext(c *fiber.Ctx) context.Context {
	return services.WithBearerToken(c.UserContext(), c.Get(fiber.HeaderAuthorization))
}

func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// fail writes err in the response envelope. Service errors keep their category's
// status; validation failures list the offending fields.
func fail(c *fiber.Ctx, err error) error {
	var serviceErr *shared.ServiceError
	if !errors.As(err, &serviceErr) {
		logrus.WithError(err).WithField("path", c.Path()).Error("Request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	status := serviceErr.HTTPStatus()
	body := fiber.Map{
		"success": false,
		"error":   serviceErr.Message,
		"code":    serviceErr.Code,
	}
	if fields, ok := shared.AsValidationErrors(err); ok {
		body["fields"] = fields
	} else if serviceErr.Details != nil {
		body["details"] = serviceErr.Details
	}
	if status >= fiber.StatusInternalServerError {
		serviceErr.LogError()
	}
	return c.Status(status).JSON(body)
}
