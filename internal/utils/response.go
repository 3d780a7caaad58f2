package utils

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the JSON envelope shared by every non-import endpoint.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Hint    string      `json:"hint,omitempty"`
}

func SuccessResponse(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}
	return c.Status(status).JSON(response)
}

// ErrorResponseWithHint adds a fix hint the caller can show next to the error.
func ErrorResponseWithHint(c *fiber.Ctx, status int, message, hint string, err error) error {
	response := Response{
		Success: false,
		Message: message,
		Hint:    hint,
	}
	if err != nil {
		response.Error = err.Error()
	}
	return c.Status(status).JSON(response)
}
