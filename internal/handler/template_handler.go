package handler

import (
	"errors"
	"fmt"

	"crew-import/internal/service"
	"crew-import/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type TemplateHandler struct {
	templateService *service.TemplateService
}

func NewTemplateHandler(templateService *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// Download serves GET /api/templates/:entity.
func (h *TemplateHandler) Download(c *fiber.Ctx) error {
	return h.send(c, c.Params("entity"), fiber.StatusNotFound)
}

// DownloadByQuery serves GET /api/imports/template?entity=.
func (h *TemplateHandler) DownloadByQuery(c *fiber.Ctx) error {
	entity := c.Query("entity")
	if entity == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "entity is required", nil)
	}
	return h.send(c, entity, fiber.StatusBadRequest)
}

func (h *TemplateHandler) send(c *fiber.Ctx, entity string, unknownStatus int) error {
	template, err := h.templateService.Render(entity, c.Query("format"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownEntity) {
			return utils.ErrorResponse(c, unknownStatus, "Unknown template", err)
		}
		return utils.ErrorResponse(c, service.StatusCode(err), "Failed to generate template", err)
	}

	c.Set(fiber.HeaderContentType, template.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", template.Filename))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(template.Body)
}
