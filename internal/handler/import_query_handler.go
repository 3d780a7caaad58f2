package handler

import (
	"errors"
	"fmt"
	"time"

	"crew-import/internal/models"
	"crew-import/internal/repository"
	"crew-import/internal/service"
	"crew-import/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ImportQueryHandler serves what is known about past and running imports.
// Either repository may be nil when its backing store is down.
type ImportQueryHandler struct {
	registry     *service.Registry
	history      *repository.ImportRepository
	state        *repository.StateRepository
	excelService *service.ExcelService
}

func NewImportQueryHandler(
	registry *service.Registry,
	history *repository.ImportRepository,
	state *repository.StateRepository,
	excelService *service.ExcelService,
) *ImportQueryHandler {
	return &ImportQueryHandler{
		registry:     registry,
		history:      history,
		state:        state,
		excelService: excelService,
	}
}

func (h *ImportQueryHandler) GetEntities(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, "Entities retrieved successfully", h.registry.Schemas())
}

func (h *ImportQueryHandler) GetHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Import history is not available (database not connected)", nil)
	}

	params := utils.GetPaginationParams(c)
	runs, total, err := h.history.GetRuns(params.Limit, utils.GetOffset(params.Page, params.Limit), params.Entity)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get import history", err)
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}

	pagination := utils.CalculatePagination(params.Page, params.Limit, int64(total))
	return utils.PaginatedResponseBuilder(c, "Import history retrieved successfully", runs, pagination)
}

func (h *ImportQueryHandler) ExportHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Import history is not available (database not connected)", nil)
	}

	runs, _, err := h.history.GetRuns(10000, 0, c.Query("entity"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get import history", err)
	}

	body, err := h.excelService.ExportImportRuns(runs)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export import history", err)
	}

	filename := fmt.Sprintf("import_history_%s.xlsx", time.Now().Format("20060102_150405"))
	return sendXLSX(c, filename, body)
}

func (h *ImportQueryHandler) GetResult(c *fiber.Ctx) error {
	result, err := h.result(c)
	if err != nil {
		return h.resultError(c, err)
	}
	return utils.SuccessResponse(c, "Import result retrieved successfully", result)
}

func (h *ImportQueryHandler) GetProgress(c *fiber.Ctx) error {
	if h.state == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Progress tracking is not available (Redis not connected)", nil)
	}

	progress, err := h.state.GetProgress(c.UserContext(), c.Params("batch_id"))
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Import not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get progress", err)
	}
	return utils.SuccessResponse(c, "Progress retrieved successfully", progress)
}

// DownloadReport serves the failed rows of a stored result as a workbook.
func (h *ImportQueryHandler) DownloadReport(c *fiber.Ctx) error {
	result, err := h.result(c)
	if err != nil {
		return h.resultError(c, err)
	}

	label := result.Entity
	if schema, err := h.registry.Schema(result.Entity); err == nil {
		label = schema.Label
	}

	body, err := h.excelService.GenerateErrorReport(label, result)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate report", err)
	}
	return sendXLSX(c, fmt.Sprintf("%s_errors_%s.xlsx", result.Entity, result.BatchID), body)
}

func (h *ImportQueryHandler) GetState(c *fiber.Ctx) error {
	schema, err := h.registry.Schema(c.Params("entity"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown import type", err)
	}
	if h.state == nil {
		return utils.SuccessResponse(c, "Upload state retrieved successfully", models.UploadState{
			Entity: schema.Key,
			Errors: []models.RowOutcome{},
		})
	}

	state, err := h.state.GetState(c.UserContext(), schema.Key)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get upload state", err)
	}
	return utils.SuccessResponse(c, "Upload state retrieved successfully", state)
}

func (h *ImportQueryHandler) result(c *fiber.Ctx) (*models.ImportResult, error) {
	if h.state == nil {
		return nil, errStateUnavailable
	}
	return h.state.GetResult(c.UserContext(), c.Params("batch_id"))
}

var errStateUnavailable = errors.New("result storage is not available (Redis not connected)")

func (h *ImportQueryHandler) resultError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errStateUnavailable):
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Import results are not available", err)
	case errors.Is(err, repository.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Import not found", nil)
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get import result", err)
}

func sendXLSX(c *fiber.Ctx, filename string, body []byte) error {
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(body)
}
