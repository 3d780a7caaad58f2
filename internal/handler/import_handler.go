package handler

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"crew-import/internal/config"
	"crew-import/internal/models"
	"crew-import/internal/service"
	"crew-import/internal/utils"
	"crew-import/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ImportHandler struct {
	importService *service.ImportService
	csvService    *service.CSVService
	excelService  *service.ExcelService
	queue         Enqueuer
	cfg           *config.Config
}

// NewImportHandler takes a nil queue when Redis is unavailable; async
// imports are then refused.
func NewImportHandler(
	importService *service.ImportService,
	csvService *service.CSVService,
	excelService *service.ExcelService,
	queue Enqueuer,
	cfg *config.Config,
) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		csvService:    csvService,
		excelService:  excelService,
		queue:         queue,
		cfg:           cfg,
	}
}

// Import handles POST /api/crew/:entity with a JSON body of rows.
func (h *ImportHandler) Import(c *fiber.Ctx) error {
	var body models.ImportRequest
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	return h.run(c, service.ImportRequest{
		Entity:    c.Params("entity"),
		Source:    service.SourceJSON,
		Rows:      body.Rows,
		FirstLine: body.FirstLine,
	})
}

// Upload handles POST /api/crew/:entity/upload with a CSV or XLSX file.
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File is required", err)
	}

	if file.Size > int64(h.cfg.UploadMaxSize) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File size exceeds maximum limit", nil)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".csv" && ext != ".xlsx" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only .csv and .xlsx files are allowed", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read file", err)
	}

	var (
		parsed *service.ParsedFile
		source string
	)
	if ext == ".xlsx" {
		parsed, err = h.excelService.ParseUpload(data)
		source = service.SourceXLSX
	} else {
		parsed, err = h.csvService.Parse(data)
		source = service.SourceCSV
	}
	if err != nil {
		return h.fail(c, c.Params("entity"), err)
	}

	return h.run(c, service.ImportRequest{
		Entity: c.Params("entity"),
		Source: source,
		Rows:   parsed.Rows,
		Lines:  parsed.Lines,
	})
}

func (h *ImportHandler) run(c *fiber.Ctx, req service.ImportRequest) error {
	if c.QueryBool("async") {
		return h.enqueue(c, req)
	}

	result, err := h.importService.Import(c.UserContext(), req)
	if result == nil {
		return h.fail(c, req.Entity, err)
	}

	return c.JSON(fiber.Map{
		"batch_id": result.BatchID,
		"summary":  result.Summary,
		"results":  result.Results,
	})
}

func (h *ImportHandler) enqueue(c *fiber.Ctx, req service.ImportRequest) error {
	if err := h.importService.Check(req.Entity, req.Rows); err != nil {
		return h.fail(c, req.Entity, err)
	}
	if h.queue == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Background import is not available (Redis not connected)", nil)
	}

	batchID := uuid.New().String()
	task, err := worker.NewImportTask(worker.ImportPayload{
		BatchID:   batchID,
		Entity:    strings.ToLower(req.Entity),
		Source:    req.Source,
		Rows:      req.Rows,
		FirstLine: req.FirstLine,
		Lines:     req.Lines,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue import", err)
	}

	info, err := h.queue.Enqueue(task)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue import", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.Response{
		Success: true,
		Message: "Import queued",
		Data: fiber.Map{
			"batch_id": batchID,
			"job_id":   info.ID,
			"rows":     len(req.Rows),
		},
	})
}

// fail maps a batch-fatal error to its status, with a fix hint.
func (h *ImportHandler) fail(c *fiber.Ctx, entity string, err error) error {
	status := service.StatusCode(err)
	if errors.Is(err, service.ErrUnknownEntity) {
		return utils.ErrorResponse(c, status, "Unknown import type", err)
	}
	return utils.ErrorResponseWithHint(c, status, err.Error(), h.importService.Hint(entity, err), nil)
}
