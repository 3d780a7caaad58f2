package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"crew-import/internal/models"
	"crew-import/internal/service"
	"crew-import/internal/utils"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Importer is the slice of the import service the worker calls.
type Importer interface {
	Import(ctx context.Context, req service.ImportRequest) (*models.ImportResult, error)
}

type ImportTaskHandler struct {
	importer Importer
	logger   *logrus.Logger
}

func NewImportTaskHandler(importer Importer) *ImportTaskHandler {
	return &ImportTaskHandler{importer: importer, logger: utils.GetLogger()}
}

func (h *ImportTaskHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ImportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := h.logger.WithFields(logrus.Fields{
		"batch_id": payload.BatchID,
		"entity":   payload.Entity,
		"rows":     len(payload.Rows),
	})
	logger.Info("Starting queued import")

	source := payload.Source
	if source == "" {
		source = service.SourceQueue
	}
	result, err := h.importer.Import(ctx, service.ImportRequest{
		Entity:    payload.Entity,
		BatchID:   payload.BatchID,
		Source:    source,
		Rows:      payload.Rows,
		FirstLine: payload.FirstLine,
		Lines:     payload.Lines,
	})
	if err != nil {
		logger.WithError(err).Warn("Queued import failed")
		return fmt.Errorf("import %s: %v: %w", payload.BatchID, err, asynq.SkipRetry)
	}

	logger.WithFields(logrus.Fields{
		"ok":     result.Summary.OK,
		"failed": result.Summary.Failed,
	}).Info("Queued import completed")
	return nil
}
