package worker

import (
	"encoding/json"
	"fmt"

	"crew-import/internal/models"

	"github.com/hibiken/asynq"
)

const TypeImportRun = "import:run"

// ImportPayload is a queued batch. The rows travel with the task so the
// worker never needs the original upload.
type ImportPayload struct {
	BatchID   string       `json:"batch_id"`
	Entity    string       `json:"entity"`
	Source    string       `json:"source"`
	Rows      []models.Row `json:"rows"`
	FirstLine int          `json:"first_line"`
	Lines     []int        `json:"lines,omitempty"`
}

// NewImportTask builds a task that runs once; a failed batch is never
// replayed against the upstream.
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode import payload: %w", err)
	}
	return asynq.NewTask(TypeImportRun, data, asynq.MaxRetry(0), asynq.TaskID(payload.BatchID)), nil
}
