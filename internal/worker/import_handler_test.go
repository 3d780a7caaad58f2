package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"crew-import/internal/models"
	"crew-import/internal/service"

	"github.com/hibiken/asynq"
	"gotest.tools/assert"
)

type fakeImporter struct {
	got service.ImportRequest
	err error
}

func (f *fakeImporter) Import(_ context.Context, req service.ImportRequest) (*models.ImportResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImportResult{BatchID: req.BatchID, Summary: models.ImportSummary{Total: len(req.Rows), OK: len(req.Rows)}}, nil
}

func TestNewImportTask(t *testing.T) {
	task, err := NewImportTask(ImportPayload{
		BatchID: "b-1",
		Entity:  "jobs",
		Rows:    []models.Row{{"Job Name": "North"}},
		Lines:   []int{3},
	})
	assert.NilError(t, err)
	assert.Equal(t, TypeImportRun, task.Type())

	var payload ImportPayload
	assert.NilError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "b-1", payload.BatchID)
	assert.Equal(t, "North", payload.Rows[0]["Job Name"])
	assert.DeepEqual(t, []int{3}, payload.Lines)
}

func TestHandleRunsImport(t *testing.T) {
	importer := &fakeImporter{}
	task, err := NewImportTask(ImportPayload{BatchID: "b-2", Entity: "tasks", Rows: []models.Row{{"Task Name": "Paint"}}, FirstLine: 5})
	assert.NilError(t, err)

	assert.NilError(t, NewImportTaskHandler(importer).Handle(context.Background(), task))
	assert.Equal(t, "b-2", importer.got.BatchID)
	assert.Equal(t, "tasks", importer.got.Entity)
	assert.Equal(t, service.SourceQueue, importer.got.Source)
	assert.Equal(t, 5, importer.got.FirstLine)
}

func TestHandleNeverRetries(t *testing.T) {
	importer := &fakeImporter{err: &service.InputError{Message: "rows[] required"}}
	task, err := NewImportTask(ImportPayload{BatchID: "b-3", Entity: "jobs", Source: service.SourceCSV})
	assert.NilError(t, err)

	err = NewImportTaskHandler(importer).Handle(context.Background(), task)
	assert.Equal(t, true, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, service.SourceCSV, importer.got.Source)

	err = NewImportTaskHandler(importer).Handle(context.Background(), asynq.NewTask(TypeImportRun, []byte("{")))
	assert.Equal(t, true, errors.Is(err, asynq.SkipRetry))
}
