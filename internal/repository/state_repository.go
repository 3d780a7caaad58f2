package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"crew-import/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a stored result has expired or never existed.
var ErrNotFound = errors.New("not found")

// Progress is how far a running batch has got.
type Progress struct {
	BatchID string  `json:"batch_id"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// StateRepository keeps the per-entity upload state, batch progress and
// finished results in Redis. Every key expires after ttl.
type StateRepository struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewStateRepository(redis *redis.Client, ttl time.Duration) *StateRepository {
	return &StateRepository{redis: redis, ttl: ttl, now: time.Now}
}

func stateKey(entity string) string {
	return fmt.Sprintf("import:state:%s", entity)
}

func resultKey(batchID string) string {
	return fmt.Sprintf("import:result:%s", batchID)
}

func progressKey(batchID string) string {
	return fmt.Sprintf("import:progress:%s", batchID)
}

func (r *StateRepository) setJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, key, data, r.ttl).Err()
}

func (r *StateRepository) getJSON(ctx context.Context, key string, out interface{}) error {
	data, err := r.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// BeginUpload resets the entity's summary and errors and marks it busy.
func (r *StateRepository) BeginUpload(ctx context.Context, entity, batchID string) error {
	return r.setJSON(ctx, stateKey(entity), models.UploadState{
		Entity:    entity,
		Uploading: true,
		BatchID:   batchID,
		Errors:    []models.RowOutcome{},
		UpdatedAt: r.now(),
	})
}

// FinishUpload stores the summary line and the rows that carry an error.
func (r *StateRepository) FinishUpload(ctx context.Context, entity string, result *models.ImportResult) error {
	rowErrors := []models.RowOutcome{}
	for _, outcome := range result.Results {
		if !outcome.OK && outcome.Error != "" {
			rowErrors = append(rowErrors, outcome)
		}
	}
	return r.setJSON(ctx, stateKey(entity), models.UploadState{
		Entity:    entity,
		BatchID:   result.BatchID,
		Summary:   result.Summary.Message,
		Errors:    rowErrors,
		UpdatedAt: r.now(),
	})
}

// FailUpload records a batch that never got to its rows.
func (r *StateRepository) FailUpload(ctx context.Context, entity, batchID, summary string) error {
	return r.setJSON(ctx, stateKey(entity), models.UploadState{
		Entity:    entity,
		BatchID:   batchID,
		Summary:   summary,
		Errors:    []models.RowOutcome{},
		UpdatedAt: r.now(),
	})
}

// GetState returns an idle, empty state for entities never uploaded.
func (r *StateRepository) GetState(ctx context.Context, entity string) (*models.UploadState, error) {
	var state models.UploadState
	err := r.getJSON(ctx, stateKey(entity), &state)
	if errors.Is(err, ErrNotFound) {
		return &models.UploadState{Entity: entity, Errors: []models.RowOutcome{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *StateRepository) SaveResult(ctx context.Context, result *models.ImportResult) error {
	return r.setJSON(ctx, resultKey(result.BatchID), result)
}

func (r *StateRepository) GetResult(ctx context.Context, batchID string) (*models.ImportResult, error) {
	var result models.ImportResult
	if err := r.getJSON(ctx, resultKey(batchID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *StateRepository) SetProgress(ctx context.Context, batchID string, done, total int) error {
	key := progressKey(batchID)
	pipe := r.redis.TxPipeline()
	pipe.HSet(ctx, key, "done", done, "total", total)
	pipe.Expire(ctx, key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *StateRepository) GetProgress(ctx context.Context, batchID string) (*Progress, error) {
	values, err := r.redis.HGetAll(ctx, progressKey(batchID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	progress := &Progress{BatchID: batchID}
	progress.Done, _ = strconv.Atoi(values["done"])
	progress.Total, _ = strconv.Atoi(values["total"])
	if progress.Total > 0 {
		progress.Percent = float64(progress.Done) / float64(progress.Total) * 100
	}
	return progress, nil
}
