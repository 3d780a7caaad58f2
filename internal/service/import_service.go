package service

import (
	"context"

	"crew-import/internal/config"
	"crew-import/internal/crew"
	"crew-import/internal/models"
	"crew-import/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	SourceJSON  = "json"
	SourceCSV   = "csv"
	SourceXLSX  = "xlsx"
	SourceQueue = "queue"

	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
	RunStatusFailed    = "failed"
)

// HistoryStore persists one row per finished batch.
type HistoryStore interface {
	Create(run *models.ImportRun) error
}

// StateStore mirrors upload state, progress and results for the UI.
type StateStore interface {
	BeginUpload(ctx context.Context, entity, batchID string) error
	FinishUpload(ctx context.Context, entity string, result *models.ImportResult) error
	FailUpload(ctx context.Context, entity, batchID, summary string) error
	SaveResult(ctx context.Context, result *models.ImportResult) error
	SetProgress(ctx context.Context, batchID string, done, total int) error
}

// ImportRequest is one batch handed to the service by a handler or worker.
type ImportRequest struct {
	Entity    string
	BatchID   string
	Source    string
	Rows      []models.Row
	FirstLine int
	Lines     []int
}

type ImportService struct {
	registry   *Registry
	summarizer *Summarizer
	history    HistoryStore
	state      StateStore
	newClient  func(creds config.Credentials) Upstream
	logger     *logrus.Logger
}

// NewImportService wires the pipeline registry to optional history and
// state stores; either may be nil.
func NewImportService(cfg *config.Config, registry *Registry, summarizer *Summarizer, history HistoryStore, state StateStore) *ImportService {
	if summarizer == nil {
		summarizer = defaultSummarizer
	}
	timeout := cfg.CrewTimeout
	return &ImportService{
		registry:   registry,
		summarizer: summarizer,
		history:    history,
		state:      state,
		newClient: func(creds config.Credentials) Upstream {
			return crew.NewClient(creds.BaseURL, creds.Token, timeout)
		},
		logger: utils.GetLogger(),
	}
}

func (s *ImportService) Registry() *Registry {
	return s.registry
}

// Check runs the cheap batch-level checks without contacting the upstream,
// so queued imports can be rejected up front.
func (s *ImportService) Check(entity string, rows []models.Row) error {
	importer, err := s.registry.Get(entity)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &InputError{Message: "rows[] required"}
	}
	if _, err := config.CrewCredentials(); err != nil {
		return &ConfigError{Err: err}
	}
	return CheckColumns(rows[0], importer.HeaderColumns())
}

// Hint explains a batch-fatal error in the words of the summary line.
func (s *ImportService) Hint(entity string, err error) string {
	label := entity
	if schema, lookupErr := s.registry.Schema(entity); lookupErr == nil {
		label = schema.Label
	}
	return s.summarizer.Hint(label, []string{err.Error()}, 0)
}

// Import runs one batch end to end. Upstream credentials are read per call;
// when they are missing nothing is sent.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*models.ImportResult, error) {
	importer, err := s.registry.Get(req.Entity)
	if err != nil {
		return nil, err
	}
	schema := importer.Schema()

	if len(req.Rows) == 0 {
		return nil, &InputError{Message: "rows[] required"}
	}
	creds, err := config.CrewCredentials()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}
	if req.Source == "" {
		req.Source = SourceJSON
	}
	logger := s.logger.WithFields(logrus.Fields{
		"batch_id": req.BatchID,
		"entity":   schema.Key,
		"source":   req.Source,
		"rows":     len(req.Rows),
	})
	logger.Info("Import started")

	if s.state != nil {
		if err := s.state.BeginUpload(ctx, schema.Key, req.BatchID); err != nil {
			logger.WithError(err).Warn("Failed to reset upload state")
		}
	}

	opts := RunOptions{
		BatchID:   req.BatchID,
		FirstLine: req.FirstLine,
		Lines:     req.Lines,
		CompanyID: creds.CompanyID,
	}
	if s.state != nil {
		opts.OnProgress = func(done, total int) {
			if err := s.state.SetProgress(ctx, req.BatchID, done, total); err != nil {
				logger.WithError(err).Debug("Failed to store progress")
			}
		}
	}

	result, runErr := importer.Run(ctx, s.newClient(creds), req.Rows, opts)
	if result == nil {
		summary := s.summarizer.Failure(schema.Label, runErr)
		logger.WithError(runErr).Warn("Import failed")
		s.fail(ctx, logger, schema.Key, req, summary)
		return nil, runErr
	}

	status := RunStatusCompleted
	if runErr != nil {
		status = RunStatusAborted
	}
	s.finish(ctx, logger, schema.Key, req.Source, status, result)
	return result, runErr
}

func (s *ImportService) fail(ctx context.Context, logger *logrus.Entry, entity string, req ImportRequest, summary string) {
	if s.state != nil {
		if err := s.state.FailUpload(ctx, entity, req.BatchID, summary); err != nil {
			logger.WithError(err).Warn("Failed to store upload state")
		}
	}
	s.record(logger, &models.ImportRun{
		BatchID:   req.BatchID,
		Entity:    entity,
		Source:    req.Source,
		TotalRows: len(req.Rows),
		Status:    RunStatusFailed,
		Message:   summary,
	})
}

func (s *ImportService) finish(ctx context.Context, logger *logrus.Entry, entity, source, status string, result *models.ImportResult) {
	if s.state != nil {
		if err := s.state.FinishUpload(ctx, entity, result); err != nil {
			logger.WithError(err).Warn("Failed to store upload state")
		}
		if err := s.state.SaveResult(ctx, result); err != nil {
			logger.WithError(err).Warn("Failed to store import result")
		}
	}
	summary := result.Summary
	s.record(logger, &models.ImportRun{
		BatchID:           result.BatchID,
		Entity:            entity,
		Source:            source,
		TotalRows:         summary.Total,
		OKRows:            summary.OK,
		FailedRows:        summary.Failed,
		ValidationErrors:  summary.ValidationErrors,
		SkippedDuplicates: summary.SkippedDuplicates,
		CompanyID:         summary.CompanyIDUsed,
		Status:            status,
		Message:           summary.Message,
	})
}

func (s *ImportService) record(logger *logrus.Entry, run *models.ImportRun) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(run); err != nil {
		logger.WithError(err).Warn("Failed to record import history")
	}
}
