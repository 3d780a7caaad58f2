package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crew-import/internal/config"
	"crew-import/internal/crew"
	"crew-import/internal/models"
	"crew-import/internal/utils"

	"github.com/sirupsen/logrus"
)

const duplicateReason = "Duplicate in upload"

// Upstream is the part of the Crew client the pipeline drives.
type Upstream interface {
	Post(ctx context.Context, path string, body, out interface{}) error
	ResolveCompanyID(ctx context.Context) (int64, error)
	ExistingEmails(ctx context.Context) (map[string]crew.User, error)
	FindOrCreateCompany(ctx context.Context, name string, ownerCompanyID int64) (int64, error)
}

// Defaults are the tenant-independent values payload builders fall back to.
type Defaults struct {
	PhoneCountryCode  string
	JobColor          string
	CustomerCompanyID int64
	PasswordMin       int
}

func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		PhoneCountryCode:  cfg.CrewPhoneCountryCode,
		JobColor:          cfg.CrewDefaultJobColor,
		CustomerCompanyID: cfg.CrewCustomerCompanyID,
		PasswordMin:       cfg.CrewStaffPasswordMin,
	}
}

// RunOptions tune a single batch.
type RunOptions struct {
	BatchID string
	// FirstLine is the spreadsheet line of rows[0]. Lines, when it has one
	// entry per row, wins over FirstLine.
	FirstLine int
	Lines     []int
	// CompanyID pins the tenant and skips resolution when positive.
	CompanyID  int64
	OnProgress func(done, total int)
}

func (o RunOptions) line(index int) int {
	if index < len(o.Lines) {
		return o.Lines[index]
	}
	first := o.FirstLine
	if first <= 0 {
		first = 2
	}
	return index + first
}

// Batch is the request-scoped state shared by the rows of one import. It is
// created per run and dropped afterwards.
type Batch struct {
	ID        string
	Entity    string
	CompanyID int64
	Defaults  Defaults
	Client    Upstream
	Logger    *logrus.Entry
	Seen      *Deduplicator
	Known     map[string]crew.User
	Now       func() time.Time

	companies map[string]int64
}

// CompanyFor returns the row's own "Company ID" when it carries a positive
// one, otherwise the batch tenant.
func (b *Batch) CompanyFor(row models.Row) int64 {
	if id := int64(ParseInt(ExtractField(row, "Company ID", "company_id"), 0)); id > 0 {
		return id
	}
	return b.CompanyID
}

// CustomerCompany resolves a customer company name to an id once per batch.
// Failures are logged and cached as 0.
func (b *Batch) CustomerCompany(ctx context.Context, name string) int64 {
	key := fold(strings.TrimSpace(name))
	if key == "" {
		return 0
	}
	if id, ok := b.companies[key]; ok {
		return id
	}
	id, err := b.Client.FindOrCreateCompany(ctx, name, b.CompanyID)
	if err != nil {
		b.Logger.WithError(err).WithField("company", name).Warn("Failed to resolve customer company")
	}
	b.companies[key] = id
	return id
}

// Entity describes how one entity type moves from a spreadsheet row to an
// upstream create call. P is the payload type sent to Endpoint.
type Entity[P any] struct {
	Schema   models.EntitySchema
	Endpoint string
	Required []Field
	// CheckHeader rejects the whole batch when the first row lacks a
	// required column. Otherwise such rows fail one by one.
	CheckHeader bool
	Rules       []Rule
	// Key builds the de-dup key; "" opts a row out.
	Key func(row models.Row) string
	// Email names the row's email for duplicate-email messages.
	Email   func(row models.Row) string
	Prepare func(ctx context.Context, b *Batch)
	// Check may reject a row after de-dup without calling the upstream.
	Check   func(b *Batch, row models.Row, line int) *models.RowOutcome
	Build   func(ctx context.Context, b *Batch, row models.Row) (P, error)
	Created func(b *Batch, row models.Row, response interface{})
}

// Importer is an entity pipeline with its payload type erased.
type Importer interface {
	Schema() models.EntitySchema
	HeaderColumns() []Field
	Run(ctx context.Context, client Upstream, rows []models.Row, opts RunOptions) (*models.ImportResult, error)
}

type Pipeline[P any] struct {
	entity     Entity[P]
	defaults   Defaults
	summarizer *Summarizer
	logger     *logrus.Logger
}

func NewPipeline[P any](entity Entity[P], defaults Defaults, summarizer *Summarizer) *Pipeline[P] {
	if summarizer == nil {
		summarizer = defaultSummarizer
	}
	return &Pipeline[P]{
		entity:     entity,
		defaults:   defaults,
		summarizer: summarizer,
		logger:     utils.GetLogger(),
	}
}

func (p *Pipeline[P]) Schema() models.EntitySchema {
	return p.entity.Schema
}

// Run imports rows one at a time. Row failures become outcomes; only input,
// resolution and cancellation errors are returned. On cancellation the
// outcomes so far are returned with the error.
func (p *Pipeline[P]) Run(ctx context.Context, client Upstream, rows []models.Row, opts RunOptions) (*models.ImportResult, error) {
	if len(rows) == 0 {
		return nil, &InputError{Message: "rows[] required"}
	}
	if err := CheckColumns(rows[0], p.HeaderColumns()); err != nil {
		return nil, err
	}

	companyID := opts.CompanyID
	if companyID <= 0 {
		resolved, err := client.ResolveCompanyID(ctx)
		if err != nil {
			return nil, err
		}
		companyID = resolved
	}

	batch := &Batch{
		ID:        opts.BatchID,
		Entity:    p.entity.Schema.Key,
		CompanyID: companyID,
		Defaults:  p.defaults,
		Client:    client,
		Logger: p.logger.WithFields(logrus.Fields{
			"batch_id": opts.BatchID,
			"entity":   p.entity.Schema.Key,
		}),
		Seen:      NewDeduplicator(),
		Known:     make(map[string]crew.User),
		Now:       time.Now,
		companies: make(map[string]int64),
	}
	if p.entity.Prepare != nil {
		p.entity.Prepare(ctx, batch)
	}

	result := &models.ImportResult{
		BatchID:   opts.BatchID,
		Entity:    p.entity.Schema.Key,
		StartedAt: time.Now(),
		Results:   make([]models.RowOutcome, 0, len(rows)),
	}

	var runErr error
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			batch.Logger.WithError(err).WithField("processed", i).Warn("Import aborted")
			runErr = err
			break
		}

		outcome := p.process(ctx, batch, row, opts.line(i))
		result.Results = append(result.Results, outcome)
		batch.Logger.WithFields(logrus.Fields{
			"line":   outcome.Line,
			"status": outcome.Status,
		}).Debug("Row processed")

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(rows))
		}
	}

	result.FinishedAt = time.Now()
	result.Summary = Summarize(result.Results, companyID)
	result.Summary.Message = p.summarizer.Line(p.entity.Schema.Label, result.Summary, result.Results)

	batch.Logger.WithFields(logrus.Fields{
		"total":              result.Summary.Total,
		"ok":                 result.Summary.OK,
		"failed":             result.Summary.Failed,
		"skipped_duplicates": result.Summary.SkippedDuplicates,
		"unique_keys":        batch.Seen.Len(),
		"company_id":         companyID,
	}).Info("Import finished")

	return result, runErr
}

func (p *Pipeline[P]) process(ctx context.Context, b *Batch, row models.Row, line int) models.RowOutcome {
	if missing := Validate(row, p.entity.Required); len(missing) > 0 {
		return models.RowOutcome{
			Status:        models.OutcomeValidationFailed,
			Line:          line,
			MissingFields: missing,
			Error:         missingFieldsMessage(missing, line),
		}
	}
	for _, rule := range p.entity.Rules {
		if msg := rule(row); msg != "" {
			return models.RowOutcome{
				Status: models.OutcomeValidationFailed,
				Line:   line,
				Error:  fmt.Sprintf("%s on line %d", msg, line),
			}
		}
	}

	if p.entity.Key != nil {
		key := p.entity.Key(row)
		if b.Seen.IsDuplicate(key) {
			return models.RowOutcome{
				Status: models.OutcomeSkippedDuplicate,
				Line:   line,
				Reason: duplicateReason,
			}
		}
	}

	// Rows rejected by Check are not marked seen, so a repeat fails the
	// same way instead of being skipped.
	if p.entity.Check != nil {
		if outcome := p.entity.Check(b, row, line); outcome != nil {
			return *outcome
		}
	}
	if p.entity.Key != nil {
		b.Seen.MarkSeen(p.entity.Key(row))
	}

	payload, err := p.entity.Build(ctx, b, row)
	if err != nil {
		return models.RowOutcome{
			Status: models.OutcomeValidationFailed,
			Line:   line,
			Error:  fmt.Sprintf("%v on line %d", err, line),
		}
	}

	var response interface{}
	if err := b.Client.Post(ctx, p.entity.Endpoint, payload, &response); err != nil {
		email := ""
		if p.entity.Email != nil {
			email = p.entity.Email(row)
		}
		c := ClassifyUpstream(err, email, line)
		b.Logger.WithFields(logrus.Fields{
			"line":   line,
			"status": c.Status,
			"kind":   c.Kind,
		}).WithError(err).Warn("Upstream create failed")
		return models.RowOutcome{
			Status:     models.OutcomeUpstreamError,
			Line:       line,
			StatusCode: c.Status,
			Kind:       c.Kind,
			Error:      c.Message,
		}
	}

	if p.entity.Created != nil {
		p.entity.Created(b, row, response)
	}
	return models.RowOutcome{
		Status:   models.OutcomeCreated,
		OK:       true,
		Line:     line,
		Response: response,
	}
}

// Summarize counts outcomes. Failed includes validation failures, so
// OK + Failed + SkippedDuplicates == Total.
func Summarize(results []models.RowOutcome, companyID int64) models.ImportSummary {
	summary := models.ImportSummary{Total: len(results), CompanyIDUsed: companyID}
	for _, outcome := range results {
		switch outcome.Status {
		case models.OutcomeCreated:
			summary.OK++
		case models.OutcomeValidationFailed:
			summary.ValidationErrors++
			summary.Failed++
		case models.OutcomeSkippedDuplicate:
			summary.SkippedDuplicates++
		case models.OutcomeUpstreamError:
			summary.Failed++
		}
	}
	return summary
}

// HeaderColumns lists the columns the first row must carry, if any.
func (p *Pipeline[P]) HeaderColumns() []Field {
	if !p.entity.CheckHeader {
		return nil
	}
	return p.entity.Required
}
