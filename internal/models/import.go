package models

import "time"

// OutcomeStatus tags a RowOutcome. Every row gets exactly one.
type OutcomeStatus string

const (
	OutcomeCreated          OutcomeStatus = "created"
	OutcomeValidationFailed OutcomeStatus = "validation_failed"
	OutcomeSkippedDuplicate OutcomeStatus = "skipped_duplicate"
	OutcomeUpstreamError    OutcomeStatus = "upstream_error"
)

// ErrorKind is the structured classification of a failed upstream create.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindDuplicateEmail ErrorKind = "duplicate_email"
	ErrorKindNullCompany    ErrorKind = "null_company"
	ErrorKindClient         ErrorKind = "client"
	ErrorKindServer         ErrorKind = "server"
	ErrorKindTransport      ErrorKind = "transport"
)

type RowOutcome struct {
	Status        OutcomeStatus `json:"status"`
	OK            bool          `json:"ok"`
	Line          int           `json:"line"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	Reason        string        `json:"skipped_reason,omitempty"`
	StatusCode    int           `json:"status_code,omitempty"`
	Kind          ErrorKind     `json:"kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	Response      interface{}   `json:"response,omitempty"`
}

// Failed reports whether the outcome counts against the batch.
func (o RowOutcome) Failed() bool {
	return o.Status == OutcomeValidationFailed || o.Status == OutcomeUpstreamError
}

type ImportSummary struct {
	Total             int    `json:"total"`
	OK                int    `json:"ok"`
	Failed            int    `json:"failed"`
	ValidationErrors  int    `json:"validationErrors"`
	SkippedDuplicates int    `json:"skippedDuplicates"`
	CompanyIDUsed     int64  `json:"company_id_used"`
	Message           string `json:"message"`
}

type ImportResult struct {
	BatchID    string        `json:"batch_id"`
	Entity     string        `json:"entity"`
	Summary    ImportSummary `json:"summary"`
	Results    []RowOutcome  `json:"results"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// ErrorTexts returns the distinct error messages of failed rows in order.
func (r *ImportResult) ErrorTexts() []string {
	seen := make(map[string]bool)
	var texts []string
	for _, outcome := range r.Results {
		if outcome.Error == "" || seen[outcome.Error] {
			continue
		}
		seen[outcome.Error] = true
		texts = append(texts, outcome.Error)
	}
	return texts
}

// ImportRun is one row of the import history table.
type ImportRun struct {
	ID                int       `db:"id" json:"id"`
	BatchID           string    `db:"batch_id" json:"batch_id"`
	Entity            string    `db:"entity" json:"entity"`
	Source            string    `db:"source" json:"source"`
	TotalRows         int       `db:"total_rows" json:"total_rows"`
	OKRows            int       `db:"ok_rows" json:"ok_rows"`
	FailedRows        int       `db:"failed_rows" json:"failed_rows"`
	ValidationErrors  int       `db:"validation_errors" json:"validation_errors"`
	SkippedDuplicates int       `db:"skipped_duplicates" json:"skipped_duplicates"`
	CompanyID         int64     `db:"company_id" json:"company_id"`
	Status            string    `db:"status" json:"status"`
	Message           string    `db:"message" json:"message"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// UploadState mirrors what the upload page shows for one entity key.
type UploadState struct {
	Entity    string       `json:"entity"`
	Uploading bool         `json:"uploading"`
	BatchID   string       `json:"batch_id,omitempty"`
	Summary   string       `json:"summary"`
	Errors    []RowOutcome `json:"errors"`
	UpdatedAt time.Time    `json:"updated_at"`
}
