package service

import (
	"fmt"
	"regexp"

	"crew-import/internal/models"
)

// HintContext is what a hint rule may look at.
type HintContext struct {
	Label     string
	Required  string
	CompanyID int64
	Kinds     map[models.ErrorKind]bool
	Texts     []string
}

func (h HintContext) matches(pattern *regexp.Regexp) bool {
	if pattern == nil {
		return false
	}
	for _, text := range h.Texts {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func (h HintContext) hasKind(kinds []models.ErrorKind) bool {
	for _, kind := range kinds {
		if h.Kinds[kind] {
			return true
		}
	}
	return false
}

// HintRule proposes one fix. Rules match on error kinds first and fall back
// to the error text, so batches built from stored text still get a hint.
type HintRule struct {
	Name    string
	Kinds   []models.ErrorKind
	Pattern *regexp.Regexp
	Hint    func(h HintContext) string
}

func (r HintRule) Matches(h HintContext) bool {
	return h.hasKind(r.Kinds) || h.matches(r.Pattern)
}

// DefaultHintRules are evaluated in order; the first match wins.
var DefaultHintRules = []HintRule{
	{
		Name:    "missing_task_name_column",
		Pattern: regexp.MustCompile(`(?i)column named "Task Name"`),
		Hint: func(HintContext) string {
			return `Make sure your CSV header row contains an exact "Task Name" column. Download a fresh template if needed.`
		},
	},
	{
		Name:    "missing_equipment_column",
		Pattern: regexp.MustCompile(`(?i)column named "Equipment name"`),
		Hint: func(HintContext) string {
			return `Make sure your CSV header row contains an exact "Equipment name" column. Use the Equipment template.`
		},
	},
	{
		Name:    "missing_column",
		Pattern: regexp.MustCompile(`(?i)must include a column named`),
		Hint: func(HintContext) string {
			return "Make sure your CSV header row matches the template. Download a fresh template if needed."
		},
	},
	{
		Name:    "missing_required_field",
		Pattern: regexp.MustCompile(`(?i)Missing required field`),
		Hint: func(h HintContext) string {
			return fmt.Sprintf("Fill the %q column for every row (no blanks).", h.Required)
		},
	},
	{
		Name:    "duplicate_in_upload",
		Pattern: regexp.MustCompile(`(?i)Duplicate in upload`),
		Hint: func(HintContext) string {
			return "Remove duplicate rows/names in your CSV before uploading."
		},
	},
	{
		Name:  "duplicate_email",
		Kinds: []models.ErrorKind{models.ErrorKindDuplicateEmail},
		Hint: func(HintContext) string {
			return "Some emails already belong to existing users. Remove those rows or use a different email."
		},
	},
	{
		Name:    "null_company",
		Kinds:   []models.ErrorKind{models.ErrorKindNullCompany},
		Pattern: nullCompanyPattern,
		Hint: func(h HintContext) string {
			example := "your company id"
			if h.CompanyID > 0 {
				example = fmt.Sprint(h.CompanyID)
			}
			return fmt.Sprintf("Set a company context. Recommended: set CREW_COMPANY_ID in your environment (e.g., %s) or use a company-scoped API token.", example)
		},
	},
	{
		Name:    "unprocessable",
		Kinds:   []models.ErrorKind{models.ErrorKindValidation},
		Pattern: regexp.MustCompile(`(?i)HTTP 422|Unprocessable Entity`),
		Hint: func(HintContext) string {
			return "One or more fields failed validation. Check cost codes/units formatting and required columns."
		},
	},
	{
		Name:    "rejected",
		Kinds:   []models.ErrorKind{models.ErrorKindClient},
		Pattern: regexp.MustCompile(`HTTP 4\d\d`),
		Hint: func(HintContext) string {
			return "Request was rejected by the server. Verify your CSV matches the template and your token has permission."
		},
	},
	{
		Name:    "server",
		Kinds:   []models.ErrorKind{models.ErrorKindServer, models.ErrorKindTransport},
		Pattern: regexp.MustCompile(`(?i)HTTP 5\d\d|Request failed|Server error`),
		Hint: func(HintContext) string {
			return "Server error. Try again in a moment; if it persists, contact support with the first error shown."
		},
	},
}

const fallbackHint = "Check the first few errors below, fix the CSV (headers + required fields), then re-upload."

// requiredFieldFor names the column the missing-field hint points at.
func requiredFieldFor(label string) string {
	switch label {
	case "Tasks":
		return "Task Name"
	case "Equipment":
		return "Equipment name"
	}
	return "all required columns"
}

// FixHint picks the first rule matching the batch's errors.
func FixHint(rules []HintRule, h HintContext) string {
	if h.Required == "" {
		h.Required = requiredFieldFor(h.Label)
	}
	for _, rule := range rules {
		if rule.Matches(h) {
			return rule.Hint(h)
		}
	}
	return fallbackHint
}
