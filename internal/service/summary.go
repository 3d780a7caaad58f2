package service

import (
	"fmt"
	"strings"

	"crew-import/internal/models"
)

const topErrorCount = 3

// Summarizer turns batch counts and row errors into the one-line message
// shown after an upload.
type Summarizer struct {
	Rules []HintRule
}

// NewSummarizer uses DefaultHintRules when rules is nil.
func NewSummarizer(rules []HintRule) *Summarizer {
	if rules == nil {
		rules = DefaultHintRules
	}
	return &Summarizer{Rules: rules}
}

// Line builds the summary for a finished batch.
func (s *Summarizer) Line(label string, summary models.ImportSummary, results []models.RowOutcome) string {
	kinds := make(map[models.ErrorKind]bool)
	for _, outcome := range results {
		if outcome.Kind != models.ErrorKindNone {
			kinds[outcome.Kind] = true
		}
	}
	result := models.ImportResult{Results: results}
	return s.line(label, summary, HintContext{
		Label:     label,
		CompanyID: summary.CompanyIDUsed,
		Kinds:     kinds,
		Texts:     result.ErrorTexts(),
	})
}

// Hint returns only the fix hint for a set of error texts.
func (s *Summarizer) Hint(label string, texts []string, companyID int64) string {
	return FixHint(s.Rules, HintContext{Label: label, CompanyID: companyID, Texts: texts})
}

func (s *Summarizer) line(label string, summary models.ImportSummary, h HintContext) string {
	if summary.Failed == 0 && summary.ValidationErrors == 0 && len(h.Texts) == 0 {
		extra := ""
		if k := summary.SkippedDuplicates; k > 0 {
			plural := ""
			if k > 1 {
				plural = "s"
			}
			extra = fmt.Sprintf(" (%d duplicate%s skipped)", k, plural)
		}
		return fmt.Sprintf("✅ %s — Success: created %d%s.", label, summary.OK, extra)
	}

	counts := fmt.Sprintf("(created %d, failed %d", summary.OK, summary.Failed)
	if summary.ValidationErrors > 0 {
		counts += fmt.Sprintf(", validation %d", summary.ValidationErrors)
	}
	if summary.SkippedDuplicates > 0 {
		counts += fmt.Sprintf(", dupes skipped %d", summary.SkippedDuplicates)
	}
	counts += ")"

	parts := []string{fmt.Sprintf("❌ %s — Imported with issues", label), counts}
	top := h.Texts
	if len(top) > topErrorCount {
		top = top[:topErrorCount]
	}
	if len(top) > 0 {
		parts = append(parts, "Top errors: "+strings.Join(top, " | "))
	}
	parts = append(parts, "Hint: "+FixHint(s.Rules, h))
	return strings.Join(parts, " — ")
}

var defaultSummarizer = NewSummarizer(nil)

// BuildSummary formats a summary line from counts and error texts alone.
func BuildSummary(label string, summary models.ImportSummary, errorTexts []string) string {
	return defaultSummarizer.line(label, summary, HintContext{
		Label:     label,
		CompanyID: summary.CompanyIDUsed,
		Texts:     distinct(errorTexts),
	})
}

func distinct(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	var out []string
	for _, text := range texts {
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out
}

// Failure builds the summary for a batch that stopped before its rows.
func (s *Summarizer) Failure(label string, err error) string {
	msg := strings.TrimSuffix(err.Error(), ".")
	return fmt.Sprintf("❌ %s — %s. Hint: %s", label, msg, s.Hint(label, []string{err.Error()}, 0))
}
