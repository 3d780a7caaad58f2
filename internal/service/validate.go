package service

import (
	"fmt"
	"strings"

	"crew-import/internal/models"
)

// Field is a logical column. Label is the template header and is always
// tried first; Aliases cover header drift between template versions.
type Field struct {
	Label   string
	Aliases []string
}

func (f Field) Candidates() []string {
	return append([]string{f.Label}, f.Aliases...)
}

// Value extracts the field from a row.
func (f Field) Value(row models.Row) string {
	return ExtractField(row, f.Candidates()...)
}

// Rule is an extra per-row check. It returns a message without the line
// suffix, or "" when the row passes.
type Rule func(row models.Row) string

// Validate returns the labels of required fields that are absent or blank.
func Validate(row models.Row, required []Field) []string {
	var missing []string
	for _, field := range required {
		if field.Value(row) == "" {
			missing = append(missing, field.Label)
		}
	}
	return missing
}

// CheckColumns fails when the first row of a batch lacks a required column
// under every alias. A missing column would fail every row the same way.
func CheckColumns(first models.Row, required []Field) error {
	for _, field := range required {
		if !HasColumn(first, field.Candidates()...) {
			return &InputError{Message: fmt.Sprintf("CSV must include a column named %q.", field.Label)}
		}
	}
	return nil
}

func missingFieldsMessage(missing []string, line int) string {
	return fmt.Sprintf("Missing required field(s): %s on line %d", strings.Join(missing, ", "), line)
}

// MinLength builds a Rule requiring field to hold at least n characters.
func MinLength(field Field, n int) Rule {
	return func(row models.Row) string {
		value := field.Value(row)
		if value != "" && len([]rune(value)) < n {
			return fmt.Sprintf("%s must be at least %d characters", field.Label, n)
		}
		return ""
	}
}
