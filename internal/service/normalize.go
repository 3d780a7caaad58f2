package service

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"crew-import/internal/models"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// fold case-folds s. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NormalizeHeader folds case, drops diacritics and keeps only letters and
// digits, so "Cell Phone", "cell_phone" and "CELL-PHONE" compare equal.
func NormalizeHeader(header string) string {
	decomposed := norm.NFD.String(fold(header))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractField returns the trimmed value of the first candidate header that
// is present in the row with a non-blank value. Headers that normalize alike
// are tried in sorted order.
func ExtractField(row models.Row, candidates ...string) string {
	if len(row) == 0 {
		return ""
	}

	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lookup := make(map[string]string, len(row))
	for _, key := range keys {
		normalized := NormalizeHeader(key)
		if _, exists := lookup[normalized]; !exists || strings.TrimSpace(row[lookup[normalized]]) == "" {
			lookup[normalized] = key
		}
	}

	for _, candidate := range candidates {
		key, ok := lookup[NormalizeHeader(candidate)]
		if !ok {
			continue
		}
		if value := strings.TrimSpace(row[key]); value != "" {
			return value
		}
	}
	return ""
}

// HasColumn reports whether any of the candidate headers exists in the row,
// blank or not.
func HasColumn(row models.Row, candidates ...string) bool {
	for key := range row {
		normalized := NormalizeHeader(key)
		for _, candidate := range candidates {
			if normalized == NormalizeHeader(candidate) {
				return true
			}
		}
	}
	return false
}

// ParseYes accepts the spellings people put in permission columns.
func ParseYes(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1", "x", "on":
		return true
	}
	return false
}

// maxParsedInt bounds converted numbers so huge cells cannot wrap around.
const maxParsedInt = math.MaxInt32

// ParseLevel reads a permission level: numbers are floored at zero, yes-like
// text is level 1, anything else 0.
func ParseLevel(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := cast.ToFloat64E(value); err == nil {
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(math.Min(math.Floor(n), maxParsedInt))
	}
	if ParseYes(value) {
		return 1
	}
	return 0
}

// ParseNumber parses a decimal, tolerating thousands separators, and falls
// back to def for blanks and garbage.
func ParseNumber(value string, def float64) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return def
	}
	n, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}
	return n
}

func ParseInt(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		f := ParseNumber(value, math.NaN())
		if math.IsNaN(f) {
			return def
		}
		return int(math.Max(math.Min(f, maxParsedInt), -maxParsedInt))
	}
	if n > maxParsedInt {
		return maxParsedInt
	}
	if n < -maxParsedInt {
		return -maxParsedInt
	}
	return n
}

// Phone is a number split into calling code and national digits.
type Phone struct {
	CountryCode string
	Number      string
}

func (p Phone) E164() string {
	if p.Number == "" {
		return ""
	}
	return "+" + p.CountryCode + p.Number
}

// NormalizePhone strips formatting and splits off the calling code. Ten digit
// numbers get defaultCountry; numbers already carrying defaultCountry are
// split; other numbers written with a leading + keep their digits as is.
func NormalizePhone(raw, defaultCountry string) Phone {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Phone{}
	}

	international := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if strings.HasPrefix(raw, "00") {
		number = strings.TrimPrefix(number, "00")
	}
	if number == "" {
		return Phone{}
	}

	switch {
	case len(number) == 10 && !international:
		return Phone{CountryCode: defaultCountry, Number: number}
	case defaultCountry != "" && strings.HasPrefix(number, defaultCountry) && len(number) == len(defaultCountry)+10:
		return Phone{CountryCode: defaultCountry, Number: number[len(defaultCountry):]}
	case international:
		return Phone{Number: number}
	default:
		return Phone{CountryCode: defaultCountry, Number: number}
	}
}

// dedupKey joins lower-cased identifying fields into a composite key.
func dedupKey(parts ...string) string {
	folded := make([]string, len(parts))
	empty := true
	for i, part := range parts {
		folded[i] = fold(strings.TrimSpace(part))
		if folded[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(folded, "|")
}
