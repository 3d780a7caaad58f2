package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"crew-import/internal/models"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParsedFile is an upload turned into rows, with the spreadsheet line of
// every row kept alongside.
type ParsedFile struct {
	Headers []string
	Rows    []models.Row
	Lines   []int
}

type CSVService struct {
	titleRows int
}

// NewCSVService skips titleRows leading records before the header row.
func NewCSVService(titleRows int) *CSVService {
	if titleRows < 0 {
		titleRows = 0
	}
	return &CSVService{titleRows: titleRows}
}

// Parse decodes a CSV upload. UTF-8 and UTF-16 with a BOM are honoured;
// anything that is not valid UTF-8 is read as Windows-1252, which is what
// spreadsheet tools save by default.
func (s *CSVService) Parse(data []byte) (*ParsedFile, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &InputError{Message: fmt.Sprintf("Invalid CSV: %v", err)}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	return buildRows(records, lines, s.titleRows)
}

func decodeText(data []byte) ([]byte, error) {
	if hasBOM(data) || utf8.Valid(data) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return decoded, err
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	return decoded, err
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF})
}

// buildRows applies the title row + header row layout shared by CSV and XLSX
// uploads. Blank headers are dropped, as are rows whose every cell is blank.
func buildRows(records [][]string, lines []int, titleRows int) (*ParsedFile, error) {
	if len(records) <= titleRows {
		return nil, &InputError{Message: "File has no header row"}
	}

	header := records[titleRows]
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	parsed := &ParsedFile{Headers: headers}
	for i := titleRows + 1; i < len(records); i++ {
		record := records[i]
		row := make(models.Row, len(headers))
		blank := true
		for col, h := range headers {
			if h == "" {
				continue
			}
			value := ""
			if col < len(record) {
				value = record[col]
			}
			if strings.TrimSpace(value) != "" {
				blank = false
			}
			row[h] = value
		}
		if blank {
			continue
		}
		parsed.Rows = append(parsed.Rows, row)
		parsed.Lines = append(parsed.Lines, lines[i])
	}

	if len(parsed.Rows) == 0 {
		return nil, &InputError{Message: "rows[] required"}
	}
	return parsed, nil
}
