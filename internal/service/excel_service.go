package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"crew-import/internal/models"

	"github.com/xuri/excelize/v2"
)

type ExcelService struct {
	titleRows int
}

func NewExcelService(titleRows int) *ExcelService {
	if titleRows < 0 {
		titleRows = 0
	}
	return &ExcelService{titleRows: titleRows}
}

// ParseUpload reads the first sheet of an XLSX upload using the same title
// row + header row layout as CSV uploads.
func (s *ExcelService) ParseUpload(data []byte) (*ParsedFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("Invalid Excel file: %v", err)}
	}
	defer f.Close()

	// Get first sheet
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &InputError{Message: "No sheets found in Excel file"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return buildRows(rows, lines, s.titleRows)
}

// GenerateTemplate builds the XLSX flavour of an entity template: a title
// row followed by the header row, required columns highlighted.
func (s *ExcelService) GenerateTemplate(schema models.EntitySchema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := sheetTitle(schema.Name)
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headerRow := 1
	if s.titleRows > 0 {
		f.SetCellValue(sheetName, "A1", templateTitle(schema))
		titleStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Size: 14},
		})
		f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
		headerRow = s.titleRows + 1
	}

	headers := schema.Headers()
	for i, header := range headers {
		cell := fmt.Sprintf("%s%d", getColumnName(i), headerRow)
		f.SetCellValue(sheetName, cell, header)
		f.SetColWidth(sheetName, getColumnName(i), getColumnName(i), 22)
	}

	// Set header style
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", getColumnName(len(headers)-1), headerRow), headerStyle)

	if len(schema.Required) > 0 {
		requiredStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFE6E6"}, Pattern: 1},
		})
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", getColumnName(len(schema.Required)-1), headerRow), requiredStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateErrorReport lists every row that did not create a record, with a
// summary block underneath.
func (s *ExcelService) GenerateErrorReport(label string, result *models.ImportResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Import Errors"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headers := []string{"Line", "Status", "Kind", "HTTP Status", "Error", "Missing Fields"}
	for i, header := range headers {
		cell := fmt.Sprintf("%s1", getColumnName(i))
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFE6E6"}, Pattern: 1},
	})
	f.SetCellStyle(sheetName, "A1", fmt.Sprintf("%s1", getColumnName(len(headers)-1)), headerStyle)

	errorStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFFFCC"}, Pattern: 1},
	})

	row := 2
	for _, outcome := range result.Results {
		if outcome.OK {
			continue
		}
		message := outcome.Error
		if message == "" {
			message = outcome.Reason
		}
		var status interface{}
		if outcome.StatusCode > 0 {
			status = outcome.StatusCode
		}

		values := []interface{}{outcome.Line, string(outcome.Status), string(outcome.Kind), status, message, strings.Join(outcome.MissingFields, ", ")}
		for colIdx, value := range values {
			cell := fmt.Sprintf("%s%d", getColumnName(colIdx), row)
			f.SetCellValue(sheetName, cell, value)
		}
		if outcome.Failed() {
			f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", getColumnName(len(headers)-1), row), errorStyle)
		}
		row++
	}

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "C", 18)
	f.SetColWidth(sheetName, "D", "D", 12)
	f.SetColWidth(sheetName, "E", "E", 70)
	f.SetColWidth(sheetName, "F", "F", 30)

	summary := result.Summary
	summaryStartRow := row + 2
	summaryRows := [][]interface{}{
		{"Import Summary", label},
		{"Batch ID:", result.BatchID},
		{"Total Rows:", summary.Total},
		{"Created:", summary.OK},
		{"Failed:", summary.Failed},
		{"Validation Errors:", summary.ValidationErrors},
		{"Duplicates Skipped:", summary.SkippedDuplicates},
		{"Company ID:", summary.CompanyIDUsed},
		{"Finished At:", result.FinishedAt.Format(time.RFC3339)},
		{"Message:", summary.Message},
	}
	for i, values := range summaryRows {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow+i), values[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryStartRow+i), values[1])
	}

	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", summaryStartRow), fmt.Sprintf("A%d", summaryStartRow+len(summaryRows)-1), summaryStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func templateTitle(schema models.EntitySchema) string {
	return schema.Name + " Import Template"
}

// sheetTitle keeps a sheet name inside Excel's 31 character limit.
func sheetTitle(name string) string {
	runes := []rune(name)
	if len(runes) > 31 {
		return string(runes[:31])
	}
	if len(runes) == 0 {
		return "Template"
	}
	return name
}

func getColumnName(index int) string {
	result := ""
	for index >= 0 {
		result = string(rune('A'+(index%26))) + result
		index = index/26 - 1
	}
	return result
}
