package service

import (
	"fmt"
	"sort"

	"crew-import/internal/models"

	"github.com/xuri/excelize/v2"
)

var runStatusColors = map[string]string{
	RunStatusCompleted: "#D4EDDA",
	RunStatusFailed:    "#F8D7DA",
	RunStatusAborted:   "#FFF3CD",
}

// ExportImportRuns writes an import history listing to a workbook.
func (s *ExcelService) ExportImportRuns(runs []models.ImportRun) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Import History"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headers := []string{
		"ID", "Batch ID", "Entity", "Source", "Total Rows", "Created",
		"Failed", "Validation", "Duplicates", "Company ID", "Status", "Message", "Created At",
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", getColumnName(i))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	statusStyles := make(map[string]int, len(runStatusColors))
	for status, color := range runStatusColors {
		style, _ := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		statusStyles[status] = style
	}

	statusCol := getColumnName(10)
	for i, run := range runs {
		row := i + 2
		values := []interface{}{
			run.ID,
			run.BatchID,
			run.Entity,
			run.Source,
			run.TotalRows,
			run.OKRows,
			run.FailedRows,
			run.ValidationErrors,
			run.SkippedDuplicates,
			run.CompanyID,
			run.Status,
			run.Message,
			run.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, value := range values {
			f.SetCellValue(sheetName, fmt.Sprintf("%s%d", getColumnName(colIdx), row), value)
		}

		if style, ok := statusStyles[run.Status]; ok {
			cell := fmt.Sprintf("%s%d", statusCol, row)
			f.SetCellStyle(sheetName, cell, cell, style)
		}
	}

	for i := range headers {
		col := getColumnName(i)
		f.SetColWidth(sheetName, col, col, 14)
	}
	f.SetColWidth(sheetName, "B", "B", 38) // Batch ID
	f.SetColWidth(sheetName, "L", "L", 80) // Message
	f.SetColWidth(sheetName, "M", "M", 20) // Created At

	if len(runs) > 0 {
		summaryRow := len(runs) + 3
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow), "Summary:")
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("Total Imports: %d", len(runs)))

		statusCounts := make(map[string]int)
		for _, run := range runs {
			statusCounts[run.Status]++
		}
		statuses := make([]string, 0, len(statusCounts))
		for status := range statusCounts {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		row := summaryRow + 1
		for _, status := range statuses {
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("%s: %d", status, statusCounts[status]))
			row++
		}

		summaryStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{
				Type:    "pattern",
				Color:   []string{"#F0F0F0"},
				Pattern: 1,
			},
		})
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("A%d", summaryRow), summaryStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
