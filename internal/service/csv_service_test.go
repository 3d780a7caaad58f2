package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"crew-import/internal/models"

	"github.com/xuri/excelize/v2"
	"gotest.tools/assert"
)

func TestCSVParseWithTitleRow(t *testing.T) {
	data := "Equipment Import Template,,\nEquipment name,Serial Number,\nLoader,SN-1,\n,,\nCrane,,\n"

	parsed, err := NewCSVService(1).Parse([]byte(data))
	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"Equipment name", "Serial Number", ""}, parsed.Headers)
	assert.Equal(t, 2, len(parsed.Rows))
	assert.Equal(t, "Loader", parsed.Rows[0]["Equipment name"])
	assert.Equal(t, "SN-1", parsed.Rows[0]["Serial Number"])
	assert.Equal(t, "Crane", parsed.Rows[1]["Equipment name"])
	// blank header columns are not carried into rows
	_, ok := parsed.Rows[0][""]
	assert.Equal(t, false, ok)
	assert.DeepEqual(t, []int{3, 5}, parsed.Lines)
}

func TestCSVParseWithoutTitleRow(t *testing.T) {
	parsed, err := NewCSVService(0).Parse([]byte("Task Name,Cost Code\nFraming,01\n"))
	assert.NilError(t, err)
	assert.Equal(t, 1, len(parsed.Rows))
	assert.Equal(t, "Framing", parsed.Rows[0]["Task Name"])
	assert.DeepEqual(t, []int{2}, parsed.Lines)
}

func TestCSVParseEncodings(t *testing.T) {
	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Job Name\nMain St\n")...)
	parsed, err := NewCSVService(0).Parse(bom)
	assert.NilError(t, err)
	assert.Equal(t, "Main St", parsed.Rows[0]["Job Name"])

	// "Café" saved as Windows-1252
	latin := []byte("Job Name\nCaf\xe9\n")
	parsed, err = NewCSVService(0).Parse(latin)
	assert.NilError(t, err)
	assert.Equal(t, "Café", parsed.Rows[0]["Job Name"])
}

func TestCSVParseQuotedMultiline(t *testing.T) {
	data := "Job Name,Address\n\"North\",\"1 Main St\nSuite 4\"\nSouth,2 Elm\n"
	parsed, err := NewCSVService(0).Parse([]byte(data))
	assert.NilError(t, err)
	assert.Equal(t, "1 Main St\nSuite 4", parsed.Rows[0]["Address"])
	assert.DeepEqual(t, []int{2, 4}, parsed.Lines)
}

func TestCSVParseErrors(t *testing.T) {
	var inputErr *InputError

	_, err := NewCSVService(1).Parse([]byte("Only a title\n"))
	assert.Equal(t, true, errors.As(err, &inputErr))
	assert.Equal(t, "File has no header row", err.Error())

	_, err = NewCSVService(0).Parse([]byte("Job Name\n,\n"))
	assert.Equal(t, true, errors.As(err, &inputErr))
	assert.Equal(t, "rows[] required", err.Error())
}

func TestExcelParseUpload(t *testing.T) {
	f := excelize.NewFile()
	assert.NilError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Customers Import Template"}))
	assert.NilError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Name First and Last", "Email"}))
	assert.NilError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Ann Lee", "ann@example.com"}))
	assert.NilError(t, f.SetSheetRow("Sheet1", "A5", &[]interface{}{"Bo Diaz"}))
	buf, err := f.WriteToBuffer()
	assert.NilError(t, err)

	parsed, err := NewExcelService(1).ParseUpload(buf.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, 2, len(parsed.Rows))
	assert.Equal(t, "ann@example.com", parsed.Rows[0]["Email"])
	assert.Equal(t, "", parsed.Rows[1]["Email"])
	assert.DeepEqual(t, []int{3, 5}, parsed.Lines)

	_, err = NewExcelService(1).ParseUpload([]byte("not a workbook"))
	var inputErr *InputError
	assert.Equal(t, true, errors.As(err, &inputErr))
}

func TestTemplateRender(t *testing.T) {
	registry := NewRegistry(Defaults{}, nil)
	templates := NewTemplateService(registry, NewExcelService(1), 1)

	tpl, err := templates.Render("equipment", "")
	assert.NilError(t, err)
	assert.Equal(t, "equipment_template.csv", tpl.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", tpl.ContentType)
	assert.Equal(t, "Equipment Import Template,,,\nEquipment name,ID,Serial Number,Notes\n", string(tpl.Body))

	// the template parses back to its own headers
	_, err = NewCSVService(1).Parse(tpl.Body)
	assert.Equal(t, "rows[] required", err.Error())

	tpl, err = templates.Render("TASKS", "xlsx")
	assert.NilError(t, err)
	assert.Equal(t, "tasks_template.xlsx", tpl.Filename)
	wb, err := excelize.OpenReader(bytes.NewReader(tpl.Body))
	assert.NilError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Tasks")
	assert.NilError(t, err)
	assert.Equal(t, "Tasks Import Template", rows[0][0])
	assert.DeepEqual(t, []string{"Task Name", "Cost Code", "Unit", "OT Exempt Task", "Estimated Qty", "Estimated Hours"}, rows[1])

	_, err = templates.Render("widgets", "csv")
	assert.Equal(t, true, errors.Is(err, ErrUnknownEntity))

	_, err = templates.Render("jobs", "pdf")
	var inputErr *InputError
	assert.Equal(t, true, errors.As(err, &inputErr))
}

func TestGenerateErrorReport(t *testing.T) {
	result := &models.ImportResult{
		BatchID: "b-1",
		Summary: models.ImportSummary{Total: 3, OK: 1, Failed: 1, SkippedDuplicates: 1},
		Results: []models.RowOutcome{
			{Status: models.OutcomeCreated, OK: true, Line: 2},
			{Status: models.OutcomeUpstreamError, Line: 3, StatusCode: 422, Kind: models.ErrorKindValidation, Error: "HTTP 422: bad"},
			{Status: models.OutcomeSkippedDuplicate, Line: 4, Reason: duplicateReason},
		},
		FinishedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	body, err := NewExcelService(1).GenerateErrorReport("Jobs", result)
	assert.NilError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(body))
	assert.NilError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Import Errors")
	assert.NilError(t, err)
	assert.Equal(t, "Line", rows[0][0])
	assert.DeepEqual(t, []string{"3", "upstream_error", "validation", "422", "HTTP 422: bad"}, rows[1])
	assert.Equal(t, "Duplicate in upload", rows[2][4])

	var found bool
	for _, row := range rows {
		if len(row) > 1 && row[0] == "Batch ID:" {
			found = row[1] == "b-1"
		}
	}
	assert.Equal(t, true, found)
}

func TestExportImportRuns(t *testing.T) {
	runs := []models.ImportRun{
		{ID: 1, BatchID: "a", Entity: "jobs", Status: RunStatusCompleted, TotalRows: 2, OKRows: 2, CreatedAt: time.Now()},
		{ID: 2, BatchID: "b", Entity: "staff", Status: RunStatusFailed, Message: "❌ Staff — boom", CreatedAt: time.Now()},
	}
	body, err := NewExcelService(1).ExportImportRuns(runs)
	assert.NilError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(body))
	assert.NilError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Import History")
	assert.NilError(t, err)
	assert.Equal(t, "Batch ID", rows[0][1])
	assert.Equal(t, "a", rows[1][1])
	assert.Equal(t, true, strings.HasPrefix(rows[2][11], "❌ Staff"))
}
