package service

import (
	"bytes"
	"encoding/csv"
	"strings"

	"crew-import/internal/models"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Template is a generated template file ready to be served or saved.
type Template struct {
	Filename    string
	ContentType string
	Body        []byte
}

// TemplateService renders entity templates in memory. Unknown keys never
// touch the filesystem.
type TemplateService struct {
	registry  *Registry
	excel     *ExcelService
	titleRows int
}

func NewTemplateService(registry *Registry, excel *ExcelService, titleRows int) *TemplateService {
	return &TemplateService{registry: registry, excel: excel, titleRows: titleRows}
}

func (s *TemplateService) Render(key, format string) (*Template, error) {
	schema, err := s.registry.Schema(key)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", FormatCSV:
		body, err := s.CSV(schema)
		if err != nil {
			return nil, err
		}
		return &Template{
			Filename:    schema.Filename,
			ContentType: "text/csv; charset=utf-8",
			Body:        body,
		}, nil
	case FormatXLSX:
		body, err := s.excel.GenerateTemplate(schema)
		if err != nil {
			return nil, err
		}
		return &Template{
			Filename:    strings.TrimSuffix(schema.Filename, ".csv") + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Body:        body,
		}, nil
	}
	return nil, &InputError{Message: "format must be csv or xlsx"}
}

// CSV writes the title row (when configured) and the header row.
func (s *TemplateService) CSV(schema models.EntitySchema) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	headers := schema.Headers()

	for i := 0; i < s.titleRows; i++ {
		title := make([]string, len(headers))
		if i == 0 {
			title[0] = templateTitle(schema)
		}
		if err := w.Write(title); err != nil {
			return nil, err
		}
	}
	if err := w.Write(headers); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
