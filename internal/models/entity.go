package models

// EntitySchema describes what a template for one entity looks like.
type EntitySchema struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Name        string   `json:"name"`
	Description []string `json:"description"`
	Filename    string   `json:"filename"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
}

// Headers returns the template header row, required columns first.
func (s EntitySchema) Headers() []string {
	headers := make([]string, 0, len(s.Required)+len(s.Optional))
	headers = append(headers, s.Required...)
	headers = append(headers, s.Optional...)
	return headers
}
