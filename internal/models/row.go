package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Row is one data line of an upload, keyed by whatever header the source
// file carried. Position in the batch is its only identity.
type Row map[string]string

// UnmarshalJSON accepts the loosely typed objects browsers send: null and
// missing cells become "", numbers and booleans are stringified.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	row := make(Row, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			row[key] = ""
		case string:
			row[key] = v
		case float64:
			row[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			row[key] = strconv.FormatBool(v)
		default:
			row[key] = fmt.Sprint(v)
		}
	}
	*r = row
	return nil
}

// ImportRequest is the body of POST /api/crew/:entity.
type ImportRequest struct {
	Rows      []Row `json:"rows"`
	FirstLine int   `json:"first_line"`
}
