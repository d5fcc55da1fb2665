// internal/app/system/geoorg/schema.go
package geoorg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/go-playground/validator/v10"
)

// flexID accepts ids the backend sends either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// unitDTO is the wire shape shared by every list endpoint.
type unitDTO struct {
	ID   flexID `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// decodeUnits parses either a bare JSON array or a {"data": [...]} envelope
// and validates every element.
func decodeUnits(v *validator.Validate, path string, raw json.RawMessage) ([]unitDTO, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", chipapi.ErrBadResponse, path)
	}
	if raw[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", chipapi.ErrBadResponse, path, err)
		}
		raw = bytes.TrimSpace(env.Data)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return []unitDTO{}, nil
		}
	}

	var units []unitDTO
	if err := json.Unmarshal(raw, &units); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", chipapi.ErrBadResponse, path, err)
	}
	for i := range units {
		units[i].Name = strings.TrimSpace(units[i].Name)
		if err := v.Struct(units[i]); err != nil {
			return nil, fmt.Errorf("%w: %s: item %d: %v", chipapi.ErrBadResponse, path, i, err)
		}
	}
	return units, nil
}
