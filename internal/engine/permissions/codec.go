package permissions

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON renders the nested matrix form used by the HTTP layer:
// {"sales": {"create": true, ...}, ...}.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Matrix())
}

// UnmarshalJSON accepts either the matrix form or a token array.
func (s *Set) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err == nil {
		parsed, err := FromTokens(tokens, Strict)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var matrix map[Module]Grants
	if err := json.Unmarshal(data, &matrix); err != nil {
		return fmt.Errorf("permissions: expected matrix object or token array: %w", err)
	}
	parsed, err := FromMatrix(matrix, Strict)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements the driver.Valuer interface. Sets are stored as a JSON
// token array.
func (s Set) Value() (driver.Value, error) {
	b, err := json.Marshal(s.Tokens())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (s *Set) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*s = Set{}
		return nil
	default:
		return errors.New("type assertion to []byte failed")
	}

	parsed, err := ParseStored(raw, Strict)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStored decodes a stored JSON token array with the given mode.
func ParseStored(raw []byte, mode Mode) (Set, error) {
	if len(raw) == 0 {
		return Set{}, nil
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return Set{}, err
	}
	return FromTokens(tokens, mode)
}
