package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value stores the verification result as JSON text.
func (v VerificationResult) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a verification result stored by Value.
func (v *VerificationResult) Scan(src any) error {
	return scanJSON(src, v)
}

// Value stores the comments as a JSON array, never as NULL.
func (c ApprovedComments) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ApprovedComment(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads comments stored by Value.
func (c *ApprovedComments) Scan(src any) error {
	return scanJSON(src, c)
}

func scanJSON(src, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
