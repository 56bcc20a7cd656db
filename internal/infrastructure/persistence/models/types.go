package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UUIDList is a list of ids stored as a JSON array
type UUIDList []uuid.UUID

// Value implements driver.Valuer
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uuid.UUID(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *UUIDList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = UUIDList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan UUIDList: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*l = UUIDList{}
		return nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("failed to scan UUIDList: %w", err)
	}
	*l = ids
	return nil
}
