package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// MessageIDList is an ordered list of protocol message identifiers, oldest
// first. It is stored as a single space-separated column.
type MessageIDList []string

// Value implements driver.Valuer
func (l MessageIDList) Value() (driver.Value, error) {
	return l.String(), nil
}

// Scan implements sql.Scanner
func (l *MessageIDList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported type for MessageIDList: %T", src)
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		*l = nil
		return nil
	}
	*l = MessageIDList(fields)
	return nil
}

// String joins the identifiers with single spaces
func (l MessageIDList) String() string {
	return strings.Join(l, " ")
}

// Last returns the newest identifier, or "" for an empty list
func (l MessageIDList) Last() string {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}
