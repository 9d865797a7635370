package models

import (
	"strconv"
	"time"
)

// Row is a column-name keyed view of one record as it is being written.
// The realm resolver works on rows so that it can serve any table.
type Row map[string]any

// Int returns the integer value of column, following pointers. ok is false
// for missing, nil or non-numeric values and for zero ids.
func (r Row) Int(column string) (int, bool) {
	v, present := r[column]
	if !present {
		return 0, false
	}
	n, ok := toInt(v)
	if !ok || n == 0 {
		return 0, false
	}
	return n, true
}

func (r Row) String(column string) (string, bool) {
	switch v := r[column].(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case *int:
		if n == nil {
			return 0, false
		}
		return *n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case *int64:
		if n == nil {
			return 0, false
		}
		return int(*n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case []byte:
		i, err := strconv.Atoi(string(n))
		return i, err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// RowOf builds a Row from alternating column/value pairs.
func RowOf(kv ...any) Row {
	row := make(Row, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			row[k] = kv[i+1]
		}
	}
	return row
}

// Audit columns shared by ownership-carrying records.
type Audit struct {
	RealmEntity *int      `gorm:"index" json:"realm_entity"`
	CreatedBy   *int      `json:"created_by"`
	Deleted     bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a Audit) auditRow(row Row) Row {
	row["realm_entity"] = a.RealmEntity
	row["created_by"] = a.CreatedBy
	return row
}
