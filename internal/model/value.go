package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ValueKind discriminates the CellValue tagged union.
type ValueKind int

const (
	// KindEmpty marks a cell with no content.
	KindEmpty ValueKind = iota
	// KindString marks a textual cell value.
	KindString
	// KindNumber marks a numeric cell value.
	KindNumber
)

// CellValue is the authoritative value of a single cell. Alongside the typed
// value it always carries Raw, the exact string produced by extraction,
// regardless of any later coercion or edit.
type CellValue struct {
	Kind ValueKind
	Str  string
	Num  float64
	Raw  string
}

// StringValue builds a CellValue from a raw extracted string. Whitespace-only
// input yields an empty value; the raw string is retained either way.
func StringValue(raw string) CellValue {
	if strings.TrimSpace(raw) == "" {
		return CellValue{Kind: KindEmpty, Raw: raw}
	}
	return CellValue{Kind: KindString, Str: raw, Raw: raw}
}

// NumberValue builds a numeric CellValue. Raw is set to the canonical
// rendering so round-tripping through the transport shape is stable.
func NumberValue(n float64) CellValue {
	raw := strconv.FormatFloat(n, 'f', -1, 64)
	return CellValue{Kind: KindNumber, Num: n, Raw: raw}
}

// EmptyValue builds an empty CellValue with no raw text.
func EmptyValue() CellValue {
	return CellValue{Kind: KindEmpty}
}

// IsEmpty reports whether the value is the empty variant.
func (v CellValue) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String returns the canonical string rendering used by every exporter:
// numbers without locale grouping, empty as the empty string.
func (v CellValue) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	default:
		return ""
	}
}

// Equal reports whether two values are the same variant with the same content.
// Raw is provenance, not identity, and is deliberately ignored.
func (v CellValue) Equal(o CellValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	default:
		return true
	}
}

// MarshalJSON renders the value as a bare JSON scalar: string, number, or
// null. This is the load-bearing transport shape for the `value` field.
func (v CellValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a bare scalar and reconstructs the tagged value. The
// raw string is rebuilt from the scalar since transport carries no separate
// provenance field.
func (v *CellValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = EmptyValue()
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode string cell value")
		}
		*v = StringValue(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode numeric cell value")
	}
	*v = NumberValue(n)
	return nil
}
