package core

import (
	"strconv"
	"time"
)

// FieldKind identifies the scalar type carried by a FieldValue.
type FieldKind int

const (
	// FieldString is a string-valued metadata field
	FieldString FieldKind = iota
	// FieldNumber is a numeric metadata field (stored as float64)
	FieldNumber
	// FieldBool is a boolean metadata field
	FieldBool
)

// FieldValue is a tagged scalar value for event metadata. Events carry
// loosely-typed attributes from many log sources; representing them as an
// explicit union keeps field resolution total and free of reflection.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Num  float64
	Bool bool
}

// StringValue wraps a string as a FieldValue.
func StringValue(s string) FieldValue {
	return FieldValue{Kind: FieldString, Str: s}
}

// NumberValue wraps a number as a FieldValue.
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: FieldNumber, Num: n}
}

// BoolValue wraps a bool as a FieldValue.
func BoolValue(b bool) FieldValue {
	return FieldValue{Kind: FieldBool, Bool: b}
}

// AsString coerces the value to its string form for modifier comparison.
func (v FieldValue) AsString() string {
	switch v.Kind {
	case FieldNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case FieldBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// AsNumber coerces the value to a float64 where possible. String values are
// parsed; booleans never convert.
func (v FieldValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case FieldNumber:
		return v.Num, true
	case FieldString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// SecurityEvent is a single normalized security event delivered for live rule
// matching. Events are immutable once handed to the match engine.
type SecurityEvent struct {
	ID          string                `json:"id"`
	Timestamp   time.Time             `json:"timestamp"`
	Source      string                `json:"source"`
	Severity    Severity              `json:"severity"`
	Category    string                `json:"category"`
	Description string                `json:"description"`
	Host        string                `json:"host"`
	Metadata    map[string]FieldValue `json:"metadata,omitempty"`
}
