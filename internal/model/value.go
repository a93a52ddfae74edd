package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies which variant of a Value is populated.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key of a JSON object. Objects keep their members in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is a decoded JSON value. Only the field matching Kind is meaningful.
type Value struct {
	Str     string
	Num     json.Number
	Items   []Value
	Members []Member
	Kind    Kind
	Bool    bool
}

// Null returns the JSON null value.
func Null() Value { return Value{Kind: KindNull} }

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a number value holding its literal text.
func Number(n json.Number) Value { return Value{Kind: KindNumber, Num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Array returns an array value.
func Array(items ...Value) Value { return Value{Kind: KindArray, Items: items} }

// Object returns an object value with members in the given order.
func Object(members ...Member) Value { return Value{Kind: KindObject, Members: members} }

// IsScalar reports whether v is a leaf (not an array or object).
func (v Value) IsScalar() bool {
	return v.Kind != KindArray && v.Kind != KindObject
}

// Get returns the first member named key of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Text renders a scalar the way it appears in a label or CSV cell: strings
// unquoted, numbers as their literal, null as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return ""
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

// MarshalJSON renders v as JSON, preserving object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		if v.Num == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.Num.String())
		}
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
