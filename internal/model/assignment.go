package model

import (
	"fmt"
	"reflect"
	"strconv"
)

// Assignment is the resolved resource assignment of one event:
// Unassigned, Scalar or Multi.
type Assignment interface {
	// Includes reports whether the assignment matches the resource id.
	Includes(id any) bool
	isAssignment()
}

// Unassigned is an event without a value in the resource field.
type Unassigned struct{}

// Scalar is a single-valued assignment.
type Scalar struct {
	Value any
}

// Multi is a multi-valued assignment.
type Multi struct {
	Values []any
}

func (Unassigned) isAssignment() {}
func (Scalar) isAssignment()     {}
func (Multi) isAssignment()      {}

func (Unassigned) Includes(any) bool { return false }

func (s Scalar) Includes(id any) bool {
	return SameID(s.Value, id)
}

func (m Multi) Includes(id any) bool {
	for _, v := range m.Values {
		if SameID(v, id) {
			return true
		}
	}
	return false
}

// ResolveAssignment reads field from attrs once. A slice value is always a
// Multi; a bare scalar becomes a one-element Multi when the field is declared
// multi-valued.
func ResolveAssignment(attrs map[string]any, field string, multiple bool) Assignment {
	v, ok := attrs[field]
	if !ok || v == nil {
		return Unassigned{}
	}
	if vals, isList := listValues(v); isList {
		return Multi{Values: vals}
	}
	if multiple {
		return Multi{Values: []any{v}}
	}
	return Scalar{Value: v}
}

func listValues(v any) ([]any, bool) {
	if vals, ok := v.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// SameID compares two id values strictly: a string never equals a number,
// numbers of different Go kinds compare by value.
func SameID(a, b any) bool {
	ka, okA := canonicalID(a)
	kb, okB := canonicalID(b)
	return okA && okB && ka == kb
}

func canonicalID(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return "s:" + rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "n:" + strconv.FormatFloat(float64(rv.Int()), 'g', -1, 64), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "n:" + strconv.FormatFloat(float64(rv.Uint()), 'g', -1, 64), true
	case reflect.Float32, reflect.Float64:
		return "n:" + strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	case reflect.Bool:
		return "b:" + strconv.FormatBool(rv.Bool()), true
	default:
		return fmt.Sprintf("%T:%v", v, v), true
	}
}
