package types

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// The data type of a column or value.
type DataType int

const (
	INT     DataType = iota // 32-bit signed integer
	TEXT                    // UTF-8 byte string, at most 65535 bytes
	BOOLEAN                 // stored in the integer slot as 0/1
)

func (dt DataType) String() string {
	switch dt {
	case INT:
		return "INT"
	case TEXT:
		return "TEXT"
	case BOOLEAN:
		return "BOOLEAN"
	}
	return "UNKNOWN"
}

// Parses the catalog's textual form of a data type.
func DataTypeFromString(s string) (DataType, error) {
	switch strings.ToUpper(s) {
	case "INT":
		return INT, nil
	case "TEXT":
		return TEXT, nil
	case "BOOLEAN", "BOOL":
		return BOOLEAN, nil
	}
	return INT, errors.Wrapf(ErrInvalidArgument, "unknown data type %q", s)
}

// Describes a single column of a relation.
type ColumnAttribute struct {
	DataType DataType
}

func NewColumnAttribute(dataType DataType) ColumnAttribute {
	return ColumnAttribute{DataType: dataType}
}

// A tagged scalar: one of INT, TEXT or BOOLEAN.
// BOOLEAN values keep their truth value in N as 0/1.
type Value struct {
	Type DataType
	N    int32
	S    string
}

func IntValue(n int32) Value {
	return Value{Type: INT, N: n}
}

func TextValue(s string) Value {
	return Value{Type: TEXT, S: s}
}

func BoolValue(b bool) Value {
	v := Value{Type: BOOLEAN}
	if b {
		v.N = 1
	}
	return v
}

// Returns true for BOOLEAN values holding 1.
func (v Value) Bool() bool {
	return v.N != 0
}

// Reports whether two values are equal. Values of different
// types are never equal.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	if v.Type == TEXT {
		return v.S == other.S
	}
	return v.N == other.N
}

// Orders two values of the same type. Comparing values of
// different types is undefined and rejected.
func (v Value) Compare(other Value) (int, error) {
	if v.Type != other.Type {
		return 0, errors.Wrapf(ErrInvalidArgument,
			"cannot compare %s with %s", v.Type, other.Type)
	}
	if v.Type == TEXT {
		return strings.Compare(v.S, other.S), nil
	}
	switch {
	case v.N < other.N:
		return -1, nil
	case v.N > other.N:
		return 1, nil
	}
	return 0, nil
}

func (v Value) String() string {
	switch v.Type {
	case TEXT:
		return fmt.Sprintf("%q", v.S)
	case BOOLEAN:
		if v.N == 0 {
			return "false"
		}
		return "true"
	}
	return fmt.Sprintf("%d", v.N)
}

// A tuple in its in-memory form: column name to value.
// The persisted form is always in declared column order.
type ValueDict map[string]Value

// Returns a copy of the dictionary.
func (vd ValueDict) Clone() ValueDict {
	out := make(ValueDict, len(vd))
	for k, v := range vd {
		out[k] = v
	}
	return out
}

type ColumnNames []string

// Reports whether name is one of the columns.
func (cn ColumnNames) Contains(name string) bool {
	for _, c := range cn {
		if c == name {
			return true
		}
	}
	return false
}

type ColumnAttributes []ColumnAttribute
