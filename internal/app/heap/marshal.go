package heap

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"

	"vela/internal/app/types"
)

// Wire format of persisted tuples, written in declared column order
// with no framing: INT as little-endian i32, TEXT as u16 length
// followed by that many UTF-8 bytes, BOOLEAN as one byte 0/1.

// MarshalValue appends the wire form of one value.
func MarshalValue(dst []byte, v types.Value) ([]byte, error) {
	switch v.Type {
	case types.INT:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v.N))
		return append(dst, buf[:]...), nil
	case types.TEXT:
		if len(v.S) > math.MaxUint16 {
			return nil, errors.Wrapf(types.ErrInvalidArgument,
				"text value of %d bytes exceeds %d", len(v.S), math.MaxUint16)
		}
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(len(v.S)))
		dst = append(dst, buf[:]...)
		return append(dst, v.S...), nil
	case types.BOOLEAN:
		b := byte(0)
		if v.N != 0 {
			b = 1
		}
		return append(dst, b), nil
	}
	return nil, errors.Wrapf(types.ErrUnsupported, "cannot marshal %s", v.Type)
}

// UnmarshalValue reads one value of the given type, returning the
// remaining bytes.
func UnmarshalValue(data []byte, dt types.DataType) (types.Value, []byte, error) {
	switch dt {
	case types.INT:
		if len(data) < 4 {
			return types.Value{}, nil, errors.Wrap(types.ErrInvalidArgument, "truncated INT value")
		}
		n := int32(binary.LittleEndian.Uint32(data[:4]))
		return types.IntValue(n), data[4:], nil
	case types.TEXT:
		if len(data) < 2 {
			return types.Value{}, nil, errors.Wrap(types.ErrInvalidArgument, "truncated TEXT length")
		}
		n := int(binary.LittleEndian.Uint16(data[:2]))
		data = data[2:]
		if len(data) < n {
			return types.Value{}, nil, errors.Wrap(types.ErrInvalidArgument, "truncated TEXT value")
		}
		return types.TextValue(string(data[:n])), data[n:], nil
	case types.BOOLEAN:
		if len(data) < 1 {
			return types.Value{}, nil, errors.Wrap(types.ErrInvalidArgument, "truncated BOOLEAN value")
		}
		return types.BoolValue(data[0] != 0), data[1:], nil
	}
	return types.Value{}, nil, errors.Wrapf(types.ErrUnsupported, "cannot unmarshal %s", dt)
}

// MarshalValues serialises a sequence of values back to back.
func MarshalValues(values []types.Value) ([]byte, error) {
	var data []byte
	var err error
	for _, v := range values {
		if data, err = MarshalValue(data, v); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// UnmarshalValues parses a sequence of values against a type profile.
func UnmarshalValues(data []byte, profile []types.DataType) ([]types.Value, error) {
	values := make([]types.Value, 0, len(profile))
	for _, dt := range profile {
		var v types.Value
		var err error
		if v, data, err = UnmarshalValue(data, dt); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// MarshalRow serialises a tuple in declared column order.
func MarshalRow(row types.ValueDict, names types.ColumnNames, attrs types.ColumnAttributes) ([]byte, error) {
	var data []byte
	var err error
	for i, name := range names {
		v, ok := row[name]
		if !ok {
			return nil, errors.Wrapf(types.ErrInvalidArgument, "row is missing column %s", name)
		}
		if v.Type != attrs[i].DataType {
			return nil, errors.Wrapf(types.ErrSchemaViolation,
				"column %s is %s, got %s", name, attrs[i].DataType, v.Type)
		}
		if data, err = MarshalValue(data, v); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// UnmarshalRow parses a tuple serialised by MarshalRow.
func UnmarshalRow(data []byte, names types.ColumnNames, attrs types.ColumnAttributes) (types.ValueDict, error) {
	row := make(types.ValueDict, len(names))
	for i, name := range names {
		var v types.Value
		var err error
		if v, data, err = UnmarshalValue(data, attrs[i].DataType); err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		row[name] = v
	}
	return row, nil
}
