// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package axml

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType is the data type tag of a typed attribute value
// (Res_value.dataType). These values are protocol constants.
type ValueType uint8

const (
	TypeNull             ValueType = 0x00
	TypeReference        ValueType = 0x01
	TypeAttribute        ValueType = 0x02
	TypeString           ValueType = 0x03
	TypeFloat            ValueType = 0x04
	TypeDimension        ValueType = 0x05
	TypeFraction         ValueType = 0x06
	TypeDynamicReference ValueType = 0x07
	TypeIntDec           ValueType = 0x10
	TypeIntHex           ValueType = 0x11
	TypeIntBoolean       ValueType = 0x12
	TypeIntColorARGB8    ValueType = 0x1c
	TypeIntColorRGB8     ValueType = 0x1d
	TypeIntColorARGB4    ValueType = 0x1e
	TypeIntColorRGB4     ValueType = 0x1f
)

// String returns the human-readable name of a value type.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeReference:
		return "reference"
	case TypeAttribute:
		return "attribute"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeDimension:
		return "dimension"
	case TypeFraction:
		return "fraction"
	case TypeDynamicReference:
		return "dynamic_reference"
	case TypeIntDec:
		return "int_dec"
	case TypeIntHex:
		return "int_hex"
	case TypeIntBoolean:
		return "boolean"
	case TypeIntColorARGB8, TypeIntColorRGB8, TypeIntColorARGB4, TypeIntColorRGB4:
		return "color"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// valueSize is the encoded size of a Res_value: size (2) + reserved
// (1) + type (1) + data (4).
const valueSize = 8

// Value is a typed attribute value. For TypeString, Data is a string
// pool index.
type Value struct {
	Type ValueType
	Data uint32
}

// Bool returns a boolean value. True is encoded as all bits set, the
// way the resource compiler writes it.
func Bool(b bool) Value {
	if b {
		return Value{Type: TypeIntBoolean, Data: 0xFFFFFFFF}
	}
	return Value{Type: TypeIntBoolean, Data: 0}
}

// Int returns a decimal integer value.
func Int(i int32) Value {
	return Value{Type: TypeIntDec, Data: uint32(i)}
}

// Reference returns a resource reference value.
func Reference(resourceID uint32) Value {
	return Value{Type: TypeReference, Data: resourceID}
}

// Truthy reports whether the value is an integer-family value with
// non-zero data. Booleans, decimal, and hex integers qualify.
func (v Value) Truthy() bool {
	switch v.Type {
	case TypeIntBoolean, TypeIntDec, TypeIntHex:
		return v.Data != 0
	}
	return false
}

// String formats the value for diagnostics. String-typed values print
// their pool index since the pool is not available here; use
// [Attribute.Text] for the resolved form.
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeReference, TypeDynamicReference:
		return fmt.Sprintf("@0x%08x", v.Data)
	case TypeAttribute:
		return fmt.Sprintf("?0x%08x", v.Data)
	case TypeString:
		return fmt.Sprintf("string#%d", v.Data)
	case TypeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(v.Data)), 'g', -1, 32)
	case TypeIntDec:
		return strconv.FormatInt(int64(int32(v.Data)), 10)
	case TypeIntHex:
		return fmt.Sprintf("0x%x", v.Data)
	case TypeIntBoolean:
		return strconv.FormatBool(v.Data != 0)
	case TypeIntColorARGB8, TypeIntColorRGB8, TypeIntColorARGB4, TypeIntColorRGB4:
		return fmt.Sprintf("#%08x", v.Data)
	default:
		return fmt.Sprintf("0x%08x (%s)", v.Data, v.Type)
	}
}

// decodeValue reads a Res_value at data[0:valueSize]. The caller
// guarantees the length.
func decodeValue(data []byte) Value {
	return Value{Type: ValueType(data[3]), Data: le.Uint32(data[4:])}
}

// putValue encodes v into data[0:valueSize].
func putValue(data []byte, v Value) {
	le.PutUint16(data[0:], valueSize)
	data[2] = 0
	data[3] = byte(v.Type)
	le.PutUint32(data[4:], v.Data)
}
