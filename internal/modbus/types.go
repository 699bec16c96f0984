package modbus

import "fmt"

// Function identifies the Modbus request family a tag is mapped to.
type Function string

const (
	FunctionHolding Function = "holding"
	FunctionInput   Function = "input"
	FunctionCoil    Function = "coil"
)

// DataType is the declared wire representation of a tag's value.
type DataType string

const (
	DataTypeInt16  DataType = "int16"
	DataTypeUint16 DataType = "uint16"
	DataTypeInt32  DataType = "int32"
	DataTypeUint32 DataType = "uint32"
	DataTypeFloat  DataType = "float"
	DataTypeDouble DataType = "double"
	DataTypeBool   DataType = "bool"
	DataTypeString DataType = "string"
)

// typeInfo is one row of the fixed type table from spec.md §3: datatype ->
// (register count, big-endian binary format). String has no fixed register
// count; its RegisterCount field is unused and callers must consult the
// tag's declared Length instead.
type typeInfo struct {
	RegisterCount uint16
}

var typeTable = map[DataType]typeInfo{
	DataTypeInt16:  {RegisterCount: 1},
	DataTypeUint16: {RegisterCount: 1},
	DataTypeInt32:  {RegisterCount: 2},
	DataTypeUint32: {RegisterCount: 2},
	DataTypeFloat:  {RegisterCount: 2},
	DataTypeDouble: {RegisterCount: 4},
	DataTypeBool:   {RegisterCount: 1},
}

// ValidDataType reports whether dt is one of the eight declared datatypes.
func ValidDataType(dt DataType) bool {
	switch dt {
	case DataTypeInt16, DataTypeUint16, DataTypeInt32, DataTypeUint32,
		DataTypeFloat, DataTypeDouble, DataTypeBool, DataTypeString:
		return true
	}
	return false
}

// RegisterCount returns the number of 16-bit registers a value of dt
// occupies. For DataTypeString, length is the tag's declared register
// length (spec.md §4.1: "for string, tag.length").
func RegisterCount(dt DataType, length int) (uint16, error) {
	if dt == DataTypeString {
		if length < 1 {
			return 0, fmt.Errorf("%w: string datatype requires length >= 1", ErrConfigInvalid)
		}
		return uint16(length), nil
	}
	info, ok := typeTable[dt]
	if !ok {
		return 0, fmt.Errorf("%w: unknown datatype %q", ErrConfigInvalid, dt)
	}
	return info.RegisterCount, nil
}
