// Package gateway builds the tag registry from configuration and runs the
// polling scheduler that keeps it refreshed (spec.md §4.3, §4.4).
package gateway

import (
	"fmt"

	"github.com/gopcua/opcua/ua"

	"github.com/neoedge/gateway/internal/modbus"
)

// TagSpec is the registry's view of one configured tag — link-independent
// of the YAML schema so internal/gateway never imports internal/config.
type TagSpec struct {
	NodeID   string
	Name     string
	Link     string
	UnitID   byte
	Function modbus.Function
	Address  uint16
	DataType modbus.DataType
	Length   int
}

// Entry is one built registry row: a tag's OPC UA identity bound to its
// Modbus mapping (spec.md §3 "ownership & lifecycle": the registry holds a
// reference to the node plus its mapping).
type Entry struct {
	NodeID      string
	Name        string
	Mapping     modbus.TagMapping
	Writable    bool
	VariantType ua.VariantType
}

// variantTypeFor is the 1:1 datatype -> OPC UA variant type mapping spec.md
// §4.3 requires, grounded on original_source/neo_opcua.py's TYPE_MAP.
func variantTypeFor(dt modbus.DataType) (ua.VariantType, error) {
	switch dt {
	case modbus.DataTypeInt16:
		return ua.VariantTypeInt16, nil
	case modbus.DataTypeUint16:
		return ua.VariantTypeUint16, nil
	case modbus.DataTypeInt32:
		return ua.VariantTypeInt32, nil
	case modbus.DataTypeUint32:
		return ua.VariantTypeUint32, nil
	case modbus.DataTypeFloat:
		return ua.VariantTypeFloat, nil
	case modbus.DataTypeDouble:
		return ua.VariantTypeDouble, nil
	case modbus.DataTypeBool:
		return ua.VariantTypeBoolean, nil
	case modbus.DataTypeString:
		return ua.VariantTypeString, nil
	default:
		return 0, fmt.Errorf("%w: unknown datatype %q", modbus.ErrConfigInvalid, dt)
	}
}

// zeroValueFor returns the initial node value spec.md §4.3 calls for: empty
// string for string tags, numeric zero otherwise.
func zeroValueFor(dt modbus.DataType) interface{} {
	switch dt {
	case modbus.DataTypeString:
		return ""
	case modbus.DataTypeBool:
		return false
	case modbus.DataTypeFloat:
		return float32(0)
	case modbus.DataTypeDouble:
		return float64(0)
	case modbus.DataTypeInt16:
		return int16(0)
	case modbus.DataTypeUint16:
		return uint16(0)
	case modbus.DataTypeInt32:
		return int32(0)
	case modbus.DataTypeUint32:
		return uint32(0)
	default:
		return nil
	}
}
