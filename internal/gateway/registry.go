package gateway

import (
	"fmt"

	"github.com/neoedge/gateway/internal/modbus"
)

// Registry is the immutable, built-once tag registry of spec.md §4.3.
// There is no auto-discovery and no exported mutator after Build.
type Registry struct {
	entries []Entry
	byNode  map[string]int
}

// Build validates every spec against the link set and datatype enum,
// assigns the OPC UA variant type and writability, and returns the closed
// registry. Mirrors original_source/neo_opcua.py:init_nodes.
func Build(specs []TagSpec, links map[string]modbus.Link) (*Registry, error) {
	reg := &Registry{byNode: make(map[string]int, len(specs))}

	for _, spec := range specs {
		if spec.NodeID == "" || spec.Name == "" {
			return nil, fmt.Errorf("%w: tag missing node_id or name", modbus.ErrConfigInvalid)
		}
		if _, ok := links[spec.Link]; !ok {
			return nil, fmt.Errorf("%w: tag %q references undefined link %q", modbus.ErrConfigInvalid, spec.NodeID, spec.Link)
		}
		if !modbus.ValidDataType(spec.DataType) {
			return nil, fmt.Errorf("%w: tag %q has unknown datatype %q", modbus.ErrConfigInvalid, spec.NodeID, spec.DataType)
		}
		if spec.Function == modbus.FunctionCoil && spec.DataType != modbus.DataTypeBool {
			return nil, fmt.Errorf("%w: tag %q: coil function requires bool datatype, got %q", modbus.ErrConfigInvalid, spec.NodeID, spec.DataType)
		}
		if spec.DataType == modbus.DataTypeString && spec.Length < 1 {
			return nil, fmt.Errorf("%w: tag %q: string datatype requires length >= 1", modbus.ErrConfigInvalid, spec.NodeID)
		}
		if _, ok := reg.byNode[spec.NodeID]; ok {
			return nil, fmt.Errorf("%w: duplicate node_id %q", modbus.ErrConfigInvalid, spec.NodeID)
		}

		variantType, err := variantTypeFor(spec.DataType)
		if err != nil {
			return nil, err
		}

		entry := Entry{
			NodeID: spec.NodeID,
			Name:   spec.Name,
			Mapping: modbus.TagMapping{
				Link:     spec.Link,
				UnitID:   spec.UnitID,
				Function: spec.Function,
				Address:  spec.Address,
				DataType: spec.DataType,
				Length:   spec.Length,
			},
			Writable:    spec.Function != modbus.FunctionInput,
			VariantType: variantType,
		}

		reg.byNode[spec.NodeID] = len(reg.entries)
		reg.entries = append(reg.entries, entry)
	}

	return reg, nil
}

// Entries returns the registry in configuration order. The slice is a copy;
// callers cannot mutate the registry through it.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup finds an entry by OPC UA node id.
func (r *Registry) Lookup(nodeID string) (Entry, bool) {
	idx, ok := r.byNode[nodeID]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// InitialValue returns the zero value a newly-built node should hold.
func InitialValue(dt modbus.DataType) interface{} {
	return zeroValueFor(dt)
}
