package modbus

// TagMapping is the Modbus half of a tag definition (spec.md §3): enough
// to issue a read or write against a link, independent of the tag's OPC UA
// identity (which lives in the gateway/registry package).
type TagMapping struct {
	Link     string
	UnitID   byte // the Modbus slave/unit address this tag is framed against
	Function Function
	Address  uint16 // 1-based, as declared in configuration
	DataType DataType
	Length   int // register count, meaningful only for DataTypeString
}

// RegisterCount returns how many registers this mapping's value occupies.
func (m TagMapping) RegisterCount() (uint16, error) {
	return RegisterCount(m.DataType, m.Length)
}

// ZeroBasedAddress returns the wire address: tag.address - 1 (spec.md §4.2
// step 2, invariant 3).
func (m TagMapping) ZeroBasedAddress() uint16 {
	return m.Address - 1
}
