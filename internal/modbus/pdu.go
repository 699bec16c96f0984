package modbus

import "fmt"

// decodeReadResponse interprets a read response PDU (function code + byte
// count + payload, no MBAP/RTU framing) against tag's declared datatype and
// swap flags. Shared by the TCP and RTU links.
func decodeReadResponse(pdu []byte, tag TagMapping, byteSw, wordSw bool) (interface{}, error) {
	if len(pdu) < 2 {
		return nil, fmt.Errorf("%w: short read response (%d bytes)", ErrDecode, len(pdu))
	}
	byteCount := int(pdu[1])
	if len(pdu) < 2+byteCount {
		return nil, fmt.Errorf("%w: declared byte count %d exceeds frame", ErrDecode, byteCount)
	}
	data := pdu[2 : 2+byteCount]

	if tag.Function == FunctionCoil {
		if len(data) < 1 {
			return nil, fmt.Errorf("%w: empty coil response", ErrDecode)
		}
		return data[0]&0x01 != 0, nil
	}

	return Decode(data, tag.DataType, byteSw, wordSw)
}

// buildWritePDU encodes value per tag's datatype/swap flags and builds the
// appropriate write request PDU: write-single-coil for coil tags,
// write-multiple-registers otherwise (spec.md §4.2 step 5 — holding
// registers are the only writable numeric/string function).
func buildWritePDU(tag TagMapping, value interface{}, byteSw, wordSw bool) ([]byte, error) {
	if tag.Function == FunctionCoil {
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: coil write requires a bool value, got %T", ErrConfigInvalid, value)
		}
		return buildWriteSingleCoilPDU(tag.ZeroBasedAddress(), v), nil
	}
	if tag.Function != FunctionHolding {
		return nil, fmt.Errorf("%w: function %q is not writable", ErrConfigInvalid, tag.Function)
	}

	stringLength := tag.Length
	raw, err := Encode(value, tag.DataType, byteSw, wordSw, stringLength)
	if err != nil {
		return nil, err
	}
	return buildWriteMultiRegsPDU(tag.ZeroBasedAddress(), RegistersOf(raw)), nil
}
