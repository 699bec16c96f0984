// Package modbus implements the typed Modbus transaction layer: register
// packing/swapping (this file), and per-link transports (link*.go).
package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// byteSwap swaps the two bytes within each register (spec.md §4.1 step 1).
// Self-inverse; a no-op on an odd trailing byte.
func byteSwap(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

// wordSwap reverses the order of 2-byte registers across the buffer
// (spec.md §4.1 step 2). Only applied when the buffer holds at least two
// full registers; self-inverse.
func wordSwap(data []byte) []byte {
	if len(data) < 4 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	nregs := len(data) / 2
	out := make([]byte, len(data))
	copy(out, data[nregs*2:]) // odd trailing byte, if any, keeps its position
	for i := 0; i < nregs; i++ {
		src := data[i*2 : i*2+2]
		dstIdx := nregs - 1 - i
		copy(out[dstIdx*2:dstIdx*2+2], src)
	}
	return out
}

// applyEncodeSwaps applies byte swap then word swap, per spec.md §4.1.
func applyEncodeSwaps(data []byte, byteSw, wordSw bool) []byte {
	if byteSw {
		data = byteSwap(data)
	}
	if wordSw {
		data = wordSwap(data)
	}
	return data
}

// applyDecodeSwaps undoes applyEncodeSwaps: word swap then byte swap, since
// both transforms are self-inverse (spec.md §4.1 invariant 4).
func applyDecodeSwaps(data []byte, byteSw, wordSw bool) []byte {
	if wordSw {
		data = wordSwap(data)
	}
	if byteSw {
		data = byteSwap(data)
	}
	return data
}

// Encode packs value into big-endian Modbus register bytes per dt, applying
// the requested swaps to every datatype except DataTypeString, whose bytes
// are never swapped (Decode mirrors this). For DataTypeString, value must be a string and
// stringLength is the register count; the result is exactly
// 2*stringLength bytes, UTF-8 encoded and right-padded with NUL, truncated
// rune-safely if the encoded form is longer than 2*stringLength (spec.md
// §4.1 invariant 2 — truncation, not error; see SPEC_FULL.md §12).
func Encode(value interface{}, dt DataType, byteSw, wordSw bool, stringLength int) ([]byte, error) {
	if dt == DataTypeString {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string datatype requires a string value, got %T", ErrDecode, value)
		}
		return encodeString(s, stringLength), nil
	}

	raw, err := encodeNumeric(value, dt)
	if err != nil {
		return nil, err
	}
	return applyEncodeSwaps(raw, byteSw, wordSw), nil
}

func encodeString(s string, stringLength int) []byte {
	out := make([]byte, 2*stringLength)
	b := []byte(s)
	copy(out, truncateUTF8(b, len(out)))
	return out
}

// truncateUTF8 truncates b to at most max bytes without splitting a
// multi-byte UTF-8 rune in the middle.
func truncateUTF8(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	b = b[:max]
	for len(b) > 0 {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			break
		}
		b = b[:len(b)-1]
	}
	return b
}

func encodeNumeric(value interface{}, dt DataType) ([]byte, error) {
	switch dt {
	case DataTypeInt16:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(int16(v)))
		return buf, nil
	case DataTypeUint16:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(v))
		return buf, nil
	case DataTypeInt32:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(v)))
		return buf, nil
	case DataTypeUint32:
		v, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(v))
		return buf, nil
	case DataTypeFloat:
		v, err := asFloat64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(v)))
		return buf, nil
	case DataTypeDouble:
		v, err := asFloat64(value)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil
	case DataTypeBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: bool datatype requires a bool value, got %T", ErrDecode, value)
		}
		buf := make([]byte, 2)
		if v {
			buf[1] = 1
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown datatype %q", ErrConfigInvalid, dt)
	}
}

// Decode is the inverse of Encode: it undoes the requested swaps and
// unpacks bytes per dt. For DataTypeString it UTF-8 decodes (dropping
// invalid sequences) and strips trailing NUL bytes.
func Decode(data []byte, dt DataType, byteSw, wordSw bool) (interface{}, error) {
	if dt == DataTypeString {
		return decodeString(data), nil
	}

	raw := applyDecodeSwaps(data, byteSw, wordSw)
	return decodeNumeric(raw, dt)
}

func decodeString(data []byte) string {
	s := make([]rune, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r != utf8.RuneError || size > 1 {
			s = append(s, r)
		}
		i += size
		if size == 0 {
			break
		}
	}
	out := string(s)
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func decodeNumeric(raw []byte, dt DataType) (interface{}, error) {
	info, ok := typeTable[dt]
	if !ok {
		return nil, fmt.Errorf("%w: unknown datatype %q", ErrConfigInvalid, dt)
	}
	want := int(info.RegisterCount) * 2
	if len(raw) < want {
		return nil, fmt.Errorf("%w: need %d bytes for %s, got %d", ErrDecode, want, dt, len(raw))
	}
	raw = raw[:want]

	switch dt {
	case DataTypeInt16:
		return int16(binary.BigEndian.Uint16(raw)), nil
	case DataTypeUint16:
		return binary.BigEndian.Uint16(raw), nil
	case DataTypeInt32:
		return int32(binary.BigEndian.Uint32(raw)), nil
	case DataTypeUint32:
		return binary.BigEndian.Uint32(raw), nil
	case DataTypeFloat:
		return math.Float32frombits(binary.BigEndian.Uint32(raw)), nil
	case DataTypeDouble:
		return math.Float64frombits(binary.BigEndian.Uint64(raw)), nil
	case DataTypeBool:
		return binary.BigEndian.Uint16(raw) != 0, nil
	default:
		return nil, fmt.Errorf("%w: unknown datatype %q", ErrConfigInvalid, dt)
	}
}

func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: cannot interpret %T as an integer", ErrDecode, value)
	}
}

func asFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: cannot interpret %T as a float", ErrDecode, value)
	}
}

// RegistersOf splits a byte buffer into big-endian 16-bit words (spec.md
// §4.1). The inverse is BytesOfRegisters.
func RegistersOf(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}
	return out
}

// BytesOfRegisters is the inverse of RegistersOf: big-endian word order
// back to a byte buffer.
func BytesOfRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], r)
	}
	return out
}
