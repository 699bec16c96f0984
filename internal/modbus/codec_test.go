package modbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapsAreSelfInverse(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	for _, byteSw := range []bool{false, true} {
		for _, wordSw := range []bool{false, true} {
			encoded := applyEncodeSwaps(append([]byte(nil), data...), byteSw, wordSw)
			decoded := applyDecodeSwaps(encoded, byteSw, wordSw)
			assert.Equal(t, data, decoded, "byteSwap=%v wordSwap=%v", byteSw, wordSw)
		}
	}
}

func TestWordSwapNoopUnderFourBytes(t *testing.T) {
	data := []byte{0xAA, 0xBB}
	assert.Equal(t, data, wordSwap(data))
}

func TestEncodeDecodeRoundTripNumeric(t *testing.T) {
	cases := []struct {
		dt    DataType
		value interface{}
	}{
		{DataTypeInt16, int16(-1234)},
		{DataTypeUint16, uint16(54321)},
		{DataTypeInt32, int32(-12345678)},
		{DataTypeUint32, uint32(3000000000)},
		{DataTypeFloat, float32(3.25)},
		{DataTypeDouble, 12345.6789},
		{DataTypeBool, true},
		{DataTypeBool, false},
	}

	for _, tc := range cases {
		for _, byteSw := range []bool{false, true} {
			for _, wordSw := range []bool{false, true} {
				encoded, err := Encode(tc.value, tc.dt, byteSw, wordSw, 0)
				require.NoError(t, err)

				decoded, err := Decode(encoded, tc.dt, byteSw, wordSw)
				require.NoError(t, err)

				switch tc.dt {
				case DataTypeFloat:
					assert.InDelta(t, float64(tc.value.(float32)), decoded.(float32), 0.0001)
				default:
					assert.Equal(t, tc.value, decoded)
				}
			}
		}
	}
}

func TestEncodeStringPadsAndTruncates(t *testing.T) {
	encoded, err := Encode("hi", DataTypeString, false, false, 4)
	require.NoError(t, err)
	assert.Len(t, encoded, 8)
	assert.Equal(t, "hi", decodeString(encoded))

	// Truncation must not split a multi-byte rune.
	// 4 registers = 8 bytes, which ends on the first byte of "ö".
	long, err := Encode("héllo wörld", DataTypeString, false, false, 4)
	require.NoError(t, err)
	assert.Len(t, long, 8)
	decoded := decodeString(long)
	assert.Equal(t, "héllo w", decoded)
	for _, r := range decoded {
		assert.NotEqual(t, rune(0xFFFD), r)
	}
}

func TestEncodeStringRejectsNonString(t *testing.T) {
	_, err := Encode(42, DataTypeString, false, false, 2)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeNumericShortBuffer(t *testing.T) {
	_, err := Decode([]byte{0x00}, DataTypeInt32, false, false)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRegistersRoundTrip(t *testing.T) {
	regs := []uint16{0x1234, 0xABCD, 0x0001}
	b := BytesOfRegisters(regs)
	assert.Equal(t, regs, RegistersOf(b))
}

func TestRegisterCountUnknownDataType(t *testing.T) {
	_, err := RegisterCount(DataType("nope"), 0)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}
