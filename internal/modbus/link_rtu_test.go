package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRCRoundTrip(t *testing.T) {
	data := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02}
	framed := addCRC(append([]byte(nil), data...))
	assert.Len(t, framed, len(data)+2)
	assert.True(t, verifyCRC(framed))
}

func TestCRCDetectsCorruption(t *testing.T) {
	data := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02}
	framed := addCRC(append([]byte(nil), data...))
	framed[0] ^= 0xFF
	assert.False(t, verifyCRC(framed))
}

func TestKnownCRCVector(t *testing.T) {
	// Standard Modbus RTU example request: read holding registers, unit 1,
	// address 0, quantity 2 -> CRC 0x0BC4 (low byte first on wire: 0xC4 0x0B).
	req := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02}
	crc := calculateCRC(req)
	assert.Equal(t, uint16(0x0BC4), crc)
}

func TestRTULinkFrameAddsUnitID(t *testing.T) {
	link := &rtuLink{cfg: RTUConfig{}}
	pdu := []byte{funcReadHoldingRegs, 0x00, 0x01, 0x00, 0x02}
	framed := link.frame(7, pdu)
	assert.Equal(t, byte(7), framed[0])
	assert.Equal(t, pdu, framed[1:])
}

// TestRTULinkFrameAddressesDistinctUnits confirms one shared rtuLink frames
// different tags' requests against different unit ids — the bug a shared
// serial port must not reintroduce (two slaves on one wire stay
// independently addressable, per original_source/modbus_rtu.py's per-handler
// self.slave_id).
func TestRTULinkFrameAddressesDistinctUnits(t *testing.T) {
	link := &rtuLink{cfg: RTUConfig{}}
	pdu := []byte{funcReadHoldingRegs, 0x00, 0x01, 0x00, 0x02}

	framedA := link.frame(3, pdu)
	framedB := link.frame(9, pdu)

	assert.Equal(t, byte(3), framedA[0])
	assert.Equal(t, byte(9), framedB[0])
}
