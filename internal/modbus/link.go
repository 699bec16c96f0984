package modbus

import (
	"context"
	"fmt"
	"time"
)

// Modbus function codes (spec.md glossary).
const (
	funcReadCoils       = 0x01
	funcReadDiscrete    = 0x02
	funcReadHoldingRegs = 0x03
	funcReadInputRegs   = 0x04
	funcWriteSingleCoil = 0x05
	funcWriteSingleReg  = 0x06
	funcWriteMultiRegs  = 0x10
)

// Link is one physical transport (TCP host or serial port) per spec.md
// §3/§4.2. Every implementation serializes its own reads and writes behind
// a single mutex so request/response framing is never interleaved.
type Link interface {
	// Name identifies the link for logging.
	Name() string

	// ReadTag performs the read contract of spec.md §4.2: ensures the
	// transport is open, issues the correct Modbus function, and decodes
	// the result. Returns (value, nil) on success; on any read failure it
	// returns (nil, err) wrapping one of the sentinel errors in errors.go
	// and never panics or terminates the process.
	ReadTag(ctx context.Context, tag TagMapping) (interface{}, error)

	// WriteTag performs the write contract of spec.md §4.2.
	WriteTag(ctx context.Context, tag TagMapping, value interface{}) error

	// Close releases the underlying transport.
	Close() error
}

// transientPause is the short pause imposed on RTU after a transient
// failure (spec.md §4.2 "design value: 100 ms") to avoid tight reconnect
// storms on disconnected serial hardware.
const transientPause = 100 * time.Millisecond

// buildReadRequestPDU builds the function-code + address + quantity portion
// of a read request, shared between TCP and RTU framing.
func buildReadRequestPDU(funcCode byte, address, quantity uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = funcCode
	pdu[1] = byte(address >> 8)
	pdu[2] = byte(address)
	pdu[3] = byte(quantity >> 8)
	pdu[4] = byte(quantity)
	return pdu
}

// buildWriteSingleCoilPDU builds a write-single-coil request PDU.
func buildWriteSingleCoilPDU(address uint16, value bool) []byte {
	coilValue := uint16(0x0000)
	if value {
		coilValue = 0xFF00
	}
	return buildReadRequestPDU(funcWriteSingleCoil, address, coilValue)
}

// buildWriteMultiRegsPDU builds a write-multiple-registers request PDU.
func buildWriteMultiRegsPDU(address uint16, regs []uint16) []byte {
	data := BytesOfRegisters(regs)
	pdu := make([]byte, 6+len(data))
	pdu[0] = funcWriteMultiRegs
	pdu[1] = byte(address >> 8)
	pdu[2] = byte(address)
	pdu[3] = byte(len(regs) >> 8)
	pdu[4] = byte(len(regs))
	pdu[5] = byte(len(data))
	copy(pdu[6:], data)
	return pdu
}

// readFunctionCode maps a tag's declared function to the Modbus read
// function code (spec.md §4.2 step 4). Returns an error for anything else
// -- "any other function value is a configuration error".
func readFunctionCode(fn Function) (byte, error) {
	switch fn {
	case FunctionHolding:
		return funcReadHoldingRegs, nil
	case FunctionInput:
		return funcReadInputRegs, nil
	case FunctionCoil:
		return funcReadCoils, nil
	default:
		return 0, fmt.Errorf("%w: unknown function %q", ErrConfigInvalid, fn)
	}
}
