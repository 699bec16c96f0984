package modbus

import "errors"

// Sentinel error kinds per spec.md §7. Callers use errors.Is/errors.As
// against these rather than matching on message text.
var (
	// ErrConfigInvalid marks a configuration error: fail fast at startup.
	ErrConfigInvalid = errors.New("modbus: invalid configuration")

	// ErrTransport marks a transport failure — open/timeout/CRC/EOF. Never
	// fatal; the caller treats it as a read/write failure.
	ErrTransport = errors.New("modbus: transport failure")

	// ErrProtocolException marks a Modbus exception response (illegal
	// address, illegal function, gateway error). Treated the same as a
	// transport failure by callers.
	ErrProtocolException = errors.New("modbus: protocol exception")

	// ErrDecode marks bytes inconsistent with the declared datatype.
	ErrDecode = errors.New("modbus: decode failure")
)
