package modbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// RTUConfig is the serial-specific portion of a link descriptor (spec.md §3).
// The unit id is not part of the link: it travels on each TagMapping, since
// one shared serial port can carry more than one addressable unit.
type RTUConfig struct {
	Name     string
	Port     string
	BaudRate int
	DataBits int
	StopBits int    // 1 or 2
	Parity   string // none, odd, even
	Timeout  time.Duration
	ByteSwap bool
	WordSwap bool
}

// rtuLink is a Modbus RTU client link over a serial port, grounded on the
// teacher's pkg/nodes/industrial/modbus_rtu.go CRC16 framing and
// go.bug.st/serial usage. Multiple slaves sharing one serial path share one
// rtuLink instance (spec.md §12 Open Questions: RTU shared-port
// multiplexing) — the shared state is the bus transport and its mutex only,
// exactly as original_source/modbus_rtu.py shares its lock across handlers;
// each tag still frames its own unit id (TagMapping.UnitID) so two slaves on
// one wire remain independently addressable.
type rtuLink struct {
	cfg  RTUConfig
	log  *zap.Logger
	mu   sync.Mutex
	port serial.Port
}

// NewRTULink constructs an RTU link. The port is not opened until the first
// read or write.
func NewRTULink(cfg RTUConfig, log *zap.Logger) Link {
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &rtuLink{cfg: cfg, log: log}
}

func (l *rtuLink) Name() string { return l.cfg.Name }

func (l *rtuLink) ensureOpen() error {
	if l.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: l.cfg.BaudRate,
		DataBits: l.cfg.DataBits,
	}
	switch l.cfg.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}
	switch l.cfg.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(l.cfg.Port, mode)
	if err != nil {
		time.Sleep(transientPause)
		return fmt.Errorf("%w: open %s: %v", ErrTransport, l.cfg.Port, err)
	}
	port.SetReadTimeout(l.cfg.Timeout)
	l.port = port
	return nil
}

func (l *rtuLink) closeLocked() {
	if l.port != nil {
		l.port.Close()
		l.port = nil
	}
}

func (l *rtuLink) ReadTag(ctx context.Context, tag TagMapping) (interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureOpen(); err != nil {
		return nil, err
	}

	funcCode, err := readFunctionCode(tag.Function)
	if err != nil {
		return nil, err
	}
	quantity, err := tag.RegisterCount()
	if err != nil {
		return nil, err
	}
	if tag.Function == FunctionCoil {
		quantity = 1
	}

	req := l.frame(tag.UnitID, buildReadRequestPDU(funcCode, tag.ZeroBasedAddress(), quantity))
	respPDU, err := l.transact(req)
	if err != nil {
		l.log.Warn("modbus rtu read failed", zap.String("link", l.cfg.Name), zap.Error(err))
		return nil, err
	}
	return decodeReadResponse(respPDU, tag, l.cfg.ByteSwap, l.cfg.WordSwap)
}

func (l *rtuLink) WriteTag(ctx context.Context, tag TagMapping, value interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureOpen(); err != nil {
		return err
	}

	pdu, err := buildWritePDU(tag, value, l.cfg.ByteSwap, l.cfg.WordSwap)
	if err != nil {
		return err
	}
	_, err = l.transact(l.frame(tag.UnitID, pdu))
	if err != nil {
		l.log.Warn("modbus rtu write failed", zap.String("link", l.cfg.Name), zap.Error(err))
	}
	return err
}

// frame prepends the addressed unit ID to a bare PDU; the CRC is appended by
// transact.
func (l *rtuLink) frame(unitID byte, pdu []byte) []byte {
	out := make([]byte, 1+len(pdu))
	out[0] = unitID
	copy(out[1:], pdu)
	return out
}

// transact sends one CRC-framed RTU request and returns the response PDU
// with the unit ID and CRC stripped. Every transport failure pauses
// transientPause before returning (spec.md §4.2 RTU transient-failure
// handling); a write failure or an incomplete response also closes the port
// so the next call reopens it, while a CRC mismatch leaves it open.
func (l *rtuLink) transact(adu []byte) ([]byte, error) {
	adu = addCRC(adu)

	l.port.ResetInputBuffer()
	if _, err := l.port.Write(adu); err != nil {
		l.closeLocked()
		time.Sleep(transientPause)
		return nil, fmt.Errorf("%w: write: %v", ErrTransport, err)
	}

	time.Sleep(50 * time.Millisecond) // inter-frame delay, per teacher

	resp := make([]byte, 256)
	total := 0
	for {
		n, err := l.port.Read(resp[total:])
		if err != nil || n == 0 {
			break
		}
		total += n
		if total >= len(resp) {
			break
		}
	}
	if total < 5 {
		l.closeLocked()
		time.Sleep(transientPause)
		return nil, fmt.Errorf("%w: incomplete response: got %d bytes", ErrTransport, total)
	}
	resp = resp[:total]

	if !verifyCRC(resp) {
		time.Sleep(transientPause)
		return nil, fmt.Errorf("%w: crc mismatch", ErrTransport)
	}
	body := resp[:len(resp)-2] // strip crc
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: short frame", ErrDecode)
	}
	if body[1]&0x80 != 0 {
		return nil, fmt.Errorf("%w: exception code %d", ErrProtocolException, body[2])
	}
	return body[1:], nil // strip unit id, leave function code + payload
}

func (l *rtuLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}

// addCRC appends a Modbus CRC16 checksum (little-endian) to data.
func addCRC(data []byte) []byte {
	crc := calculateCRC(data)
	return append(data, byte(crc), byte(crc>>8))
}

// verifyCRC checks the trailing 2-byte CRC16 of a received frame.
func verifyCRC(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	received := uint16(data[len(data)-1])<<8 | uint16(data[len(data)-2])
	return received == calculateCRC(data[:len(data)-2])
}

// calculateCRC computes the standard Modbus CRC16 (polynomial 0xA001).
func calculateCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
