package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPConfig is the TCP-specific portion of a link descriptor (spec.md §3).
// The unit id is not part of the link: it travels on each TagMapping so one
// link can address more than one Modbus unit (see BuildLinks).
type TCPConfig struct {
	Name     string
	Host     string
	Port     int
	ByteSwap bool
	WordSwap bool
	Timeout  time.Duration
}

// tcpLink is a Modbus TCP client link: one TCP socket per host, serialized
// by mu. Grounded on the teacher's pkg/nodes/industrial/modbus_tcp.go MBAP
// framing and transaction-ID handling.
type tcpLink struct {
	cfg    TCPConfig
	log    *zap.Logger
	mu     sync.Mutex
	conn   net.Conn
	nextTX uint16
}

// NewTCPLink constructs a TCP link. The socket is not dialed until the
// first read or write (spec.md §4.2 step 1: "ensure transport is open").
func NewTCPLink(cfg TCPConfig, log *zap.Logger) Link {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &tcpLink{cfg: cfg, log: log}
}

func (l *tcpLink) Name() string { return l.cfg.Name }

func (l *tcpLink) ensureOpen() error {
	if l.conn != nil {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, l.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
	}
	l.conn = conn
	return nil
}

func (l *tcpLink) closeLocked() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

func (l *tcpLink) ReadTag(ctx context.Context, tag TagMapping) (interface{}, error) {
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

	pdu := buildReadRequestPDU(funcCode, tag.ZeroBasedAddress(), quantity)
	respPDU, err := l.transact(pdu, tag.UnitID)
	if err != nil {
		l.log.Warn("modbus tcp read failed", zap.String("link", l.cfg.Name), zap.Error(err))
		return nil, err
	}

	return decodeReadResponse(respPDU, tag, l.cfg.ByteSwap, l.cfg.WordSwap)
}

func (l *tcpLink) WriteTag(ctx context.Context, tag TagMapping, value interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureOpen(); err != nil {
		return err
	}

	pdu, err := buildWritePDU(tag, value, l.cfg.ByteSwap, l.cfg.WordSwap)
	if err != nil {
		return err
	}
	_, err = l.transact(pdu, tag.UnitID)
	if err != nil {
		l.log.Warn("modbus tcp write failed", zap.String("link", l.cfg.Name), zap.Error(err))
	}
	return err
}

// transact sends one MBAP-framed PDU addressed to unitID and returns the
// response PDU (without the MBAP header), or a transport/protocol-exception
// error. On any failure the caller is expected to be able to call transact
// again: after a transport failure the socket is closed and will be
// re-dialed by ensureOpen; after an exception response it stays open.
func (l *tcpLink) transact(pdu []byte, unitID byte) ([]byte, error) {
	l.nextTX++
	frame := make([]byte, 7+len(pdu))
	binary.BigEndian.PutUint16(frame[0:], l.nextTX)
	binary.BigEndian.PutUint16(frame[2:], 0) // protocol id
	binary.BigEndian.PutUint16(frame[4:], uint16(1+len(pdu)))
	frame[6] = unitID
	copy(frame[7:], pdu)

	l.conn.SetDeadline(time.Now().Add(l.cfg.Timeout))

	if _, err := l.conn.Write(frame); err != nil {
		l.closeLocked()
		return nil, fmt.Errorf("%w: write: %v", ErrTransport, err)
	}

	header := make([]byte, 7)
	if _, err := readFull(l.conn, header); err != nil {
		l.closeLocked()
		return nil, fmt.Errorf("%w: read header: %v", ErrTransport, err)
	}
	length := binary.BigEndian.Uint16(header[4:])
	if length == 0 || length > 300 {
		l.closeLocked()
		return nil, fmt.Errorf("%w: implausible frame length %d", ErrTransport, length)
	}
	body := make([]byte, length-1) // minus the unit id byte already counted
	if _, err := readFull(l.conn, body); err != nil {
		l.closeLocked()
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if len(body) >= 2 && body[0]&0x80 != 0 {
		return nil, fmt.Errorf("%w: exception code %d", ErrProtocolException, body[1])
	}
	return body, nil
}

func (l *tcpLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
