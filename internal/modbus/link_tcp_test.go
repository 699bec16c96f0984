package modbus

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTCPServer is a minimal in-process Modbus TCP peer used to exercise
// tcpLink framing without a real PLC.
type fakeTCPServer struct {
	ln        net.Listener
	handler   func(pdu []byte) []byte
	gotUnitID *byte
}

func newFakeTCPServer(t *testing.T, handler func(pdu []byte) []byte) *fakeTCPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeTCPServer{ln: ln, handler: handler}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeTCPServer) addr() (string, int) {
	tcpAddr := s.ln.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func (s *fakeTCPServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *fakeTCPServer) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		header := make([]byte, 7)
		if _, err := readFull(conn, header); err != nil {
			return
		}
		txID := header[0:2]
		length := binary.BigEndian.Uint16(header[4:])
		body := make([]byte, length-1)
		if _, err := readFull(conn, body); err != nil {
			return
		}
		if s.gotUnitID != nil {
			*s.gotUnitID = header[6]
		}

		respPDU := s.handler(body)
		frame := make([]byte, 7+len(respPDU))
		copy(frame[0:2], txID)
		binary.BigEndian.PutUint16(frame[4:], uint16(1+len(respPDU)))
		frame[6] = header[6]
		copy(frame[7:], respPDU)
		conn.Write(frame)
	}
}

// TestTCPLinkFramesTagUnitID confirms the unit id on the wire comes from
// the tag being read, not a fixed value baked into the link.
func TestTCPLinkFramesTagUnitID(t *testing.T) {
	var gotUnitID byte
	srv := newFakeTCPServer(t, func(pdu []byte) []byte {
		resp := make([]byte, 4)
		resp[0] = funcReadHoldingRegs
		resp[1] = 2
		binary.BigEndian.PutUint16(resp[2:], 1)
		return resp
	})
	srv.gotUnitID = &gotUnitID
	host, port := srv.addr()

	link := NewTCPLink(TCPConfig{Name: "plc1", Host: host, Port: port, Timeout: time.Second}, zap.NewNop())
	defer link.Close()

	tagA := TagMapping{Link: "plc1", UnitID: 5, Function: FunctionHolding, Address: 1, DataType: DataTypeUint16}
	_, err := link.ReadTag(nil, tagA)
	require.NoError(t, err)
	require.Equal(t, byte(5), gotUnitID)

	tagB := TagMapping{Link: "plc1", UnitID: 9, Function: FunctionHolding, Address: 1, DataType: DataTypeUint16}
	_, err = link.ReadTag(nil, tagB)
	require.NoError(t, err)
	require.Equal(t, byte(9), gotUnitID)
}

func TestTCPLinkReadHoldingUint16(t *testing.T) {
	srv := newFakeTCPServer(t, func(pdu []byte) []byte {
		resp := make([]byte, 4)
		resp[0] = funcReadHoldingRegs
		resp[1] = 2
		binary.BigEndian.PutUint16(resp[2:], 777)
		return resp
	})
	host, port := srv.addr()

	link := NewTCPLink(TCPConfig{Name: "plc1", Host: host, Port: port, Timeout: time.Second}, zap.NewNop())
	defer link.Close()

	tag := TagMapping{Link: "plc1", UnitID: 1, Function: FunctionHolding, Address: 1, DataType: DataTypeUint16}
	value, err := link.ReadTag(nil, tag)
	require.NoError(t, err)
	require.Equal(t, uint16(777), value)
}

func TestTCPLinkWriteHoldingFloat(t *testing.T) {
	var gotPDU []byte
	srv := newFakeTCPServer(t, func(pdu []byte) []byte {
		gotPDU = append([]byte(nil), pdu...)
		resp := make([]byte, 5)
		resp[0] = funcWriteMultiRegs
		binary.BigEndian.PutUint16(resp[1:], 0)
		binary.BigEndian.PutUint16(resp[3:], 2)
		return resp
	})
	host, port := srv.addr()

	link := NewTCPLink(TCPConfig{Name: "plc1", Host: host, Port: port, Timeout: time.Second}, zap.NewNop())
	defer link.Close()

	tag := TagMapping{Link: "plc1", UnitID: 1, Function: FunctionHolding, Address: 1, DataType: DataTypeFloat}
	err := link.WriteTag(nil, tag, float64(3.5))
	require.NoError(t, err)
	require.Equal(t, byte(funcWriteMultiRegs), gotPDU[0])
}

func TestTCPLinkProtocolException(t *testing.T) {
	srv := newFakeTCPServer(t, func(pdu []byte) []byte {
		return []byte{pdu[0] | 0x80, 0x02}
	})
	host, port := srv.addr()

	link := NewTCPLink(TCPConfig{Name: "plc1", Host: host, Port: port, Timeout: time.Second}, zap.NewNop())
	defer link.Close()

	tag := TagMapping{Link: "plc1", UnitID: 1, Function: FunctionHolding, Address: 1, DataType: DataTypeUint16}
	_, err := link.ReadTag(nil, tag)
	require.ErrorIs(t, err, ErrProtocolException)
}

func TestTCPLinkDialFailureIsTransportError(t *testing.T) {
	link := NewTCPLink(TCPConfig{Name: "dead", Host: "127.0.0.1", Port: 1, Timeout: 100 * time.Millisecond}, zap.NewNop())
	tag := TagMapping{Link: "dead", UnitID: 1, Function: FunctionHolding, Address: 1, DataType: DataTypeUint16}
	_, err := link.ReadTag(nil, tag)
	require.ErrorIs(t, err, ErrTransport)
}
