// Package transport implements the length-prefixed framed protocol
// shared by the name service, data nodes, and the client: each frame is
// a big-endian uint32 length followed by exactly that many bytes.
// Control frames carry UTF-8 JSON with a message_type field; data
// frames carry opaque bytes. The two are never multiplexed on a
// connection — a data frame is always implied by the control frame
// that precedes it.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ProtocolError indicates a malformed or truncated frame.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error (%s): %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError indicates a connection-level failure: refusal, reset,
// or idle timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

const maxFrameLen = 1 << 32 - 1

// Conn wraps a net.Conn with framed read/write helpers and applies the
// idle timeout on every blocking operation, per the design's 60s
// default.
type Conn struct {
	nc          net.Conn
	idleTimeout time.Duration
}

// NewConn wraps nc, applying idleTimeout to every frame read/write.
func NewConn(nc net.Conn, idleTimeout time.Duration) *Conn {
	return &Conn{nc: nc, idleTimeout: idleTimeout}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *Conn) deadline() {
	if c.idleTimeout > 0 {
		_ = c.nc.SetDeadline(time.Now().Add(c.idleTimeout))
	}
}

// WriteFrame sends msg as a single length-prefixed frame.
func (c *Conn) WriteFrame(msg []byte) error {
	if len(msg) > maxFrameLen {
		return &ProtocolError{Op: "write", Err: errors.New("frame too large")}
	}
	c.deadline()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := c.nc.Write(hdr[:]); err != nil {
		return translateWriteErr(err)
	}
	if len(msg) == 0 {
		return nil
	}
	if _, err := c.nc.Write(msg); err != nil {
		return translateWriteErr(err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed frame.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.deadline()
	var hdr [4]byte
	if _, err := io.ReadFull(c.nc, hdr[:]); err != nil {
		return nil, translateReadErr(err, "read length prefix")
	}
	n := binary.BigEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if n > 0 {
		c.deadline()
		if _, err := io.ReadFull(c.nc, buf); err != nil {
			return nil, translateReadErr(err, "read frame body")
		}
	}
	return buf, nil
}

// WriteJSON marshals v and sends it as a control frame.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &ProtocolError{Op: "marshal", Err: err}
	}
	return c.WriteFrame(data)
}

// ReadJSON reads one control frame and unmarshals it into v.
func (c *Conn) ReadJSON(v any) error {
	data, err := c.ReadFrame()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ProtocolError{Op: "unmarshal", Err: err}
	}
	return nil
}

func translateReadErr(err error, op string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{Op: op, Err: err}
	}
	return &TransportError{Op: op, Err: err}
}

func translateWriteErr(err error) error {
	return &TransportError{Op: "write", Err: err}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(addr string, idleTimeout time.Duration) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, idleTimeout)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return NewConn(nc, idleTimeout), nil
}
