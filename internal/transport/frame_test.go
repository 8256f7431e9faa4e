package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server, time.Second)
	cc := NewConn(client, time.Second)

	msg := []byte("hello, block store")
	done := make(chan error, 1)
	go func() { done <- sc.WriteFrame(msg) }()

	got, err := cc.ReadFrame()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, msg, got)
}

func TestFrameRoundTripEmpty(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server, time.Second)
	cc := NewConn(client, time.Second)

	done := make(chan error, 1)
	go func() { done <- sc.WriteFrame(nil) }()

	got, err := cc.ReadFrame()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Empty(t, got)
}

func TestJSONRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server, time.Second)
	cc := NewConn(client, time.Second)

	sent := HandshakeMessage{
		MessageType:     MsgDatanodeHandshake,
		SoftwareVersion: "1.0.0",
		DatanodeID:      "abc-123",
		NamespaceID:     nil,
		AddressTuple:    Endpoint{Host: "127.0.0.1", Port: 9000},
	}
	done := make(chan error, 1)
	go func() { done <- sc.WriteJSON(sent) }()

	var got HandshakeMessage
	require.NoError(t, cc.ReadJSON(&got))
	require.NoError(t, <-done)
	assert.Equal(t, sent.DatanodeID, got.DatanodeID)
	assert.Equal(t, sent.AddressTuple, got.AddressTuple)
	assert.Nil(t, got.NamespaceID)
}

func TestReadFrameOnClosedConnIsProtocolOrTransportError(t *testing.T) {
	server, client := net.Pipe()
	cc := NewConn(client, time.Second)
	_ = server.Close()

	_, err := cc.ReadFrame()
	require.Error(t, err)
	var pe *ProtocolError
	var te *TransportError
	assert.True(t, errors.As(err, &pe) || errors.As(err, &te))
}

func TestEndpointJSONShape(t *testing.T) {
	e := Endpoint{Host: "10.0.0.1", Port: 8080}
	data, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["10.0.0.1", 8080]`, string(data))

	var got Endpoint
	require.NoError(t, got.UnmarshalJSON(data))
	assert.Equal(t, e, got)
}

func TestNameKindJSONShape(t *testing.T) {
	nk := NameKind{Name: "f", Kind: "f"}
	data, err := nk.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["f", "f"]`, string(data))
}
