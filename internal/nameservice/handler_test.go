package nameservice

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/namespace"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	table := namespace.New(filepath.Join(t.TempDir(), "fsimage"))
	cluster := config.Default()
	return NewHandler(cluster, NewNamespaceStore(table), NewMembership(), nil, nil, testLogger())
}

func strPtr(s string) *string { return &s }

func TestHandshakeFirstTimeNullNamespace(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleHandshake(transport.HandshakeMessage{
		MessageType:     transport.MsgDatanodeHandshake,
		SoftwareVersion: "1.0.0",
		DatanodeID:      "dn-1",
		NamespaceID:     nil,
		AddressTuple:    transport.Endpoint{Host: "h1", Port: 1},
	})
	require.NotNil(t, resp.Handshake)
	assert.False(t, *resp.Handshake)
	require.NotNil(t, resp.NamespaceID)
	assert.Equal(t, "pythonhdfs3143", *resp.NamespaceID)
	assert.Equal(t, 0, h.members.Count())
}

func TestHandshakeAcceptedOnMatchingNamespace(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleHandshake(transport.HandshakeMessage{
		SoftwareVersion: "1.0.0",
		DatanodeID:      "dn-1",
		NamespaceID:     strPtr("pythonhdfs3143"),
		AddressTuple:    transport.Endpoint{Host: "h1", Port: 1},
	})
	require.NotNil(t, resp.Handshake)
	assert.True(t, *resp.Handshake)
	assert.Equal(t, 1, h.members.Count())
}

func TestHandshakeRejectedOnVersionMismatch(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleHandshake(transport.HandshakeMessage{
		SoftwareVersion: "0.9.0",
		DatanodeID:      "dn-1",
		NamespaceID:     strPtr("pythonhdfs3143"),
		AddressTuple:    transport.Endpoint{Host: "h1", Port: 1},
	})
	assert.False(t, *resp.Handshake)
	assert.Equal(t, 0, h.members.Count())
}

func TestHandshakeRejectedOnWrongNamespace(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleHandshake(transport.HandshakeMessage{
		SoftwareVersion: "1.0.0",
		DatanodeID:      "dn-1",
		NamespaceID:     strPtr("some-other-cluster"),
		AddressTuple:    transport.Endpoint{Host: "h1", Port: 1},
	})
	assert.False(t, *resp.Handshake)
}

func TestClientMkdirLsRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionMkdir, Path: "/a"})
	require.True(t, resp.Success)

	resp = h.HandleClient(transport.ClientRequest{ActionType: transport.ActionLs, Path: "/"})
	require.True(t, resp.Success)
	assert.Equal(t, []transport.NameKind{{Name: "a", Kind: "d"}}, resp.Contents)
}

func TestClientInsFailsWithoutEnoughReplicas(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionIns, Path: "/f"})
	assert.False(t, resp.Success)

	// the mkfile half of ins is not rolled back on insufficient replicas
	lsResp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionLs, Path: "/"})
	assert.Equal(t, []transport.NameKind{{Name: "f", Kind: "f"}}, lsResp.Contents)
}

func TestClientInsSucceedsWithEnoughReplicas(t *testing.T) {
	h := newTestHandler(t)
	h.members.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	h.members.Admit("dn-2", transport.Endpoint{Host: "h2", Port: 2})

	resp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionIns, Path: "/f"})
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.BlockID)
	assert.Len(t, resp.DataNodes, 2)
}

func TestClientCatFailsWithNoReportingDatanode(t *testing.T) {
	h := newTestHandler(t)
	h.members.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	h.members.Admit("dn-2", transport.Endpoint{Host: "h2", Port: 2})
	insResp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionIns, Path: "/f"})
	require.True(t, insResp.Success)

	resp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionCat, Path: "/f"})
	assert.False(t, resp.Success)
}

func TestClientCatSucceedsAfterHeartbeat(t *testing.T) {
	h := newTestHandler(t)
	h.members.Admit("dn-1", transport.Endpoint{Host: "h1", Port: 1})
	insResp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionMkdir, Path: "/a"})
	require.True(t, insResp.Success)
	mk, err := h.ns.Mkfile("/a/f")
	require.NoError(t, err)
	h.members.RecordHeartbeat("dn-1", []string{mk})

	resp := h.HandleClient(transport.ClientRequest{ActionType: transport.ActionCat, Path: "/a/f"})
	require.True(t, resp.Success)
	assert.Equal(t, mk, resp.BlockID)
	assert.Equal(t, []transport.Endpoint{{Host: "h1", Port: 1}}, resp.DatanodeAddrs)
}

func TestClientUnknownAction(t *testing.T) {
	h := newTestHandler(t)
	resp := h.HandleClient(transport.ClientRequest{ActionType: "bogus", Path: "/"})
	assert.False(t, resp.Success)
}
