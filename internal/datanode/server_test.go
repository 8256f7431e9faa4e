package datanode

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func startTestServer(t *testing.T, cluster config.Cluster) (*Server, *BlockStore) {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	cfg := config.DataNode{SoftwareVersion: cluster.SoftwareVersion, DataNodeID: "dn-test"}
	srv, err := NewServer(cluster, cfg, "127.0.0.1:0", store, nil, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	require.Eventually(t, srv.Ready, time.Second, time.Millisecond)
	return srv, store
}

func TestWritePipelineSingleHop(t *testing.T) {
	cluster := config.Default()
	srv, store := startTestServer(t, cluster)

	conn, err := transport.Dial(srv.Addr().String(), cluster.IdleTimeout)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(transport.WritePipelineMessage{
		MessageType: transport.MsgWritePipeline,
		BlockID:     "b1",
		Datanodes:   nil,
	}))
	require.NoError(t, conn.WriteFrame([]byte("payload")))

	require.Eventually(t, func() bool { return store.Has("b1") }, time.Second, time.Millisecond)
	got, err := store.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestWritePipelineForwardsDownstream(t *testing.T) {
	cluster := config.Default()
	srvA, storeA := startTestServer(t, cluster)
	srvB, storeB := startTestServer(t, cluster)

	tcpAddrB := srvB.Addr().(*net.TCPAddr)
	downstream := transport.Endpoint{Host: "127.0.0.1", Port: tcpAddrB.Port}

	connA, err := transport.Dial(srvA.Addr().String(), cluster.IdleTimeout)
	require.NoError(t, err)
	defer connA.Close()

	require.NoError(t, connA.WriteJSON(transport.WritePipelineMessage{
		MessageType: transport.MsgWritePipeline,
		BlockID:     "b2",
		Datanodes:   []transport.Endpoint{downstream},
	}))
	require.NoError(t, connA.WriteFrame([]byte("chained")))

	require.Eventually(t, func() bool { return storeA.Has("b2") }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return storeB.Has("b2") }, time.Second, time.Millisecond)
}

func TestClientReadHitAndMiss(t *testing.T) {
	cluster := config.Default()
	srv, store := startTestServer(t, cluster)
	require.NoError(t, store.Put("b3", []byte("bytes-on-disk")))

	conn, err := transport.Dial(srv.Addr().String(), cluster.IdleTimeout)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(transport.ClientReadRequest{MessageType: transport.MsgClientRead, BlockID: "b3"}))
	var resp transport.ClientReadResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.True(t, resp.Success)

	data, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes-on-disk"), data)

	missConn, err := transport.Dial(srv.Addr().String(), cluster.IdleTimeout)
	require.NoError(t, err)
	defer missConn.Close()

	require.NoError(t, missConn.WriteJSON(transport.ClientReadRequest{MessageType: transport.MsgClientRead, BlockID: "absent"}))
	var missResp transport.ClientReadResponse
	require.NoError(t, missConn.ReadJSON(&missResp))
	assert.False(t, missResp.Success)
}
