package datanode

import (
	"context"
	"encoding/json"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// Server accepts WRITE_PIPELINE and CLIENT_READ connections and runs
// the heartbeat loop alongside the accept loop under one errgroup, so
// either stopping causes an orderly shutdown of the other.
type Server struct {
	cluster config.Cluster
	cfg     config.DataNode
	ln      net.Listener
	store   *BlockStore
	metrics *metrics.DataNode
	log     *logrus.Entry

	ready chan struct{}
}

// NewServer binds addr for the data node's accept loop.
func NewServer(cluster config.Cluster, cfg config.DataNode, addr string, store *BlockStore, m *metrics.DataNode, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		cluster: cluster,
		cfg:     cfg,
		ln:      ln,
		store:   store,
		metrics: m,
		log:     log,
		ready:   make(chan struct{}),
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Ready reports whether the accept loop has started.
func (s *Server) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Run serves connections and the heartbeat loop until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.ln.Close()
	})
	g.Go(func() error {
		RunHeartbeatLoop(ctx, s.cfg, s.cluster, s.store, s.metrics, s.log)
		return nil
	})
	g.Go(func() error {
		close(s.ready)
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			go s.handleConn(conn)
		}
	})
	return g.Wait()
}

func (s *Server) handleConn(nc net.Conn) {
	defer nc.Close()
	c := transport.NewConn(nc, s.cluster.IdleTimeout)

	raw, err := c.ReadFrame()
	if err != nil {
		s.log.WithError(err).Debug("read control frame")
		return
	}
	var env transport.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.WithError(err).Debug("decode envelope")
		return
	}

	switch env.MessageType {
	case transport.MsgWritePipeline:
		var msg transport.WritePipelineMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.WithError(err).Debug("decode write pipeline header")
			return
		}
		s.handleWritePipeline(c, msg)
	case transport.MsgClientRead:
		var msg transport.ClientReadRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.WithError(err).Debug("decode client read")
			return
		}
		s.handleClientRead(c, msg)
	default:
		s.log.WithField("message_type", env.MessageType).Warn("unknown message_type")
	}
}

// handleWritePipeline receives the data frame that follows the header,
// persists it locally, and — if there is a remaining downstream hop —
// forwards header-minus-one-hop and the same bytes. A forward failure
// is logged and does not undo the local write (the design's accepted
// partial-replication weakness).
func (s *Server) handleWritePipeline(c *transport.Conn, msg transport.WritePipelineMessage) {
	data, err := c.ReadFrame()
	if err != nil {
		s.log.WithError(err).Debug("read block payload")
		return
	}
	if err := s.store.Put(msg.BlockID, data); err != nil {
		s.log.WithError(err).WithField("block_id", msg.BlockID).Error("store block")
		return
	}
	if s.metrics != nil {
		s.metrics.BlocksStoredTotal.Inc()
	}
	s.log.WithFields(logrus.Fields{"block_id": msg.BlockID, "bytes": len(data)}).Info("block stored")

	if len(msg.Datanodes) == 0 {
		return
	}
	next := msg.Datanodes[0]
	result := "ok"
	if err := forward(next, msg.BlockID, msg.Datanodes[1:], data, s.cluster); err != nil {
		result = "error"
		s.log.WithError(err).WithFields(logrus.Fields{"block_id": msg.BlockID, "next": next}).
			Warn("pipeline forward failed, local write kept")
	}
	if s.metrics != nil {
		s.metrics.PipelineForwardTotal.WithLabelValues(result).Inc()
	}
}

func forward(next transport.Endpoint, blockID string, remaining []transport.Endpoint, data []byte, cluster config.Cluster) error {
	conn, err := transport.Dial(next.String(), cluster.IdleTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	header := transport.WritePipelineMessage{
		MessageType: transport.MsgWritePipeline,
		BlockID:     blockID,
		Datanodes:   remaining,
	}
	if err := conn.WriteJSON(header); err != nil {
		return err
	}
	return conn.WriteFrame(data)
}

func (s *Server) handleClientRead(c *transport.Conn, msg transport.ClientReadRequest) {
	data, err := s.store.Get(msg.BlockID)
	has := err == nil
	result := "ok"
	if !has {
		result = "miss"
	}
	if s.metrics != nil {
		s.metrics.ReadsServedTotal.WithLabelValues(result).Inc()
	}
	if err := c.WriteJSON(transport.ClientReadResponse{Success: has}); err != nil {
		s.log.WithError(err).Debug("write read response")
		return
	}
	if !has {
		return
	}
	if err := c.WriteFrame(data); err != nil {
		s.log.WithError(err).Debug("write block payload")
	}
}
