package nameservice

import (
	"context"
	"encoding/json"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tarunmenon95/gohdfs/internal/clusterstore"
	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/namespace"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// Server is the name service's accept loop: one goroutine per accepted
// connection, each running to completion against a shared Handler.
// Namespace serialization happens inside NamespaceStore, not here.
type Server struct {
	cluster config.Cluster
	ln      net.Listener
	handler *Handler
	limiter *rate.Limiter
	log     *logrus.Entry

	ready chan struct{}
}

// NewServer binds addr and builds a Server. table is the already
// loaded-or-created namespace; status and m may be nil to disable the
// audit store and metrics respectively.
func NewServer(cluster config.Cluster, addr string, table *namespace.Table, status *clusterstore.Store, m *metrics.NameService, log *logrus.Entry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	members := NewMembership()
	handler := NewHandler(cluster, NewNamespaceStore(table), members, status, m, log)
	return &Server{
		cluster: cluster,
		ln:      ln,
		handler: handler,
		// Admission control: this bounds how fast new TCP connections
		// are accepted, independent of the per-connection idle timeout.
		limiter: rate.NewLimiter(rate.Limit(200), 200),
		log:     log,
		ready:   make(chan struct{}),
	}, nil
}

// Addr returns the bound listen address (useful when addr was ":0").
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Ready reports whether the accept loop has started, for the
// /healthz handler.
func (s *Server) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Run serves until ctx is canceled, then closes the listener and
// returns. Connections already accepted keep running in their own
// goroutines; Run does not wait for them.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.ln.Close()
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
			if err := s.limiter.Wait(ctx); err != nil {
				_ = conn.Close()
				continue
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
	case transport.MsgDatanodeHandshake:
		var msg transport.HandshakeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.WithError(err).Debug("decode handshake")
			return
		}
		resp := s.handler.HandleHandshake(msg)
		if err := c.WriteJSON(resp); err != nil {
			s.log.WithError(err).Debug("write handshake response")
		}
	case transport.MsgDatanodeHeartbeat:
		var msg transport.HeartbeatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.WithError(err).Debug("decode heartbeat")
			return
		}
		s.handler.HandleHeartbeat(msg)
	case transport.MsgClient:
		var msg transport.ClientRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.WithError(err).Debug("decode client request")
			return
		}
		resp := s.handler.HandleClient(msg)
		if err := c.WriteJSON(resp); err != nil {
			s.log.WithError(err).Debug("write client response")
		}
	default:
		s.log.WithField("message_type", env.MessageType).Warn("unknown message_type")
	}
}
