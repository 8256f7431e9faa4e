// Package metrics exposes each server's Prometheus counters behind a
// tiny chi-routed HTTP server. This is pure observability: it adds no
// protocol semantics and does not affect namespace, membership, or
// pipeline behavior.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NameService holds the name service's counters and gauges.
type NameService struct {
	HandshakesTotal         *prometheus.CounterVec
	HeartbeatsTotal         prometheus.Counter
	NamespaceMutationsTotal *prometheus.CounterVec
	DatanodesAdmitted       prometheus.Gauge
	InodeSlotsUsed          prometheus.Gauge
}

// NewNameService registers and returns the name service's collectors.
func NewNameService(reg prometheus.Registerer) *NameService {
	factory := promauto.With(reg)
	return &NameService{
		HandshakesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nameservice_handshakes_total",
			Help: "Total DATANODE_HANDSHAKE requests processed, by result.",
		}, []string{"result"}),
		HeartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "nameservice_heartbeats_total",
			Help: "Total DATANODE_HEARTBEAT messages received.",
		}),
		NamespaceMutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nameservice_namespace_mutations_total",
			Help: "Total namespace mutations, by operation and result.",
		}, []string{"op", "result"}),
		DatanodesAdmitted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nameservice_datanodes_admitted",
			Help: "Number of data nodes admitted to the cluster.",
		}),
		InodeSlotsUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nameservice_inode_slots_used",
			Help: "Number of occupied inode table slots.",
		}),
	}
}

// DataNode holds the data node's counters.
type DataNode struct {
	BlocksStoredTotal    prometheus.Counter
	PipelineForwardTotal *prometheus.CounterVec
	ReadsServedTotal     *prometheus.CounterVec
	HeartbeatsSentTotal  prometheus.Counter
}

// NewDataNode registers and returns the data node's collectors.
func NewDataNode(reg prometheus.Registerer) *DataNode {
	factory := promauto.With(reg)
	return &DataNode{
		BlocksStoredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "datanode_blocks_stored_total",
			Help: "Total blocks persisted to local disk.",
		}),
		PipelineForwardTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datanode_pipeline_forwards_total",
			Help: "Total WRITE_PIPELINE forwards to the next hop, by result.",
		}, []string{"result"}),
		ReadsServedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datanode_reads_served_total",
			Help: "Total CLIENT_READ requests served, by result.",
		}, []string{"result"}),
		HeartbeatsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "datanode_heartbeats_sent_total",
			Help: "Total heartbeats sent to the name service.",
		}),
	}
}

// Server is a small debug HTTP server exposing /healthz and /metrics.
type Server struct {
	httpServer *http.Server
	ready      func() bool
}

// NewServer builds a metrics server listening on addr, using reg for
// the /metrics handler. ready reports whether /healthz should return
// 200 (the owning process's accept loop is up).
func NewServer(addr string, reg *prometheus.Registry, ready func() bool) *Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if ready == nil || ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ready: ready,
	}
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
