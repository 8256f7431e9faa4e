// Command datanode runs a single data node: block store, write
// pipeline participant, and heartbeat sender.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/datanode"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cluster := config.Default()
	var host, nameAddr, metricsAddr string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "datanode <root-dir> <port>",
		Short: "Run a data node: block store, write pipeline, heartbeats.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[1], err)
			}
			return run(cmd.Context(), args[0], port, host, nameAddr, metricsAddr, cluster, verbose)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address advertised to the name service and other data nodes")
	cmd.Flags().StringVar(&nameAddr, "nameservice-addr", cluster.DefaultNameAddr, "address of the name service (used only on first start)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /healthz and /metrics on (empty disables)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, root string, port int, host, nameAddr, metricsAddr string, cluster config.Cluster, verbose bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}

	selfAddr := transport.Endpoint{Host: host, Port: port}
	cluster.DefaultNameAddr = nameAddr

	bootEntry := log.WithField("component", "datanode")
	cfg, err := datanode.Bootstrap(root, cluster, selfAddr, bootEntry)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	entry := log.WithFields(logrus.Fields{"component": "datanode", "datanode_id": cfg.DataNodeID})

	store, err := datanode.Open(root)
	if err != nil {
		return fmt.Errorf("open block store: %w", err)
	}

	reg := prometheus.NewRegistry()
	dnMetrics := metrics.NewDataNode(reg)

	listenAddr := fmt.Sprintf("0.0.0.0:%d", port)
	srv, err := datanode.NewServer(cluster, cfg, listenAddr, store, dnMetrics, entry)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	entry.WithField("addr", listenAddr).Info("datanode listening")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if metricsAddr != "" {
		metricsSrv := metrics.NewServer(metricsAddr, reg, srv.Ready)
		g.Go(func() error { return metricsSrv.Run(gctx) })
	}
	return g.Wait()
}
