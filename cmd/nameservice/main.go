// Command nameservice runs the cluster's single name service process:
// namespace engine, membership, and block-location index behind the
// framed TCP protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tarunmenon95/gohdfs/internal/clusterstore"
	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/nameservice"
	"github.com/tarunmenon95/gohdfs/internal/namespace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cluster := config.Default()
	var listenAddr, metricsAddr string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "nameservice <root-dir>",
		Short: "Run the name service: namespace engine, membership, block index.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], cluster, listenAddr, metricsAddr, verbose)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "addr", cluster.DefaultNameAddr, "address to listen on for the framed protocol")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:9100", "address to serve /healthz and /metrics on")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, root string, cluster config.Cluster, listenAddr, metricsAddr string, verbose bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := log.WithField("component", "nameservice")

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}
	table, err := namespace.Open(filepath.Join(root, "fsimage"))
	if err != nil {
		return fmt.Errorf("open fsimage: %w", err)
	}

	status, err := clusterstore.Open(filepath.Join(root, "clusterstate.db"))
	if err != nil {
		return fmt.Errorf("open clusterstore: %w", err)
	}
	defer status.Close()

	reg := prometheus.NewRegistry()
	nsMetrics := metrics.NewNameService(reg)

	srv, err := nameservice.NewServer(cluster, listenAddr, table, status, nsMetrics, entry)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	entry.WithField("addr", listenAddr).Info("name service listening")

	metricsSrv := metrics.NewServer(metricsAddr, reg, srv.Ready)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return metricsSrv.Run(gctx) })
	return g.Wait()
}
