package datanode

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/metrics"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// RunHeartbeatLoop opens a fresh connection to the name service every
// cluster.HeartbeatPeriod and sends the store's full current block-id
// list. It runs until ctx is canceled; individual send failures are
// logged and do not stop the loop (the name service will simply keep
// the node's last-known report until the next tick succeeds).
func RunHeartbeatLoop(ctx context.Context, cfg config.DataNode, cluster config.Cluster, store *BlockStore, m *metrics.DataNode, log *logrus.Entry) {
	ticker := time.NewTicker(cluster.HeartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sendHeartbeat(cfg, cluster, store); err != nil {
				log.WithError(err).Warn("heartbeat failed")
				continue
			}
			if m != nil {
				m.HeartbeatsSentTotal.Inc()
			}
			log.WithField("blocks", len(store.BlockIDs())).Debug("heartbeat sent")
		}
	}
}

func sendHeartbeat(cfg config.DataNode, cluster config.Cluster, store *BlockStore) error {
	conn, err := transport.Dial(cfg.NameServiceAddr, cluster.IdleTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := transport.HeartbeatMessage{
		MessageType: transport.MsgDatanodeHeartbeat,
		DatanodeID:  cfg.DataNodeID,
		BlockReport: store.BlockIDs(),
	}
	return conn.WriteJSON(msg)
}
