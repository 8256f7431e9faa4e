package datanode

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// Bootstrap loads (or synthesizes) the data node's config, performs the
// handshake, persists whatever the name service taught it, and retries
// once if this is the node's first-ever handshake. It returns the
// config to run with, now guaranteed to carry a confirmed namespace id.
func Bootstrap(root string, cluster config.Cluster, selfAddr transport.Endpoint, log *logrus.Entry) (config.DataNode, error) {
	cfg, err := config.LoadOrDefault(root, cluster, cluster.DefaultNameAddr)
	if err != nil {
		return config.DataNode{}, fmt.Errorf("load config: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := handshake(cfg, cluster, selfAddr)
		if err != nil {
			return config.DataNode{}, fmt.Errorf("handshake: %w", err)
		}
		if resp.NamespaceID != nil {
			cfg.NamespaceID = resp.NamespaceID
		}
		if err := cfg.Persist(root); err != nil {
			return config.DataNode{}, fmt.Errorf("persist config: %w", err)
		}
		accepted := resp.Handshake != nil && *resp.Handshake
		if accepted {
			log.WithField("namespace_id", *resp.NamespaceID).Info("handshake accepted")
			return cfg, nil
		}
		log.WithField("attempt", attempt).Info("handshake not yet accepted, retrying with learned namespace_id")
	}
	return config.DataNode{}, &HandshakeError{Reason: "rejected after retry"}
}

func handshake(cfg config.DataNode, cluster config.Cluster, selfAddr transport.Endpoint) (transport.HandshakeMessage, error) {
	conn, err := transport.Dial(cfg.NameServiceAddr, cluster.IdleTimeout)
	if err != nil {
		return transport.HandshakeMessage{}, err
	}
	defer conn.Close()

	req := transport.HandshakeMessage{
		MessageType:     transport.MsgDatanodeHandshake,
		SoftwareVersion: cfg.SoftwareVersion,
		DatanodeID:      cfg.DataNodeID,
		NamespaceID:     cfg.NamespaceID,
		AddressTuple:    selfAddr,
		Handshake:       nil,
	}
	if err := conn.WriteJSON(req); err != nil {
		return transport.HandshakeMessage{}, err
	}
	var resp transport.HandshakeMessage
	if err := conn.ReadJSON(&resp); err != nil {
		return transport.HandshakeMessage{}, err
	}
	return resp, nil
}

// HandshakeError reports that the name service never accepted this
// data node even after persisting the learned namespace id.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string { return "datanode handshake failed: " + e.Reason }
