// Package config holds the cluster-wide constants and the data node's
// persisted identity record.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Cluster is the immutable set of configuration constants shared by the
// name service and every data node. It is threaded into both services
// rather than read from package-level globals.
type Cluster struct {
	SoftwareVersion   string
	NamespaceID       string
	ReplicationFactor int
	HeartbeatPeriod   time.Duration
	IdleTimeout       time.Duration
	InodeCapacity     int
	AcceptBacklog     int
	DefaultNameAddr   string
}

// Default returns the reference configuration named throughout the
// design: software version "1.0.0", namespace id "pythonhdfs3143",
// replication factor 2, a 10s heartbeat period and a 60s idle timeout.
func Default() Cluster {
	return Cluster{
		SoftwareVersion:   "1.0.0",
		NamespaceID:       "pythonhdfs3143",
		ReplicationFactor: 2,
		HeartbeatPeriod:   10 * time.Second,
		IdleTimeout:       60 * time.Second,
		InodeCapacity:     4096,
		AcceptBacklog:     5,
		DefaultNameAddr:   "localhost:60420",
	}
}

// DataNode is the JSON record persisted at <root>/hdfs_config.json. The
// data node id and namespace id together form the node's durable cluster
// identity; both survive restarts.
type DataNode struct {
	SoftwareVersion string  `json:"software_version"`
	DataNodeID      string  `json:"datanode_id"`
	NamespaceID     *string `json:"namespace_id"`
	NameServiceAddr string  `json:"nameservice_addr"`
}

// ConfigPath returns the path of the data node's persisted config file
// under root.
func ConfigPath(root string) string {
	return filepath.Join(root, "hdfs_config.json")
}

// LoadOrDefault loads the config at <root>/hdfs_config.json, or
// synthesizes a fresh one (new data node id, no namespace id yet) if
// the file does not exist.
func LoadOrDefault(root string, cluster Cluster, nameAddr string) (DataNode, error) {
	path := ConfigPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DataNode{
				SoftwareVersion: cluster.SoftwareVersion,
				DataNodeID:      uuid.NewString(),
				NamespaceID:     nil,
				NameServiceAddr: nameAddr,
			}, nil
		}
		return DataNode{}, err
	}
	var cfg DataNode
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DataNode{}, err
	}
	return cfg, nil
}

// Persist writes the config as JSON to <root>/hdfs_config.json.
func (c DataNode) Persist(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(root), data, 0o644)
}
