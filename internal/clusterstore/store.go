// Package clusterstore maintains a durable audit trail of data-node
// handshakes and heartbeats in a bbolt database. It exists purely for
// operator introspection: the name service's actual placement and
// liveness decisions are driven by the in-memory membership maps
// (internal/nameservice), never by this store, and it does not
// participate in eviction — a stopped data node's record simply stops
// advancing.
package clusterstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var datanodesBucket = []byte("datanodes")

// Record is the JSON value stored per data-node id.
type Record struct {
	Address         string    `json:"address"`
	LastHandshakeAt time.Time `json:"last_handshake_at,omitempty"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at,omitempty"`
	LastBlockCount  int       `json:"last_block_count"`
}

// Store wraps a bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the cluster status database at
// path, ensuring the datanodes bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open clusterstore: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(datanodesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init clusterstore: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(tx *bolt.Tx, datanodeID string) Record {
	var rec Record
	if raw := tx.Bucket(datanodesBucket).Get([]byte(datanodeID)); raw != nil {
		_ = json.Unmarshal(raw, &rec)
	}
	return rec
}

func (s *Store) put(tx *bolt.Tx, datanodeID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(datanodesBucket).Put([]byte(datanodeID), data)
}

// RecordHandshake updates the address and last-handshake timestamp for
// a data node, leaving its heartbeat fields untouched.
func (s *Store) RecordHandshake(datanodeID, address string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec := s.get(tx, datanodeID)
		rec.Address = address
		rec.LastHandshakeAt = at
		return s.put(tx, datanodeID, rec)
	})
}

// RecordHeartbeat updates the last-heartbeat timestamp and reported
// block count for a data node.
func (s *Store) RecordHeartbeat(datanodeID string, blockCount int, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec := s.get(tx, datanodeID)
		rec.LastHeartbeatAt = at
		rec.LastBlockCount = blockCount
		return s.put(tx, datanodeID, rec)
	})
}

// All returns every known data node's record, keyed by data-node id.
// Intended for a status CLI subcommand or a debug HTTP route.
func (s *Store) All() (map[string]Record, error) {
	out := make(map[string]Record)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(datanodesBucket).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
