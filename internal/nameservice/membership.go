package nameservice

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/tarunmenon95/gohdfs/internal/transport"
)

// Membership tracks the data nodes known to the cluster: their
// addresses (added on handshake, never removed) and their most
// recently reported block sets (overwritten on each heartbeat, no
// eviction on missed heartbeats). Both maps are guarded by one RWMutex
// so handshake/heartbeat writers and ls/cat readers never race, while
// staying true to the design's single-writer-single-update model: a
// reader may observe any quiescent prior state, which callers (cat)
// tolerate by re-validating against the data nodes themselves.
type Membership struct {
	mu        sync.RWMutex
	addresses map[string]transport.Endpoint // datanode id -> address
	blocks    map[string][]string           // datanode id -> block report
}

// NewMembership returns an empty membership table.
func NewMembership() *Membership {
	return &Membership{
		addresses: make(map[string]transport.Endpoint),
		blocks:    make(map[string][]string),
	}
}

// Admit records (or overwrites) a data node's address after a
// successful handshake.
func (m *Membership) Admit(datanodeID string, addr transport.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[datanodeID] = addr
}

// RecordHeartbeat overwrites a data node's block report.
func (m *Membership) RecordHeartbeat(datanodeID string, blocks []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[datanodeID] = blocks
}

// Count returns the number of admitted data nodes.
func (m *Membership) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.addresses)
}

// SampleReplicas draws r distinct addresses uniformly at random from
// the admitted data nodes. It fails if fewer than r are known.
func (m *Membership) SampleReplicas(r int) ([]transport.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.addresses) < r {
		return nil, errors.New("not enough datanodes to satisfy replication factor")
	}
	all := make([]transport.Endpoint, 0, len(m.addresses))
	for _, addr := range m.addresses {
		all = append(all, addr)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:r], nil
}

// LocateBlock returns the addresses of every data node currently
// reporting blockID in its last heartbeat.
func (m *Membership) LocateBlock(blockID string) []transport.Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []transport.Endpoint
	for datanodeID, report := range m.blocks {
		for _, b := range report {
			if b == blockID {
				if addr, ok := m.addresses[datanodeID]; ok {
					out = append(out, addr)
				}
				break
			}
		}
	}
	return out
}
