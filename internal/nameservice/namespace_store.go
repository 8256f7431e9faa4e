package nameservice

import (
	"sync"

	"github.com/tarunmenon95/gohdfs/internal/namespace"
)

// NamespaceStore wraps the namespace engine with the single exclusive
// lock spanning each mutation and its subsequent fsimage rewrite.
// list and lookup_block deliberately do not take this lock: they read
// the in-memory tree directly, accepting the benign race window the
// design calls out explicitly (a concurrent mutation may produce a
// torn read). This matches the reference implementation, which only
// ever locks around writes.
type NamespaceStore struct {
	mu    sync.Mutex
	table *namespace.Table
}

// NewNamespaceStore wraps an already-loaded table.
func NewNamespaceStore(table *namespace.Table) *NamespaceStore {
	return &NamespaceStore{table: table}
}

func (s *NamespaceStore) List(path string) ([]namespace.Entry, error) {
	return s.table.List(path)
}

func (s *NamespaceStore) LookupBlock(path string) (string, error) {
	return s.table.LookupBlock(path)
}

func (s *NamespaceStore) Mkdir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Mkdir(path)
}

func (s *NamespaceStore) Rmdir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Rmdir(path)
}

func (s *NamespaceStore) Mkfile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Mkfile(path)
}

func (s *NamespaceStore) Rmfile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Rmfile(path)
}
