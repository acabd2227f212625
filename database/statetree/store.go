// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statetree

//go:generate mockgen -source store.go -destination store_mocks.go -package statetree

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNodeNotFound is returned by tree stores for nodes not present.
const ErrNodeNotFound = common.ConstError("tree node not found")

// ReadableTreeStore provides read access to tree nodes.
type ReadableTreeStore interface {
	// GetNode loads the node stored under the given key. If there is no
	// such node, ErrNodeNotFound is returned.
	GetNode(key NodeKey) (Node, error)
}

// NodeDeleter removes nodes from a tree store. Deleting a missing node must
// be a no-op.
type NodeDeleter interface {
	DeleteNode(key NodeKey) error
}

// ----------------------------------------------------------------------------
//                              Memory Store
// ----------------------------------------------------------------------------

// MemoryTreeStore is an in-memory tree store. It is safe for concurrent use.
type MemoryTreeStore struct {
	mutex sync.RWMutex
	nodes map[NodeKey]Node
}

func NewMemoryTreeStore() *MemoryTreeStore {
	return &MemoryTreeStore{nodes: map[NodeKey]Node{}}
}

func (s *MemoryTreeStore) GetNode(key NodeKey) (Node, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if node, found := s.nodes[key]; found {
		return node, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, key)
}

func (s *MemoryTreeStore) PutNode(key NodeKey, node Node) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.nodes[key] = node
}

func (s *MemoryTreeStore) DeleteNode(key NodeKey) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.nodes, key)
	return nil
}

// Apply adds the nodes created by the given update to this store.
func (s *MemoryTreeStore) Apply(result *UpdateResult) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, entry := range result.NewNodes {
		s.nodes[entry.Key] = entry.Node
	}
}

// Len returns the number of nodes in this store.
func (s *MemoryTreeStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.nodes)
}

// Keys returns the keys of all nodes in this store in no particular order.
func (s *MemoryTreeStore) Keys() []NodeKey {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	res := make([]NodeKey, 0, len(s.nodes))
	for key := range s.nodes {
		res = append(res, key)
	}
	return res
}

// ----------------------------------------------------------------------------
//                             Key/Value Store
// ----------------------------------------------------------------------------

// KeyValueTreeStore reads tree nodes from the node table of a key/value
// store or a snapshot of it.
type KeyValueTreeStore struct {
	reader backend.KeyValueReader
}

func NewKeyValueTreeStore(reader backend.KeyValueReader) *KeyValueTreeStore {
	return &KeyValueTreeStore{reader: reader}
}

func (s *KeyValueTreeStore) GetNode(key NodeKey) (Node, error) {
	data, err := s.reader.Get(backend.MerkleNodeTable.Key(key.Encode()))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree node %v: %w", key, err)
	}
	node, err := DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tree node %v: %w", key, err)
	}
	return node, nil
}

// NodeWriter records node updates in a key/value batch.
type NodeWriter struct {
	batch backend.Batch
}

func NewNodeWriter(batch backend.Batch) *NodeWriter {
	return &NodeWriter{batch: batch}
}

func (w *NodeWriter) PutNode(key NodeKey, node Node) error {
	return w.batch.Put(backend.MerkleNodeTable.Key(key.Encode()), EncodeNode(node))
}

func (w *NodeWriter) DeleteNode(key NodeKey) error {
	return w.batch.Delete(backend.MerkleNodeTable.Key(key.Encode()))
}

// ----------------------------------------------------------------------------
//                               Cached Store
// ----------------------------------------------------------------------------

// CachedTreeStore is a read-through LRU cache in front of another tree
// store. Since nodes are immutable, cached nodes never become outdated;
// deleted nodes must however be evicted using Remove.
type CachedTreeStore struct {
	source ReadableTreeStore
	cache  *lru.Cache[NodeKey, Node]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedTreeStore creates a cache retaining up to capacity nodes.
func NewCachedTreeStore(source ReadableTreeStore, capacity int) (*CachedTreeStore, error) {
	cache, err := lru.New[NodeKey, Node](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedTreeStore{source: source, cache: cache}, nil
}

func (s *CachedTreeStore) GetNode(key NodeKey) (Node, error) {
	if node, found := s.cache.Get(key); found {
		s.hits.Add(1)
		return node, nil
	}
	s.misses.Add(1)
	node, err := s.source.GetNode(key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, node)
	return node, nil
}

// Add registers a node known to be present in the underlying store.
func (s *CachedTreeStore) Add(key NodeKey, node Node) {
	s.cache.Add(key, node)
}

// Remove evicts the given node from the cache.
func (s *CachedTreeStore) Remove(key NodeKey) {
	s.cache.Remove(key)
}

// Purge drops all cached nodes.
func (s *CachedTreeStore) Purge() {
	s.cache.Purge()
}

// Len returns the number of cached nodes.
func (s *CachedTreeStore) Len() int {
	return s.cache.Len()
}

// Stats returns the number of cache hits and misses so far.
func (s *CachedTreeStore) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}

// GetMemoryFootprint estimates the memory used by the cached nodes.
func (s *CachedTreeStore) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	size := uintptr(0)
	for _, key := range s.cache.Keys() {
		size += unsafe.Sizeof(key) + uintptr(key.Path.Length())
		if node, found := s.cache.Peek(key); found {
			size += nodeSize(node)
		}
	}
	mf.AddChild("nodes", common.NewMemoryFootprint(size))
	hits, misses := s.Stats()
	if total := hits + misses; total > 0 {
		mf.SetNote(fmt.Sprintf("%d nodes, hit ratio %.2f", s.cache.Len(), float64(hits)/float64(total)))
	}
	return mf
}

func nodeSize(node Node) uintptr {
	switch n := node.(type) {
	case *LeafNode:
		return unsafe.Sizeof(*n) + uintptr(n.KeySuffix.Length()+len(n.Payload))
	case *InternalNode:
		return unsafe.Sizeof(*n) + unsafe.Sizeof(Child{})*uintptr(cap(n.Children))
	}
	return 0
}
