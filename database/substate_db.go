// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/Fantom-foundation/substatedb/database/sdb"
	"github.com/Fantom-foundation/substatedb/database/statetree"
	"github.com/Fantom-foundation/substatedb/state"
	"go.uber.org/zap"
)

// substateDatabase is the Database implementation on top of a key/value
// store. The store hosts the substates, the state tree nodes, the stale part
// records and the metadata in separate table spaces.
type substateDatabase struct {
	params    Parameters
	log       *zap.Logger
	store     backend.KeyValueStore
	lock      common.LockFile // nil for databases without directory
	substates *sdb.Store
	nodes     *statetree.CachedTreeStore
	metrics   *metrics

	// commitMutex serializes commits, garbage collection and closing.
	commitMutex sync.Mutex
	// err is the error of a failed commit; protected by commitMutex.
	err error

	stateMutex sync.RWMutex
	current    metadata
	closed     bool
}

func openDatabase(params Parameters, factory EngineFactory) (res Database, err error) {
	var lock common.LockFile
	if params.Directory != "" {
		if lock, err = lockDirectory(params.Directory); err != nil {
			return nil, err
		}
	}
	var store backend.KeyValueStore
	defer func() {
		if err == nil {
			return
		}
		if store != nil {
			err = errors.Join(err, store.Close())
		}
		if lock != nil {
			err = errors.Join(err, lock.Release())
		}
	}()

	if store, err = factory(params.Directory, params.Logger); err != nil {
		return nil, err
	}
	current, err := readMetadata(store)
	if err != nil {
		return nil, err
	}
	nodes, err := statetree.NewCachedTreeStore(statetree.NewKeyValueTreeStore(store), params.NodeCacheSize)
	if err != nil {
		return nil, err
	}
	dbMetrics, err := newMetrics(params.Registerer, nodes.Stats)
	if err != nil {
		return nil, err
	}

	db := &substateDatabase{
		params:    params,
		log:       params.Logger,
		store:     store,
		lock:      lock,
		substates: sdb.NewStore(store),
		nodes:     nodes,
		metrics:   dbMetrics,
		current:   current,
	}
	dbMetrics.version.Set(float64(current.Version))
	db.log.Info("opened substate database",
		zap.String("variant", string(params.Variant)),
		zap.String("directory", params.Directory),
		zap.Uint64("version", uint64(current.Version)),
		zap.Stringer("root", current.RootHash),
		zap.Bool("pruning", params.Pruning),
		zap.Int("node_cache_size", params.NodeCacheSize),
	)

	// Stale parts of a pruning database not collected before the last
	// shutdown are collected now.
	if params.Pruning {
		if err := db.collectGarbage(current.Version); err != nil {
			return nil, errors.Join(err, dbMetrics.unregister())
		}
	}
	return db, nil
}

func (d *substateDatabase) getMetadata() metadata {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.current
}

func (d *substateDatabase) GetSubstate(address common.SubstateAddress) ([]byte, bool, error) {
	return d.substates.GetSubstate(address)
}

func (d *substateDatabase) ListEntries(node common.NodeId, partition common.PartitionId) (sdb.EntryIterator, error) {
	return d.substates.ListEntries(node, partition)
}

func (d *substateDatabase) ListEntriesFrom(node common.NodeId, partition common.PartitionId, from common.SubstateKey) (sdb.EntryIterator, error) {
	return d.substates.ListEntriesFrom(node, partition, from)
}

func (d *substateDatabase) ListPartitionKeys() (sdb.PartitionIterator, error) {
	return d.substates.ListPartitionKeys()
}

func (d *substateDatabase) GetCurrentVersion() common.Version {
	return d.getMetadata().Version
}

func (d *substateDatabase) GetCurrentRootHash() common.Hash {
	return d.getMetadata().RootHash
}

func (d *substateDatabase) BeginTransaction() *state.Track {
	return state.NewTrack(d)
}

func (d *substateDatabase) Commit(updates *state.StateUpdates) error {
	d.commitMutex.Lock()
	defer d.commitMutex.Unlock()
	if d.isClosed() {
		return ErrClosed
	}
	if d.err != nil {
		return d.err
	}

	start := time.Now()
	current := d.getMetadata()
	next := current.Version + 1
	res, err := statetree.Update(d.nodes, current.RootVersion, next, updates)
	if err != nil {
		return d.fail(fmt.Errorf("failed to update state tree to version %d: %w", next, err))
	}

	batch := d.store.NewBatch()
	if err := d.fillCommitBatch(batch, next, updates, res); err != nil {
		return d.fail(fmt.Errorf("failed to prepare commit of version %d: %w", next, err))
	}
	if err := batch.Write(); err != nil {
		return d.fail(fmt.Errorf("failed to commit version %d: %w", next, err))
	}

	for _, entry := range res.NewNodes {
		d.nodes.Add(entry.Key, entry.Node)
	}
	d.stateMutex.Lock()
	d.current = metadata{Version: next, RootHash: res.RootHash, RootVersion: res.RootVersion}
	d.stateMutex.Unlock()

	d.metrics.commits.Inc()
	d.metrics.version.Set(float64(next))
	d.metrics.substateChanges.Add(float64(updates.Len()))
	d.metrics.newNodes.Add(float64(len(res.NewNodes)))
	d.metrics.staleParts.Add(float64(len(res.StaleParts)))
	d.log.Debug("committed version",
		zap.Uint64("version", uint64(next)),
		zap.Stringer("root", res.RootHash),
		zap.Int("changes", updates.Len()),
		zap.Int("new_nodes", len(res.NewNodes)),
		zap.Int("stale_parts", len(res.StaleParts)),
	)

	// A failed collection only delays the reclamation of disk space; the
	// record of the stale parts is retained and collected later.
	if d.params.Pruning && len(res.StaleParts) > 0 {
		if err := d.collect(next, res.StaleParts); err != nil {
			d.log.Warn("failed to collect stale tree parts", zap.Uint64("version", uint64(next)), zap.Error(err))
		}
	}
	d.metrics.commitDuration.Observe(time.Since(start).Seconds())
	return nil
}

// fillCommitBatch adds all writes of a commit to the given batch. The
// metadata record is the last entry, so a torn batch is never observed as a
// committed version.
func (d *substateDatabase) fillCommitBatch(batch backend.Batch, version common.Version, updates *state.StateUpdates, res *statetree.UpdateResult) error {
	if err := sdb.ApplyUpdates(batch, updates); err != nil {
		return err
	}
	writer := statetree.NewNodeWriter(batch)
	for _, entry := range res.NewNodes {
		if err := writer.PutNode(entry.Key, entry.Node); err != nil {
			return err
		}
	}
	if len(res.StaleParts) > 0 {
		if err := batch.Put(stalePartKey(version), statetree.EncodeStaleParts(res.StaleParts)); err != nil {
			return err
		}
	}
	updated := metadata{Version: version, RootHash: res.RootHash, RootVersion: res.RootVersion}
	return batch.Put(metadataKey, updated.encode())
}

// fail records the given error as the terminal state of this database.
func (d *substateDatabase) fail(err error) error {
	d.err = err
	d.log.Error("commit failed, database is no longer writable", zap.Error(err))
	return err
}

func (d *substateDatabase) isClosed() bool {
	d.stateMutex.RLock()
	defer d.stateMutex.RUnlock()
	return d.closed
}

func (d *substateDatabase) GetStaleParts(version common.Version) ([]statetree.StalePart, error) {
	data, err := d.store.Get(stalePartKey(version))
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return statetree.DecodeStaleParts(data)
}

func (d *substateDatabase) CollectGarbage(upTo common.Version) error {
	d.commitMutex.Lock()
	defer d.commitMutex.Unlock()
	if d.isClosed() {
		return ErrClosed
	}
	return d.collectGarbage(upTo)
}

type staleRecord struct {
	version common.Version
	parts   []statetree.StalePart
}

// collectGarbage collects the stale parts of all versions up to the given
// version in ascending order.
func (d *substateDatabase) collectGarbage(upTo common.Version) error {
	start, _ := backend.StalePartTable.Range()
	iter := d.store.NewIterator(start, stalePartKey(upTo+1))
	records := []staleRecord{}
	for iter.Next() {
		version, err := versionOfStalePartKey(iter.Key())
		if err == nil {
			var parts []statetree.StalePart
			if parts, err = statetree.DecodeStaleParts(iter.Value()); err == nil {
				records = append(records, staleRecord{version: version, parts: parts})
				continue
			}
		}
		iter.Release()
		return fmt.Errorf("corrupted stale part record: %w", err)
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return fmt.Errorf("failed to list stale parts: %w", err)
	}

	for _, record := range records {
		if err := d.collect(record.version, record.parts); err != nil {
			return err
		}
	}
	if len(records) > 0 {
		d.log.Info("collected stale tree parts",
			zap.Int("versions", len(records)),
			zap.Uint64("up_to", uint64(upTo)),
		)
	}
	return nil
}

// collect deletes the given stale parts of a version together with their
// record in a single batch.
func (d *substateDatabase) collect(version common.Version, parts []statetree.StalePart) error {
	batch := d.store.NewBatch()
	deleter := &recordingDeleter{writer: statetree.NewNodeWriter(batch)}
	count, err := statetree.CollectStaleParts(d.nodes, deleter, parts)
	if err != nil {
		return fmt.Errorf("failed to collect stale parts of version %d: %w", version, err)
	}
	if err := batch.Delete(stalePartKey(version)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to collect stale parts of version %d: %w", version, err)
	}
	for _, key := range deleter.deleted {
		d.nodes.Remove(key)
	}
	d.metrics.prunedNodes.Add(float64(count))
	d.log.Debug("collected stale tree parts", zap.Uint64("version", uint64(version)), zap.Int("nodes", count))
	return nil
}

// recordingDeleter deletes nodes through a batch and keeps track of the
// deleted keys, such that they can be evicted from the node cache.
type recordingDeleter struct {
	writer  *statetree.NodeWriter
	deleted []statetree.NodeKey
}

func (r *recordingDeleter) DeleteNode(key statetree.NodeKey) error {
	r.deleted = append(r.deleted, key)
	return r.writer.DeleteNode(key)
}

func (d *substateDatabase) GetSnapshot() (Snapshot, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	snap, err := d.store.GetSnapshot()
	if err != nil {
		return nil, err
	}
	meta, err := readMetadata(snap)
	if err != nil {
		snap.Release()
		return nil, err
	}
	return &snapshot{
		Store:    sdb.NewStore(snap),
		snapshot: snap,
		nodes:    statetree.NewKeyValueTreeStore(snap),
		meta:     meta,
	}, nil
}

func (d *substateDatabase) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*d))
	mf.AddChild("nodeCache", d.nodes.GetMemoryFootprint())
	return mf
}

func (d *substateDatabase) Close() error {
	d.commitMutex.Lock()
	defer d.commitMutex.Unlock()
	d.stateMutex.Lock()
	if d.closed {
		d.stateMutex.Unlock()
		return nil
	}
	d.closed = true
	d.stateMutex.Unlock()

	errs := []error{d.metrics.unregister(), d.store.Close()}
	if d.lock != nil {
		errs = append(errs, d.lock.Release())
	}
	d.nodes.Purge()
	d.log.Info("closed substate database", zap.String("directory", d.params.Directory))
	return errors.Join(errs...)
}
