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
	"fmt"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ----------------------------------------------------------------------------
//                        for database users
// ----------------------------------------------------------------------------

// Parameters struct defining configuration parameters for database instances.
type Parameters struct {
	// Variant selects the key/value engine, "go-ldb" if empty.
	Variant Variant
	// Directory hosts the database files. It is ignored by the memory variant.
	Directory string
	// Pruning enables the deletion of stale tree nodes right after each
	// commit. Without pruning, the tree nodes of historic versions are
	// retained until CollectGarbage is called.
	Pruning bool
	// NodeCacheSize is the number of tree nodes kept in memory. If zero, it
	// is derived from the memory of the host.
	NodeCacheSize int
	// Logger receives the log output of the database, if set.
	Logger *zap.Logger
	// Registerer is used to register the database's metrics, if set.
	Registerer prometheus.Registerer
}

// UnsupportedConfiguration is the error returned if unsupported configuration
// parameters have been specified. The text may contain further details regarding the
// unsupported feature.
const UnsupportedConfiguration = common.ConstError("unsupported configuration")

const (
	MemoryVariant    Variant = "memory"
	LevelDbVariant   Variant = "go-ldb"
	PebbleVariant    Variant = "go-pebble"
	defaultVariant           = LevelDbVariant
	minNodeCacheSize         = 1 << 10
	maxNodeCacheSize         = 1 << 24
	approxNodeSize           = 256 // bytes
)

// OpenDatabase is the public interface for opening substate databases. If
// for the given parameters a database can be opened, the resulting database
// is returned. If the requested configuration is not supported, the error is
// an UnsupportedConfiguration error.
func OpenDatabase(params Parameters) (Database, error) {
	if params.Variant == "" {
		params.Variant = defaultVariant
	}
	if params.NodeCacheSize < 0 {
		return nil, fmt.Errorf("%w: negative node cache size %d", UnsupportedConfiguration, params.NodeCacheSize)
	}
	if params.NodeCacheSize == 0 {
		params.NodeCacheSize = defaultNodeCacheSize(memory.TotalMemory())
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	factory, found := engineFactoryRegistry[params.Variant]
	if !found {
		return nil, fmt.Errorf("%w: no registered implementation for variant %q", UnsupportedConfiguration, params.Variant)
	}
	return openDatabase(params, factory)
}

// defaultNodeCacheSize dedicates about 1/64 of the host's memory to the
// tree node cache.
func defaultNodeCacheSize(totalMemory uint64) int {
	size := totalMemory / 64 / approxNodeSize
	return int(max(minNodeCacheSize, min(size, maxNodeCacheSize)))
}

// ----------------------------------------------------------------------------
//                      for engine implementations
// ----------------------------------------------------------------------------

// Variant names a key/value engine hosting the database.
type Variant string

// EngineFactory opens the key/value store of a variant in the given
// directory. The directory exists when the factory is called. Engines
// producing log output should use the given logger.
type EngineFactory func(directory string, logger *zap.Logger) (backend.KeyValueStore, error)

var engineFactoryRegistry = map[Variant]EngineFactory{}

// RegisterEngineFactory registers the factory of a variant. Each variant may
// only be registered once.
func RegisterEngineFactory(variant Variant, factory EngineFactory) {
	if _, found := engineFactoryRegistry[variant]; found {
		panic(fmt.Sprintf("attempted to register multiple factories for %v", variant))
	}
	engineFactoryRegistry[variant] = factory
}

// GetAllRegisteredVariants lists the names of all registered variants in
// alphabetical order.
func GetAllRegisteredVariants() []Variant {
	res := maps.Keys(engineFactoryRegistry)
	slices.Sort(res)
	return res
}
