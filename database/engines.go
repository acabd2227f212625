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
	"path/filepath"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/backend/ldb"
	"github.com/Fantom-foundation/substatedb/backend/memory"
	"github.com/Fantom-foundation/substatedb/backend/pebble"
	cpebble "github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// engineDirectory is the sub-directory of a database directory hosting the
// files of the key/value engine.
const engineDirectory = "store"

func init() {
	RegisterEngineFactory(MemoryVariant, func(string, *zap.Logger) (backend.KeyValueStore, error) {
		return memory.New(), nil
	})
	RegisterEngineFactory(LevelDbVariant, func(directory string, _ *zap.Logger) (backend.KeyValueStore, error) {
		store, err := ldb.Open(filepath.Join(directory, engineDirectory), nil)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
	RegisterEngineFactory(PebbleVariant, func(directory string, logger *zap.Logger) (backend.KeyValueStore, error) {
		options := &cpebble.Options{Logger: logger.Named("pebble").Sugar()}
		store, err := pebble.Open(filepath.Join(directory, engineDirectory), options)
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}
