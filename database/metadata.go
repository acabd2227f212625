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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/substatedb/backend"
	"github.com/Fantom-foundation/substatedb/common"
)

// metadataKey is the key of the singleton metadata record.
var metadataKey = backend.MetaTable.Key([]byte("state"))

const metadataSize = 8 + common.HashSize + 1 + 8

// metadata describes the committed state of the database. It is written
// as the last entry of each commit batch.
type metadata struct {
	Version  common.Version
	RootHash common.Hash
	// RootVersion is the version of the root node of the state tree or nil
	// if the tree is empty.
	RootVersion *common.Version
}

func initialMetadata() metadata {
	return metadata{RootHash: common.PlaceholderHash}
}

func (m metadata) encode() []byte {
	res := make([]byte, 0, metadataSize)
	res = binary.BigEndian.AppendUint64(res, uint64(m.Version))
	res = append(res, m.RootHash[:]...)
	if m.RootVersion == nil {
		res = append(res, 0)
		res = binary.BigEndian.AppendUint64(res, 0)
	} else {
		res = append(res, 1)
		res = binary.BigEndian.AppendUint64(res, uint64(*m.RootVersion))
	}
	return res
}

func decodeMetadata(data []byte) (metadata, error) {
	if len(data) != metadataSize {
		return metadata{}, fmt.Errorf("invalid metadata record size %d", len(data))
	}
	res := metadata{Version: common.Version(binary.BigEndian.Uint64(data))}
	copy(res.RootHash[:], data[8:])
	switch data[8+common.HashSize] {
	case 0:
	case 1:
		version := common.Version(binary.BigEndian.Uint64(data[9+common.HashSize:]))
		res.RootVersion = &version
	default:
		return metadata{}, fmt.Errorf("invalid metadata record, corrupted root flag")
	}
	return res, nil
}

// readMetadata loads the metadata record from the given store. A store
// without record is in its initial state.
func readMetadata(reader backend.KeyValueReader) (metadata, error) {
	data, err := reader.Get(metadataKey)
	if errors.Is(err, backend.ErrNotFound) {
		return initialMetadata(), nil
	}
	if err != nil {
		return metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return decodeMetadata(data)
}

// stalePartKey is the key of the list of parts that became stale when
// committing the given version.
func stalePartKey(version common.Version) []byte {
	return backend.StalePartTable.Key(binary.BigEndian.AppendUint64(nil, uint64(version)))
}

func versionOfStalePartKey(key []byte) (common.Version, error) {
	if len(key) != 9 {
		return 0, fmt.Errorf("invalid stale part key %x", key)
	}
	return common.Version(binary.BigEndian.Uint64(key[1:])), nil
}
