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
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/substatedb/common"
)

// lockFileName names the file marking a database directory as in use.
const lockFileName = "LOCK.substatedb"

// lockDirectory creates the given directory if needed and takes exclusive
// ownership of it for the current process.
func lockDirectory(directory string) (common.LockFile, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	lock, err := common.CreateLockFile(filepath.Join(directory, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("database directory %s is in use: %w", directory, err)
	}
	return lock, nil
}
