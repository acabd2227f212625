// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrLocked is returned when a lock file is owned by another holder.
const ErrLocked = ConstError("resource is locked")

// LockFile grants exclusive ownership of a resource for as long as the file
// exists. The file records the PID of the owning process.
type LockFile interface {
	// Release gives up the ownership by deleting the lock file. A lock may
	// only be released once.
	Release() error
	// Valid is true until the lock has been released.
	Valid() bool
}

type lockFile struct {
	path string
	file *os.File
}

// CreateLockFile creates the file at the given path and fails with ErrLocked
// if it already exists.
func CreateLockFile(path string) (LockFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if errors.Is(err, os.ErrExist) {
		if owner, found := ReadLockOwner(path); found {
			return nil, fmt.Errorf("%w: %s is held by process %d", ErrLocked, path, owner)
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to record lock owner: %w", err),
			file.Close(),
			os.Remove(path),
		)
	}
	return &lockFile{path: path, file: file}, nil
}

// ReadLockOwner returns the PID recorded in the given lock file, if any.
func ReadLockOwner(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func (f *lockFile) Valid() bool {
	return f.file != nil
}

func (f *lockFile) Release() error {
	if f.file == nil {
		return fmt.Errorf("unable to release invalid lock")
	}
	file := f.file
	f.file = nil
	return errors.Join(file.Close(), os.Remove(f.path))
}
