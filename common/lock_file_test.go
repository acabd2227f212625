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
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLockFile_FileExistsWhileLockIsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	lock, err := CreateLockFile(path)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if !lock.Valid() {
		t.Errorf("acquired lock should be valid")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file should exist while held: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if lock.Valid() {
		t.Errorf("released lock should be invalid")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file should be removed on release, got %v", err)
	}
	if err := lock.Release(); err == nil {
		t.Errorf("second release should fail")
	}
}

func TestLockFile_OccupiedLockReportsOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	if _, found := ReadLockOwner(path); found {
		t.Errorf("missing lock file should have no owner")
	}
	lock, err := CreateLockFile(path)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if owner, found := ReadLockOwner(path); !found || owner != os.Getpid() {
		t.Errorf("unexpected lock owner, wanted %d, got %d", os.Getpid(), owner)
	}
	_, err = CreateLockFile(path)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrLocked, err)
	}
	if err == nil || !strings.Contains(err.Error(), "process") {
		t.Errorf("error should name the owning process, got %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	lock, err = CreateLockFile(path)
	if err != nil {
		t.Fatalf("released lock should be available: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("failed to release lock: %v", err)
	}
}

func TestLockFile_LeftoverFileOfOtherProcessBlocksLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	if err := os.WriteFile(path, []byte("12345"), 0600); err != nil {
		t.Fatalf("failed to prepare lock file: %v", err)
	}
	_, err := CreateLockFile(path)
	if !errors.Is(err, ErrLocked) || !strings.Contains(err.Error(), "12345") {
		t.Errorf("unexpected error, got %v", err)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatalf("failed to prepare lock file: %v", err)
	}
	if _, found := ReadLockOwner(path); found {
		t.Errorf("unreadable owner should not be reported")
	}
	if _, err := CreateLockFile(path); !errors.Is(err, ErrLocked) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrLocked, err)
	}
}

func TestLockFile_ReleaseOfRemovedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	lock, err := CreateLockFile(path)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove lock file: %v", err)
	}
	if err := lock.Release(); err == nil {
		t.Errorf("release should fail")
	}
	if lock.Valid() {
		t.Errorf("lock should be invalid after a release attempt")
	}
}

func TestLockFile_AtMostOneGoroutineHoldsTheLock(t *testing.T) {
	const N = 8
	path := filepath.Join(t.TempDir(), "lock")
	var owners, acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				lock, err := CreateLockFile(path)
				if err != nil {
					if !errors.Is(err, ErrLocked) {
						t.Errorf("unexpected error: %v", err)
					}
					continue
				}
				acquired.Add(1)
				if got := owners.Add(1); got > 1 {
					t.Errorf("lock is held by %d owners", got)
				}
				owners.Add(-1)
				if err := lock.Release(); err != nil {
					t.Errorf("failed to release lock: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	if acquired.Load() == 0 {
		t.Errorf("lock was never acquired")
	}
}
