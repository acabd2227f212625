// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegister_CancelsContextWhenInterrupted(t *testing.T) {
	ctx, stop := Register(context.Background(), zap.NewNop())
	defer stop()
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("failed to send SIGINT: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Errorf("context was not cancelled by the interrupt")
	}
}

func TestRegister_StopCancelsContext(t *testing.T) {
	ctx, stop := Register(context.Background(), zap.NewNop())
	stop()
	if !IsCancelled(ctx) {
		t.Errorf("stopped context should be cancelled")
	}
}

func TestIsCancelled_ReportsStateOfContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if IsCancelled(ctx) {
		t.Errorf("context was not cancelled but function returned true")
	}
	cancel()
	if !IsCancelled(ctx) {
		t.Errorf("context was cancelled but function returned false")
	}
}
