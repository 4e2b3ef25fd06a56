// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAwaitShutdown(t *testing.T) {
	t.Run("returns when the wait completes", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := awaitShutdown(ctx, func() {}); err != nil {
			t.Errorf("awaitShutdown = %v, want nil", err)
		}
	})

	t.Run("honors the deadline while the wait hangs", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		block := make(chan struct{})
		defer close(block)

		start := time.Now()
		err := awaitShutdown(ctx, func() { <-block })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("awaitShutdown = %v, want DeadlineExceeded", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("awaitShutdown blocked %v past the deadline", elapsed)
		}
	})
}
