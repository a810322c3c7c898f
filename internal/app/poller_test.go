package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/lumen/internal/logx"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCalculateBackoff_SlowBaseUnchanged(t *testing.T) {
	if got := calculateBackoff(3, time.Minute); got != time.Minute {
		t.Fatalf("calculateBackoff(3, 1m) = %v, want 1m", got)
	}
}

func TestStartPoller_SkipsWhileInactive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var beats atomic.Int32
	var active atomic.Bool
	StartPoller(ctx, func(context.Context) bool {
		beats.Add(1)
		return true
	}, active.Load, 5*time.Millisecond, logx.Discard())

	time.Sleep(30 * time.Millisecond)
	if got := beats.Load(); got != 0 {
		t.Fatalf("beats while inactive = %d, want 0", got)
	}

	active.Store(true)
	deadline := time.Now().Add(time.Second)
	for beats.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("beats = %d, want at least 2", beats.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
