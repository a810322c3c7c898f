package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequencerRunsKeyInIssueOrder(t *testing.T) {
	var s sequencer
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := range 5 {
		prev, release := s.next("room")
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			waitFor(context.Background(), prev)
			// Earlier slots sleep longer; order must still hold.
			time.Sleep(time.Duration(5-i) * 5 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Nil(t, s.last("room"), "released slots are forgotten")
}

func TestSequencerKeysAreIndependent(t *testing.T) {
	var s sequencer
	_, releaseA := s.next("lamp:L-1")
	prevB, releaseB := s.next("lamp:L-2")
	defer releaseA()
	defer releaseB()

	assert.Nil(t, prevB)
	assert.NotNil(t, s.last("lamp:L-1"))
}

func TestWaitForHonorsContext(t *testing.T) {
	var s sequencer
	_, release := s.next("zone:Z-1")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	waitFor(ctx, s.last("zone:Z-1"))
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
