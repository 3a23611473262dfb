package commandbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T, size int, policy ClaimPolicy) *ringBuffer[*int64] {
	t.Helper()

	entries := make([]*int64, size)
	for i := range entries {
		entries[i] = new(int64)
	}

	ring, err := newRingBuffer(entries, policy, BlockingWait())
	require.NoError(t, err)

	return ring
}

func Test_NewRingBuffer_When_SizeIsNotAPowerOfTwo(t *testing.T) {
	for _, size := range []int{0, 3, 6, 1000} {
		_, err := newRingBuffer(make([]int, size), BlockingClaim, BlockingWait())
		assert.ErrorIs(t, err, ErrInvalidBufferSize, "size %d", size)
	}

	for _, size := range []int{1, 2, 1024, DefaultBufferSize} {
		_, err := newRingBuffer(make([]int, size), BlockingClaim, BlockingWait())
		assert.NoError(t, err, "size %d", size)
	}
}

func Test_RingBuffer_Next_ClaimsSequencesInOrder(t *testing.T) {
	// setup
	ring := newTestRing(t, 8, BlockingClaim)

	// act + assert
	for expected := range int64(8) {
		seq, err := ring.next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, seq)
	}

	assert.Equal(t, int64(7), ring.claimed())
	assert.Equal(t, int64(0), ring.remainingCapacity())
}

func Test_RingBuffer_Next_When_ProducersAreConcurrent_Then_EverySequenceIsClaimedOnce(t *testing.T) {
	// setup
	ring := newTestRing(t, 1024, BlockingClaim)
	const numProducers = 8
	const claimsPerProducer = 128

	claimed := make(chan int64, numProducers*claimsPerProducer)

	var wg sync.WaitGroup

	// act
	for range numProducers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range claimsPerProducer {
				seq, err := ring.next(context.Background())
				if err == nil {
					claimed <- seq
				}
			}
		}()
	}

	wg.Wait()
	close(claimed)

	// assert
	seen := make(map[int64]bool)
	for seq := range claimed {
		assert.False(t, seen[seq], "sequence %d claimed twice", seq)
		seen[seq] = true
	}

	assert.Len(t, seen, numProducers*claimsPerProducer)
}

func Test_RingBuffer_Next_When_FullWithFailingPolicy_Then_ErrBufferFull(t *testing.T) {
	// setup
	ring := newTestRing(t, 2, FailingClaim)
	gating := newSequence()
	ring.setGatingSequence(gating)

	// arrange
	_, _ = ring.next(context.Background())
	_, _ = ring.next(context.Background())

	// act
	_, err := ring.next(context.Background())

	// assert
	assert.ErrorIs(t, err, ErrBufferFull)

	gating.set(0)
	seq, err := ring.next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func Test_RingBuffer_Next_When_FullWithBlockingPolicy_Then_WaitsForTheGatingSequence(t *testing.T) {
	// setup
	ring := newTestRing(t, 2, BlockingClaim)
	gating := newSequence()
	ring.setGatingSequence(gating)

	_, _ = ring.next(context.Background())
	_, _ = ring.next(context.Background())

	// act
	claimed := make(chan int64, 1)

	go func() {
		seq, err := ring.next(context.Background())
		if err == nil {
			claimed <- seq
		}
	}()

	// assert
	select {
	case <-claimed:
		t.Fatal("claim must block while the buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	gating.set(0)
	ring.waitStrategy.SignalAllWhenBlocking()

	select {
	case seq := <-claimed:
		assert.Equal(t, int64(2), seq)
	case <-time.After(time.Second):
		t.Fatal("claim did not resume after the gating sequence moved")
	}
}

func Test_RingBuffer_Next_When_ContextIsCanceledWhileBlocked(t *testing.T) {
	// setup
	ring := newTestRing(t, 1, BlockingClaim)
	ring.setGatingSequence(newSequence())
	_, _ = ring.next(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// act
	_, err := ring.next(ctx)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_RingBuffer_HighestPublishedFrom_StopsAtTheFirstGap(t *testing.T) {
	// setup
	ring := newTestRing(t, 8, BlockingClaim)

	for range 4 {
		_, _ = ring.next(context.Background())
	}

	// act
	ring.publish(0)
	ring.publish(1)
	ring.publish(3)

	// assert
	assert.Equal(t, int64(1), ring.highestPublishedFrom(0))
	assert.Equal(t, int64(1), ring.highestPublishedFrom(2), "lower-1 when lower itself is not published")

	ring.publish(2)
	assert.Equal(t, int64(3), ring.highestPublishedFrom(0))
}

func Test_RingBuffer_Get_WrapsAroundBySequence(t *testing.T) {
	ring := newTestRing(t, 4, BlockingClaim)

	assert.Same(t, ring.get(1), ring.get(5))
	assert.NotSame(t, ring.get(1), ring.get(2))
}

func Test_ParseClaimPolicy(t *testing.T) {
	policy, err := ParseClaimPolicy("failing")
	require.NoError(t, err)
	assert.Equal(t, FailingClaim, policy)

	policy, err = ParseClaimPolicy("")
	require.NoError(t, err)
	assert.Equal(t, BlockingClaim, policy)
	assert.Equal(t, "blocking", policy.String())

	_, err = ParseClaimPolicy("sometimes")
	assert.ErrorIs(t, err, ErrUnknownClaimPolicy)
}
