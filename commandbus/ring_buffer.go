package commandbus

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

const (
	// DefaultBufferSize is the number of work slots when WithBufferSize is not used.
	DefaultBufferSize = 4096

	initialSequenceValue int64 = -1
)

// ClaimPolicy decides what a producer does when the buffer is full.
type ClaimPolicy int

const (
	// BlockingClaim makes Dispatch wait, per the configured WaitStrategy, until a slot is free.
	BlockingClaim ClaimPolicy = iota

	// FailingClaim makes Dispatch return ErrBufferFull immediately.
	FailingClaim
)

// String provides a string representation of ClaimPolicy for logging and configuration.
func (p ClaimPolicy) String() string {
	switch p {
	case BlockingClaim:
		return "blocking"
	case FailingClaim:
		return "failing"
	default:
		return "unknown"
	}
}

// ParseClaimPolicy maps "blocking" or "failing" to a ClaimPolicy.
func ParseClaimPolicy(name string) (ClaimPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blocking":
		return BlockingClaim, nil
	case "failing", "fail":
		return FailingClaim, nil
	default:
		return BlockingClaim, errors.Join(ErrUnknownClaimPolicy, errors.New(name))
	}
}

// sequence is a cursor padded against false sharing with neighboring cursors.
type sequence struct {
	_     [7]int64
	value atomic.Int64
	_     [7]int64
}

func newSequence() *sequence {
	s := &sequence{}
	s.value.Store(initialSequenceValue)

	return s
}

func (s *sequence) get() int64 {
	return s.value.Load()
}

func (s *sequence) set(value int64) {
	s.value.Store(value)
}

// ringBuffer is a fixed-size circular array of preallocated entries addressed by sequence number.
//
// Producers claim sequences with a CAS on the claim cursor, then publish them by writing
// the sequence into the slot's availability marker. A claim never wraps past the gating
// cursor, which is the cursor of the last pipeline stage.
type ringBuffer[E any] struct {
	entries      []E
	available    []atomic.Int64
	size         int64
	mask         int64
	claimCursor  *sequence
	gating       func() int64
	claimPolicy  ClaimPolicy
	waitStrategy WaitStrategy
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func newRingBuffer[E any](entries []E, claimPolicy ClaimPolicy, waitStrategy WaitStrategy) (*ringBuffer[E], error) {
	if !isPowerOfTwo(len(entries)) {
		return nil, ErrInvalidBufferSize
	}

	available := make([]atomic.Int64, len(entries))
	for i := range available {
		available[i].Store(initialSequenceValue)
	}

	return &ringBuffer[E]{
		entries:      entries,
		available:    available,
		size:         int64(len(entries)),
		mask:         int64(len(entries) - 1),
		claimCursor:  newSequence(),
		gating:       func() int64 { return initialSequenceValue },
		claimPolicy:  claimPolicy,
		waitStrategy: waitStrategy,
	}, nil
}

// setGatingSequence sets the cursor producers must not overrun by more than the buffer size.
func (r *ringBuffer[E]) setGatingSequence(gating *sequence) {
	r.gating = gating.get
}

// next claims the next sequence, applying the claim policy when the buffer is full.
func (r *ringBuffer[E]) next(ctx context.Context) (int64, error) {
	for {
		current := r.claimCursor.get()
		next := current + 1
		wrapPoint := next - r.size

		if wrapPoint > r.gating() {
			if r.claimPolicy == FailingClaim {
				return initialSequenceValue, ErrBufferFull
			}

			if err := r.awaitCapacity(ctx, wrapPoint); err != nil {
				return initialSequenceValue, err
			}

			continue
		}

		if r.claimCursor.value.CompareAndSwap(current, next) {
			return next, nil
		}
	}
}

func (r *ringBuffer[E]) awaitCapacity(ctx context.Context, wrapPoint int64) error {
	stop := context.AfterFunc(ctx, r.waitStrategy.SignalAllWhenBlocking)
	defer stop()

	_, err := r.waitStrategy.WaitFor(wrapPoint, r.gating, func() bool { return ctx.Err() != nil })
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return err
	}

	return nil
}

// get returns the entry for the sequence.
func (r *ringBuffer[E]) get(sequence int64) E {
	return r.entries[sequence&r.mask]
}

// publish makes the claimed sequence visible to the first stage.
func (r *ringBuffer[E]) publish(sequence int64) {
	r.available[sequence&r.mask].Store(sequence)
	r.waitStrategy.SignalAllWhenBlocking()
}

// highestPublishedFrom returns the highest sequence published contiguously from lower on,
// or lower-1 when lower itself is not published yet.
func (r *ringBuffer[E]) highestPublishedFrom(lower int64) int64 {
	for s := lower; ; s++ {
		if r.available[s&r.mask].Load() != s {
			return s - 1
		}
	}
}

// claimed returns the highest claimed sequence.
func (r *ringBuffer[E]) claimed() int64 {
	return r.claimCursor.get()
}

// remainingCapacity returns the number of slots that can be claimed without waiting.
func (r *ringBuffer[E]) remainingCapacity() int64 {
	return r.size - (r.claimCursor.get() - r.gating())
}

// bufferSize returns the number of slots.
func (r *ringBuffer[E]) bufferSize() int64 {
	return r.size
}
