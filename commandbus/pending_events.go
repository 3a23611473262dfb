package commandbus

import (
	"slices"
	"sync"
)

type cycleState int

const (
	cycleInFlight cycleState = iota
	cycleCommitted
	cycleFailed
)

type pendingCycle struct {
	sequence  int64
	events    EventMessages
	dependsOn []int64
	state     cycleState
	horizon   int64
}

// pendingEvents is the per-aggregate tail of events produced by invoked cycles.
//
// Prefetch reads the store ahead of invocation, so an aggregate loaded for sequence T misses the
// events of an earlier sequence S on the same aggregate that were not appended yet when T was read.
// The invoker replays the tail onto the preloaded aggregate before the handler runs.
//
// A cycle stays in the tail after publication resolved it, until publication has passed its horizon:
// the highest sequence claimed when it was resolved. Any sequence claimed later reads the outcome
// from the store.
//
// A cycle whose events could not be stored poisons the cycles that replayed them. Those are faulted
// at publication and skipped by later replays.
type pendingEvents struct {
	mu     sync.Mutex
	cycles map[string][]*pendingCycle
}

func newPendingEvents() *pendingEvents {
	return &pendingEvents{cycles: make(map[string][]*pendingCycle)}
}

// record remembers a copy of the events the invoked cycle wants to store,
// together with the in-flight cycles it replayed.
func (p *pendingEvents) record(aggregateIdentifier string, sequence int64, events EventMessages, dependsOn []int64) {
	if len(events) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycles[aggregateIdentifier] = append(p.cycles[aggregateIdentifier], &pendingCycle{
		sequence:  sequence,
		events:    slices.Clone(events),
		dependsOn: slices.Clone(dependsOn),
	})
}

// tail returns the events of the aggregate above lastSequenceNumber that are stored or still expected
// to be, plus the sequences of the in-flight cycles they come from.
// Failed cycles and the cycles built on them are skipped.
func (p *pendingEvents) tail(aggregateIdentifier string, lastSequenceNumber uint) (EventMessages, []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var missing EventMessages
	var dependsOn []int64

	poisoned := make(map[int64]bool)

	for _, cycle := range p.cycles[aggregateIdentifier] {
		if cycle.state == cycleFailed || anyOf(cycle.dependsOn, poisoned) {
			poisoned[cycle.sequence] = true
			continue
		}

		replayed := false

		for _, event := range cycle.events {
			if event.SequenceNumber > lastSequenceNumber {
				missing = append(missing, event)
				replayed = true
			}
		}

		if replayed && cycle.state == cycleInFlight {
			dependsOn = append(dependsOn, cycle.sequence)
		}
	}

	return missing, dependsOn
}

// poisoned reports whether one of the given cycles of the aggregate failed to store its events.
func (p *pendingEvents) poisoned(aggregateIdentifier string, dependsOn []int64) bool {
	if len(dependsOn) == 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cycle := range p.cycles[aggregateIdentifier] {
		if cycle.state == cycleFailed && slices.Contains(dependsOn, cycle.sequence) {
			return true
		}
	}

	return false
}

// resolve marks the cycle as stored or failed. Cycles that produced nothing to store are not tracked.
func (p *pendingEvents) resolve(aggregateIdentifier string, sequence int64, stored bool, horizon int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cycle := range p.cycles[aggregateIdentifier] {
		if cycle.sequence != sequence {
			continue
		}

		cycle.state = cycleFailed
		if stored {
			cycle.state = cycleCommitted
		}

		cycle.horizon = horizon

		return
	}
}

// prune drops the resolved cycles whose horizon publication has reached.
func (p *pendingEvents) prune(published int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for aggregateIdentifier, cycles := range p.cycles {
		cycles = slices.DeleteFunc(cycles, func(cycle *pendingCycle) bool {
			return cycle.state != cycleInFlight && cycle.horizon <= published
		})

		if len(cycles) == 0 {
			delete(p.cycles, aggregateIdentifier)
			continue
		}

		p.cycles[aggregateIdentifier] = cycles
	}
}

func anyOf(sequences []int64, set map[int64]bool) bool {
	for _, sequence := range sequences {
		if set[sequence] {
			return true
		}
	}

	return false
}
