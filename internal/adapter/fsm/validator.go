// Package fsm validates folder job state changes with looplab/fsm.
package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/dmgateway/internal/domain"
)

var (
	_ domain.TransitionValidator = (*Validator)(nil)
	_ domain.FolderJobObserver   = (*Validator)(nil)
)

// Validator checks folder job events against domain.FolderJobTransitions.
// looplab/fsm keeps the current state inside the machine, so each call
// builds a short-lived one seeded with the job's recorded state.
type Validator struct {
	events []loopfsm.EventDesc

	// target is the state each event leads to. Every event has exactly one.
	target map[domain.FolderJobEvent]domain.FolderJobState
	// rank is the longest path from StateSendingToCustodian, so a report
	// that ranks at or below the recorded state is a repeat or a stale read.
	rank map[domain.FolderJobState]int
}

// New creates a Validator over domain.FolderJobTransitions.
func New() *Validator {
	return newValidator(domain.FolderJobTransitions)
}

func newValidator(transitions []domain.FolderJobTransition) *Validator {
	v := &Validator{
		target: make(map[domain.FolderJobEvent]domain.FolderJobState),
		rank:   map[domain.FolderJobState]int{domain.StateSendingToCustodian: 0},
	}

	// Group by event and destination, so job_completed from every polling
	// state becomes one EventDesc with several sources.
	type key struct {
		event domain.FolderJobEvent
		dst   domain.FolderJobState
	}
	grouped := make(map[key][]string)
	var order []key
	for _, t := range transitions {
		k := key{event: t.Event, dst: t.Dst}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
		v.target[t.Event] = t.Dst
	}
	for _, k := range order {
		v.events = append(v.events, loopfsm.EventDesc{Name: string(k.event), Src: grouped[k], Dst: string(k.dst)})
	}

	// The table is acyclic; relaxing once per transition settles every rank.
	for range transitions {
		for _, t := range transitions {
			r, ok := v.rank[t.Src]
			if ok && r+1 > v.rank[t.Dst] {
				v.rank[t.Dst] = r + 1
			}
		}
	}
	return v
}

// Apply returns the state event leads to from current, or a
// *domain.TransitionError when the event is not valid there.
func (v *Validator) Apply(ctx context.Context, current domain.FolderJobState, event domain.FolderJobEvent) (domain.FolderJobState, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{Event: event, Current: current}
		}
		return "", err
	}

	return domain.FolderJobState(machine.Current()), nil
}

// Observe maps reported onto an event and applies it to current. When the
// event would not move the job forward (the same state reported again, or
// an earlier one read from a lagging replica) current comes back unchanged.
// A report that skips ahead along no known transition is a
// *domain.TransitionError.
func (v *Validator) Observe(ctx context.Context, current domain.FolderJobState, reported []domain.ProvisioningJob) (domain.FolderJobState, error) {
	event := domain.ObserveJobs(reported)

	next, err := v.Apply(ctx, current, event)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		return next, err
	}

	if current.IsTerminal() || v.behind(event, current) {
		return current, nil
	}
	return "", err
}

// behind reports whether event leads to a state no further along than current.
func (v *Validator) behind(event domain.FolderJobEvent, current domain.FolderJobState) bool {
	dst, ok := v.target[event]
	if !ok {
		return false
	}
	return v.rank[dst] <= v.rank[current]
}
