package enrich

import (
	"fmt"

	"github.com/arborlab/arbor/internal/rebase"
)

type inFlight[T any] struct {
	commit *rebase.GraphCommit[T]
	// possiblyRebased is set when a foreign commit sequences while this one
	// is in flight: the commit will be rebased before resubmission, so its
	// cached enrichment may be stale.
	possiblyRebased bool
	// appliedToCheckout tracks whether this commit's change (in its current
	// form) is applied to the live checkout, so rollback knows exactly what
	// to invert.
	appliedToCheckout bool
}

// CommitEnricher computes and caches the enrichment for local commits at
// submission time, and recomputes it for commits that were rebased while a
// peer was disconnected.
//
// The enricher is Idle until StartResubmitPhase hands it an explicit queue,
// and returns to Idle once the queue is exhausted. It lazily owns at most
// one Checkout at a time.
type CommitEnricher[T any] struct {
	rebaser rebase.ChangeRebaser[T]
	factory CheckoutFactory[T]

	checkout Checkout[T]
	cache    map[rebase.RevisionTag]T
	inFlight []inFlight[T]

	resubmitQueue []*rebase.GraphCommit[T]
	// phasePrefix are the commits of the current phase already served from
	// cache before the rollback checkout was prepared; their changes get
	// replayed forward when (if) preparation happens.
	phasePrefix []*rebase.GraphCommit[T]
	prepared    bool

	sequencedCount int
	disposed       bool
}

// NewCommitEnricher creates an Idle enricher. The rebaser supplies the
// inverts used to roll a checkout back; the factory is invoked lazily, only
// when enrichment actually needs state.
func NewCommitEnricher[T any](rebaser rebase.ChangeRebaser[T], factory CheckoutFactory[T]) *CommitEnricher[T] {
	return &CommitEnricher[T]{
		rebaser: rebaser,
		factory: factory,
		cache:   make(map[rebase.RevisionTag]T),
	}
}

// IsResubmitting reports whether a resubmit phase is in progress.
func (e *CommitEnricher[T]) IsResubmitting() bool {
	return len(e.resubmitQueue) > 0
}

// PendingCommitCount returns the number of submitted commits not yet
// sequenced.
func (e *CommitEnricher[T]) PendingCommitCount() int {
	return len(e.inFlight)
}

// SequencedCommitCount returns the number of sequenced commits observed.
func (e *CommitEnricher[T]) SequencedCommitCount() int {
	return e.sequencedCount
}

// EnrichCommit returns a commit equal to the input but carrying the
// enriched change. First submissions (isResubmit false) enrich against the
// tip and cache the result by revision. Resubmissions consume exactly one
// commit from the queue set up by StartResubmitPhase: commits sequenced
// unmodified are served from the cache, rebased commits are re-enriched
// against a checkout rolled back to the last common sequenced state.
func (e *CommitEnricher[T]) EnrichCommit(commit *rebase.GraphCommit[T], isResubmit bool) (*rebase.GraphCommit[T], error) {
	e.assertLive()
	if isResubmit {
		return e.enrichResubmit(commit)
	}
	if e.IsResubmitting() {
		panic("enrich: new commit submitted during a resubmit phase")
	}

	if err := e.ensureCheckout(); err != nil {
		return nil, err
	}
	enriched, err := e.checkout.UpdateChangeEnrichments(commit.Change, commit.Revision)
	if err != nil {
		return nil, fmt.Errorf("enrich %s: %w", commit.Revision, err)
	}
	if err := e.checkout.ApplyTipChange(commit.Change, commit.Revision); err != nil {
		return nil, fmt.Errorf("advance tip over %s: %w", commit.Revision, err)
	}
	e.cache[commit.Revision] = enriched
	e.inFlight = append(e.inFlight, inFlight[T]{commit: commit, appliedToCheckout: true})
	return &rebase.GraphCommit[T]{Revision: commit.Revision, Change: enriched, Parent: commit.Parent}, nil
}

// StartResubmitPhase enters the Resubmitting state with an explicit ordered
// queue. The queue must match the in-flight commits one to one by revision.
// An empty phase is a no-op.
func (e *CommitEnricher[T]) StartResubmitPhase(commits []*rebase.GraphCommit[T]) {
	e.assertLive()
	if e.IsResubmitting() {
		panic("enrich: resubmit phase already in progress")
	}
	if len(commits) == 0 {
		return
	}
	if len(commits) != len(e.inFlight) {
		panic("enrich: resubmit set does not match in-flight commits")
	}
	for i, c := range commits {
		if c.Revision != e.inFlight[i].commit.Revision {
			panic("enrich: resubmit set does not match in-flight commits")
		}
	}
	e.resubmitQueue = commits
	e.phasePrefix = e.phasePrefix[:0]
	e.prepared = false
}

// OnSequencedCommitApplied records one sequenced commit. A local commit
// acknowledges the oldest in-flight submission; a foreign commit means
// every in-flight commit will be rebased before any resubmission.
func (e *CommitEnricher[T]) OnSequencedCommitApplied(wasLocal bool) {
	e.assertLive()
	e.sequencedCount++
	if wasLocal {
		if len(e.inFlight) == 0 {
			panic("enrich: sequenced local commit with nothing in flight")
		}
		acked := e.inFlight[0]
		e.inFlight = e.inFlight[1:]
		delete(e.cache, acked.commit.Revision)
		return
	}
	for i := range e.inFlight {
		e.inFlight[i].possiblyRebased = true
		e.inFlight[i].appliedToCheckout = false
	}
	// The checkout's base predates the foreign change, so any enrichment
	// computed against it would omit exactly the changes the in-flight
	// commits are being rebased over. Release it; the next enrichment
	// recreates one through the factory, which replicates the sequenced
	// state including this change.
	if e.checkout != nil {
		e.checkout.Dispose()
		e.checkout = nil
	}
}

// Dispose releases the enricher's checkout. Double-dispose is fatal.
func (e *CommitEnricher[T]) Dispose() {
	if e.disposed {
		panic("enrich: double dispose")
	}
	e.disposed = true
	if e.checkout != nil {
		e.checkout.Dispose()
		e.checkout = nil
	}
}

func (e *CommitEnricher[T]) assertLive() {
	if e.disposed {
		panic("enrich: use after dispose")
	}
}

// ensureCheckout lazily creates the checkout and replays the current
// in-flight commits so its state matches the tip.
func (e *CommitEnricher[T]) ensureCheckout() error {
	if e.checkout != nil {
		return nil
	}
	e.checkout = e.factory()
	for i := range e.inFlight {
		c := e.inFlight[i].commit
		if err := e.checkout.ApplyTipChange(c.Change, c.Revision); err != nil {
			return fmt.Errorf("replay in-flight %s: %w", c.Revision, err)
		}
		e.inFlight[i].appliedToCheckout = true
	}
	return nil
}

func (e *CommitEnricher[T]) enrichResubmit(commit *rebase.GraphCommit[T]) (*rebase.GraphCommit[T], error) {
	if !e.IsResubmitting() {
		panic("enrich: resubmit enrichment outside a resubmit phase")
	}
	expected := e.resubmitQueue[0]
	if expected.Revision != commit.Revision {
		panic("enrich: resubmitted commit out of order")
	}
	e.resubmitQueue = e.resubmitQueue[1:]

	idx := e.inFlightIndex(commit.Revision)
	entry := &e.inFlight[idx]

	var result *rebase.GraphCommit[T]
	if !entry.possiblyRebased {
		// Sequenced unmodified: zero-cost cache hit.
		enriched, ok := e.cache[commit.Revision]
		if !ok {
			panic("enrich: no cached enrichment for unmodified commit")
		}
		if !e.prepared {
			e.phasePrefix = append(e.phasePrefix, commit)
		} else if err := e.applyResubmit(commit, idx); err != nil {
			return nil, err
		}
		result = &rebase.GraphCommit[T]{Revision: commit.Revision, Change: enriched, Parent: commit.Parent}
	} else {
		if err := e.prepareRollback(); err != nil {
			return nil, err
		}
		enriched, err := e.checkout.UpdateChangeEnrichments(commit.Change, commit.Revision)
		if err != nil {
			return nil, fmt.Errorf("re-enrich %s: %w", commit.Revision, err)
		}
		if err := e.applyResubmit(commit, idx); err != nil {
			return nil, err
		}
		e.cache[commit.Revision] = enriched
		entry.commit = commit
		entry.possiblyRebased = false
		result = &rebase.GraphCommit[T]{Revision: commit.Revision, Change: enriched, Parent: commit.Parent}
	}

	if len(e.resubmitQueue) == 0 {
		e.endResubmitPhase()
	}
	return result, nil
}

// prepareRollback pins the checkout at the last common sequenced state and
// replays the phase's already-served unchanged prefix. Invert failures here
// are fatal: they indicate the repair data is already inconsistent.
func (e *CommitEnricher[T]) prepareRollback() error {
	if e.prepared {
		return nil
	}
	if e.checkout == nil {
		// A fresh checkout is already pinned at the sequenced state.
		e.checkout = e.factory()
	} else {
		for i := len(e.inFlight) - 1; i >= 0; i-- {
			entry := &e.inFlight[i]
			if !entry.appliedToCheckout {
				continue
			}
			inv, err := e.rebaser.Invert(rebase.TagCommit(entry.commit), true)
			if err != nil {
				panic(fmt.Sprintf("enrich: rollback invert of %s failed: %v", entry.commit.Revision, err))
			}
			if err := e.checkout.ApplyTipChange(inv, entry.commit.Revision); err != nil {
				panic(fmt.Sprintf("enrich: rollback of %s failed: %v", entry.commit.Revision, err))
			}
			entry.appliedToCheckout = false
		}
	}
	for _, c := range e.phasePrefix {
		if err := e.applyResubmit(c, e.inFlightIndex(c.Revision)); err != nil {
			return err
		}
	}
	e.phasePrefix = e.phasePrefix[:0]
	e.prepared = true
	return nil
}

// applyResubmit advances the checkout over one resubmitted commit.
func (e *CommitEnricher[T]) applyResubmit(commit *rebase.GraphCommit[T], idx int) error {
	if err := e.checkout.ApplyTipChange(commit.Change, commit.Revision); err != nil {
		return fmt.Errorf("advance tip over %s: %w", commit.Revision, err)
	}
	e.inFlight[idx].appliedToCheckout = true
	return nil
}

func (e *CommitEnricher[T]) inFlightIndex(rev rebase.RevisionTag) int {
	for i := range e.inFlight {
		if e.inFlight[i].commit.Revision == rev {
			return i
		}
	}
	panic("enrich: resubmitted commit was never submitted")
}

// endResubmitPhase returns to Idle and releases the rollback checkout; the
// next first submission recreates one at the then-current sequenced state.
func (e *CommitEnricher[T]) endResubmitPhase() {
	e.resubmitQueue = nil
	e.phasePrefix = e.phasePrefix[:0]
	e.prepared = false
	if e.checkout != nil {
		e.checkout.Dispose()
		e.checkout = nil
		for i := range e.inFlight {
			e.inFlight[i].appliedToCheckout = false
		}
	}
}
