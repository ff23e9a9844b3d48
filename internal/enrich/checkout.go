// Package enrich attaches the data a commit's change needs before its first
// submission or a post-reconnect resubmission, e.g. recovered repair data
// referenced by inverts.
package enrich

import "github.com/arborlab/arbor/internal/rebase"

// Checkout is a mutable replica of tree state used to compute enrichments.
// A checkout is exclusively owned by one CommitEnricher and must be
// disposed before being replaced.
type Checkout[T any] interface {
	// UpdateChangeEnrichments returns change with enrichments recomputed
	// against the checkout's current state. The checkout itself does not
	// advance.
	UpdateChangeEnrichments(change T, revision rebase.RevisionTag) (T, error)
	// ApplyTipChange advances the checkout's state by change.
	ApplyTipChange(change T, revision rebase.RevisionTag) error
	// Dispose releases the checkout. Double-dispose is a fatal error.
	Dispose()
}

// CheckoutFactory creates a checkout replicating the last common sequenced
// state: the state every peer agrees on, with no local pending commits
// applied. The enricher replays pending commits onto it as needed.
type CheckoutFactory[T any] func() Checkout[T]
