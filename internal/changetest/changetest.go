// Package changetest provides a small concrete change family for exercising
// the commit graph, branches, and enrichment: a change is an ordered log of
// integer intentions. Positive intentions add themselves to the state,
// negative intentions retract their positive counterpart. Intentions
// commute under rebase, which keeps the algebra exact while still making
// divergence and convergence observable.
package changetest

import (
	"encoding/json"
	"slices"

	"github.com/arborlab/arbor/internal/rebase"
)

// Change is an intention log, optionally carrying the revision tags of the
// commits it was composed from.
type Change struct {
	Intentions []int
	Revs       []rebase.RevisionTag
}

// New returns a change carrying a single intention.
func New(intention int) Change {
	return Change{Intentions: []int{intention}}
}

// Apply folds change into state: positive intentions append, negative
// intentions remove the last occurrence of their counterpart.
func Apply(state []int, change Change) []int {
	out := slices.Clone(state)
	for _, intent := range change.Intentions {
		if intent >= 0 {
			out = append(out, intent)
			continue
		}
		for i := len(out) - 1; i >= 0; i-- {
			if out[i] == -intent {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}
	return out
}

// Payload serializes a change for content-addressed tag minting.
func Payload(c Change) []byte {
	data, _ := json.Marshal(c)
	return data
}

// Rebaser is the family's stateless algebra. Intentions commute, so Rebase
// is the identity on content; Compose concatenates; Invert negates in
// reverse order.
type Rebaser struct{}

var _ rebase.ChangeRebaser[Change] = Rebaser{}
var _ rebase.RevisionReplacer[Change] = Rebaser{}

// Compose concatenates the intention logs in order. Concatenation is
// associative, satisfying the compose contract.
func (Rebaser) Compose(changes []rebase.TaggedChange[Change]) (Change, error) {
	var out Change
	for _, tc := range changes {
		out.Intentions = append(out.Intentions, tc.Change.Intentions...)
		if len(tc.Change.Revs) > 0 {
			out.Revs = append(out.Revs, tc.Change.Revs...)
		} else if tc.Revision != "" {
			out.Revs = append(out.Revs, tc.Revision)
		}
	}
	return out, nil
}

// Invert negates every intention, in reverse order, so that change followed
// by its invert is an identity on state.
func (Rebaser) Invert(change rebase.TaggedChange[Change], _ bool) (Change, error) {
	intents := change.Change.Intentions
	out := Change{Intentions: make([]int, 0, len(intents))}
	for i := len(intents) - 1; i >= 0; i-- {
		out.Intentions = append(out.Intentions, -intents[i])
	}
	return out, nil
}

// Rebase returns change unchanged: intentions apply independently of the
// state they land in.
func (Rebaser) Rebase(change Change, _ rebase.TaggedChange[Change]) (Change, error) {
	return change, nil
}

// Revisions enumerates the revision tags embedded in change.
func (Rebaser) Revisions(change Change) []rebase.RevisionTag {
	return slices.Clone(change.Revs)
}

// ChangeRevision relabels every embedded tag in old to updated.
func (Rebaser) ChangeRevision(change Change, old []rebase.RevisionTag, updated rebase.RevisionTag) Change {
	out := Change{Intentions: slices.Clone(change.Intentions)}
	stale := make(map[rebase.RevisionTag]struct{}, len(old))
	for _, r := range old {
		stale[r] = struct{}{}
	}
	replaced := false
	for _, r := range change.Revs {
		if _, ok := stale[r]; ok {
			if !replaced {
				out.Revs = append(out.Revs, updated)
				replaced = true
			}
			continue
		}
		out.Revs = append(out.Revs, r)
	}
	if !replaced {
		out.Revs = append(out.Revs, updated)
	}
	return out
}

// Anchors is a minimal anchor set: a count of changes rebased past it, so
// tests can observe RebaseAnchors being driven.
type Anchors struct {
	RebasedOver []Change
}

// Rebase records the change the anchors were carried across.
func (a *Anchors) Rebase(over Change) {
	a.RebasedOver = append(a.RebasedOver, over)
}

// Family bundles the algebra with an editor and an empty codec registry.
type Family struct{}

var _ rebase.ChangeFamily[Change] = Family{}

// Rebaser returns the family's algebra.
func (Family) Rebaser() rebase.ChangeRebaser[Change] {
	return Rebaser{}
}

// Editor marks intentions onto the branch that built it.
type Editor struct {
	apply func(Change)
}

// Enter applies a prebuilt change.
func (e *Editor) Enter(change Change) {
	e.apply(change)
}

// Mark applies a single-intention change.
func (e *Editor) Mark(intention int) {
	e.apply(New(intention))
}

// BuildEditor returns an editor feeding apply.
func (Family) BuildEditor(apply func(Change)) (rebase.Editor[Change], error) {
	return &Editor{apply: apply}, nil
}

// Codecs returns the family's codec registry; this family has none.
func (Family) Codecs() any {
	return nil
}
