// Package branch implements a mutable, git-like cursor over the shared
// commit graph: edit application, fork, rebase, merge, and nested
// transactions, with change notification through an explicit observer list.
package branch

import (
	"errors"
	"fmt"

	"github.com/arborlab/arbor/internal/rebase"
)

// EventKind names the mutation a change event reports.
type EventKind int

const (
	// EventAppend: one commit was appended by edit application.
	EventAppend EventKind = iota
	// EventRebase: the head was replaced by a chain rebased onto another
	// branch.
	EventRebase
	// EventMerge: foreign commits were spliced onto the head.
	EventMerge
	// EventAbort: an aborted transaction rolled the head back.
	EventAbort
)

func (k EventKind) String() string {
	switch k {
	case EventAppend:
		return "append"
	case EventRebase:
		return "rebase"
	case EventMerge:
		return "merge"
	case EventAbort:
		return "abort"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ChangeEvent describes one head mutation. Commits lists the commits the
// mutation added (newest last); it is empty for EventAbort. Change, when
// non-nil, is a single change mapping the previous head state to the new
// one, suitable for updating derived state.
type ChangeEvent[T any] struct {
	Kind    EventKind
	Commits []*rebase.GraphCommit[T]
	Change  *T
}

// ErrTransacting is returned by operations that must not run while a
// transaction is open.
var ErrTransacting = errors.New("branch: operation not allowed inside a transaction")

type observer[T any] struct {
	id int
	fn func(ChangeEvent[T])
}

type txMarker[T any] struct {
	head *rebase.GraphCommit[T]
}

// Branch is a stateful cursor over the commit graph. It owns its head
// pointer, its transaction stack, its observers, and (optionally) an anchor
// set; the commits themselves are immutable and shared.
//
// Branch is not safe for concurrent use: the model is single-threaded and
// cooperative, with every operation running synchronously to completion.
type Branch[T any] struct {
	head    *rebase.GraphCommit[T]
	rebaser rebase.ChangeRebaser[T]
	tagger  rebase.Tagger
	payload func(T) []byte
	anchors rebase.AnchorSet[T]

	transactions []txMarker[T]
	observers    []observer[T]
	nextObserver int
}

// Option configures a Branch at creation.
type Option[T any] func(*Branch[T])

// WithAnchors attaches an anchor set the branch keeps valid across rebases.
// The branch takes exclusive ownership.
func WithAnchors[T any](anchors rebase.AnchorSet[T]) Option[T] {
	return func(b *Branch[T]) { b.anchors = anchors }
}

// WithPayload supplies the serialization used to feed content-addressed
// taggers. Branches minting session-scoped tags do not need one.
func WithPayload[T any](payload func(T) []byte) Option[T] {
	return func(b *Branch[T]) { b.payload = payload }
}

// New creates a root branch at the given head.
func New[T any](head *rebase.GraphCommit[T], rebaser rebase.ChangeRebaser[T], tagger rebase.Tagger, opts ...Option[T]) *Branch[T] {
	b := &Branch[T]{head: head, rebaser: rebaser, tagger: tagger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetHead returns the current head commit.
func (b *Branch[T]) GetHead() *rebase.GraphCommit[T] {
	return b.head
}

// OnChange registers an observer and returns its unsubscribe func.
// Observers run synchronously, in registration order, after the head has
// moved. No event fires for no-op operations.
func (b *Branch[T]) OnChange(fn func(ChangeEvent[T])) func() {
	id := b.nextObserver
	b.nextObserver++
	b.observers = append(b.observers, observer[T]{id: id, fn: fn})
	return func() {
		for i, o := range b.observers {
			if o.id == id {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

func (b *Branch[T]) emit(ev ChangeEvent[T]) {
	// Snapshot so an observer unsubscribing mid-delivery stays safe.
	obs := make([]observer[T], len(b.observers))
	copy(obs, b.observers)
	for _, o := range obs {
		o.fn(ev)
	}
}

// Apply appends one commit carrying change, with a freshly minted revision
// and the previous head as parent, and fires one change event. Edits made
// inside an open transaction still fire individually; the squash happens at
// commit time.
func (b *Branch[T]) Apply(change T) *rebase.GraphCommit[T] {
	var payload []byte
	if b.payload != nil {
		payload = b.payload(change)
	}
	commit := &rebase.GraphCommit[T]{
		Revision: b.tagger.Mint(payload),
		Change:   change,
		Parent:   b.head,
	}
	b.head = commit
	b.emit(ChangeEvent[T]{Kind: EventAppend, Commits: []*rebase.GraphCommit[T]{commit}, Change: &commit.Change})
	return commit
}

// Editor builds the family's editor wired to this branch: every change the
// editor produces is applied as a commit. Editor construction failures
// always propagate; they are never mitigated.
func (b *Branch[T]) Editor(family rebase.ChangeFamily[T]) (rebase.Editor[T], error) {
	return family.BuildEditor(func(change T) { b.Apply(change) })
}

// Fork returns a new branch whose initial head equals the current head.
// The child is fully isolated from the parent until an explicit RebaseOnto
// or Merge; observers, anchors, and open transactions are not inherited.
func (b *Branch[T]) Fork() *Branch[T] {
	return &Branch[T]{
		head:    b.head,
		rebaser: b.rebaser,
		tagger:  b.tagger,
		payload: b.payload,
	}
}

// RebaseOnto replays this branch's divergent commits onto target's head.
// If the target head is already reachable from this branch the call is a
// no-op: no new commits, no event. Rebased commits preserve their original
// revision tags; the branch's anchors are updated through the net change.
func (b *Branch[T]) RebaseOnto(target *Branch[T]) error {
	if b.IsTransacting() {
		return fmt.Errorf("rebase onto: %w", ErrTransacting)
	}
	result, err := rebase.RebaseBranch(b.rebaser, b.head, target.head)
	if err != nil {
		return err
	}
	if result.Outcome == rebase.OutcomeNoOp {
		return nil
	}
	b.head = result.NewHead
	if b.anchors != nil {
		b.anchors.Rebase(*result.NetChange)
	}
	commits := append(append([]*rebase.GraphCommit[T]{}, result.TargetCommits...), result.SourceCommits...)
	b.emit(ChangeEvent[T]{Kind: EventRebase, Commits: commits, Change: result.NetChange})
	return nil
}

// Merge splices other's commits not already present in this branch's
// ancestry onto the head, preserving other's relative order and
// deduplicating by revision tag. No rebasing happens here: callers whose
// bases diverge must rebase first. A fully contained merge is a no-op with
// no event.
func (b *Branch[T]) Merge(other *Branch[T]) error {
	if b.IsTransacting() {
		return fmt.Errorf("merge: %w", ErrTransacting)
	}
	var selfPath, otherPath []*rebase.GraphCommit[T]
	ancestor := rebase.FindCommonAncestor(b.head, other.head, &selfPath, &otherPath)
	if ancestor == nil {
		return rebase.ErrDisjointGraphs
	}

	present := make(map[rebase.RevisionTag]struct{}, len(selfPath))
	for _, c := range selfPath {
		present[c.Revision] = struct{}{}
	}

	newHead := b.head
	var spliced []*rebase.GraphCommit[T]
	for _, c := range otherPath {
		if _, ok := present[c.Revision]; ok {
			continue
		}
		newHead = &rebase.GraphCommit[T]{Revision: c.Revision, Change: c.Change, Parent: newHead}
		spliced = append(spliced, newHead)
	}
	if len(spliced) == 0 {
		return nil
	}

	tagged := make([]rebase.TaggedChange[T], 0, len(spliced))
	for _, c := range spliced {
		tagged = append(tagged, rebase.TagCommit(c))
	}
	net, err := b.rebaser.Compose(tagged)
	if err != nil {
		return fmt.Errorf("compose merged changes: %w", err)
	}
	b.head = newHead
	b.emit(ChangeEvent[T]{Kind: EventMerge, Commits: spliced, Change: &net})
	return nil
}
