package branch

import (
	"errors"
	"fmt"

	"github.com/arborlab/arbor/internal/rebase"
)

// ErrNoTransaction is returned when committing or aborting with no
// transaction open.
var ErrNoTransaction = errors.New("branch: no transaction in progress")

// StartTransaction snapshots the current head and pushes a marker.
// Transactions nest to arbitrary depth; each level squashes or discards
// only the commits made within its own scope.
func (b *Branch[T]) StartTransaction() {
	b.transactions = append(b.transactions, txMarker[T]{head: b.head})
}

// IsTransacting reports whether any transaction marker is on the stack.
func (b *Branch[T]) IsTransacting() bool {
	return len(b.transactions) > 0
}

// CommitTransaction pops the innermost marker and replaces every commit
// made since it with one squashed commit composing their changes under a
// freshly minted revision. No change event fires: the squashed edits each
// fired when applied. Committing an empty transaction just pops the marker.
func (b *Branch[T]) CommitTransaction() error {
	marker, commits, err := b.popTransaction()
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}

	tagged := make([]rebase.TaggedChange[T], 0, len(commits))
	oldRevs := make([]rebase.RevisionTag, 0, len(commits))
	for _, c := range commits {
		tagged = append(tagged, rebase.TagCommit(c))
		oldRevs = append(oldRevs, c.Revision)
	}
	squashed, err := b.rebaser.Compose(tagged)
	if err != nil {
		return fmt.Errorf("compose transaction: %w", err)
	}

	var payload []byte
	if b.payload != nil {
		payload = b.payload(squashed)
	}
	revision := b.tagger.Mint(payload)
	if replacer, ok := b.rebaser.(rebase.RevisionReplacer[T]); ok {
		squashed = replacer.ChangeRevision(squashed, oldRevs, revision)
	}

	b.head = &rebase.GraphCommit[T]{Revision: revision, Change: squashed, Parent: marker.head}
	return nil
}

// AbortTransaction pops the innermost marker, discards every commit made
// since it, and restores the snapshotted head, firing exactly one change
// event carrying the rollback change. Aborting an empty transaction fires
// no event.
func (b *Branch[T]) AbortTransaction() error {
	marker, commits, err := b.popTransaction()
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}

	inverses := make([]rebase.TaggedChange[T], 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		inv, err := b.rebaser.Invert(rebase.TagCommit(commits[i]), true)
		if err != nil {
			return fmt.Errorf("invert %s: %w", commits[i].Revision, err)
		}
		inverses = append(inverses, rebase.Tagged(commits[i].Revision, inv))
	}
	rollback, err := b.rebaser.Compose(inverses)
	if err != nil {
		return fmt.Errorf("compose rollback: %w", err)
	}

	b.head = marker.head
	b.emit(ChangeEvent[T]{Kind: EventAbort, Change: &rollback})
	return nil
}

// popTransaction removes the innermost marker and collects the commits made
// since it, oldest first.
func (b *Branch[T]) popTransaction() (txMarker[T], []*rebase.GraphCommit[T], error) {
	if len(b.transactions) == 0 {
		return txMarker[T]{}, nil, ErrNoTransaction
	}
	marker := b.transactions[len(b.transactions)-1]
	b.transactions = b.transactions[:len(b.transactions)-1]

	var commits []*rebase.GraphCommit[T]
	found := rebase.FindAncestor(b.head, func(c *rebase.GraphCommit[T]) bool {
		return c == marker.head
	}, &commits)
	if found == nil {
		// The snapshot must be an ancestor of the head: Apply only extends,
		// and rebase/merge are rejected while transacting.
		panic("branch: transaction snapshot not reachable from head")
	}
	return marker, commits, nil
}
