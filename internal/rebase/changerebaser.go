package rebase

// TaggedChange pairs a change with the revision it was (or will be)
// committed under, so algebra implementations can attribute the cells they
// touch to a revision.
type TaggedChange[T any] struct {
	Revision RevisionTag
	Change   T
}

// Tagged is shorthand for constructing a TaggedChange.
func Tagged[T any](revision RevisionTag, change T) TaggedChange[T] {
	return TaggedChange[T]{Revision: revision, Change: change}
}

// TagCommit views a commit as a TaggedChange.
func TagCommit[T any](c *GraphCommit[T]) TaggedChange[T] {
	return TaggedChange[T]{Revision: c.Revision, Change: c.Change}
}

// AnchorSet holds external references into the edited state (cursors,
// bookmarks) that a branch owns exclusively and must keep valid as its head
// moves. The core only ever funnels changes through Rebase below; the
// concrete representation belongs to the change family.
type AnchorSet[T any] interface {
	// Rebase mutates every anchor in place so it remains valid after the
	// given change is applied.
	Rebase(over T)
}

// ChangeRebaser is the stateless algebra a change family supplies. All
// methods are pure: no lifecycle, no retained state, safe to share.
//
// Contracts:
//   - Compose is associative: any grouping of a change sequence composes to
//     the same result.
//   - Invert produces a change that, composed after the original,
//     approximates an identity. Some families cannot satisfy this exactly;
//     a last-writer-wins register, for instance, cannot restore the value
//     an overwrite discarded. That gap is an accepted property of such
//     families, not a defect in them or in this contract.
//   - Rebase adjusts change so it applies after over while preserving its
//     intent.
type ChangeRebaser[T any] interface {
	Compose(changes []TaggedChange[T]) (T, error)
	Invert(change TaggedChange[T], isRollback bool) (T, error)
	Rebase(change T, over TaggedChange[T]) (T, error)
}

// RevisionReplacer is an optional ChangeRebaser capability: families whose
// changes embed revision tags implement it so squashed commits can be
// relabelled under their new revision.
type RevisionReplacer[T any] interface {
	// Revisions enumerates the revision tags embedded in change.
	Revisions(change T) []RevisionTag
	// ChangeRevision returns change with every tag in old relabelled to
	// updated.
	ChangeRevision(change T, old []RevisionTag, updated RevisionTag) T
}

// Editor builds changes for one change family. Concrete editors expose
// family-specific mutators; the core only needs the escape hatch used by
// transactions and tests.
type Editor[T any] interface {
	// Enter hands every change the editor builds to the branch that owns it.
	Enter(change T)
}

// ChangeFamily bundles a change representation's algebra with its edit
// construction entry point and its codec registry. The codec registry is
// opaque to the core; serialization is a version-keyed external concern.
type ChangeFamily[T any] interface {
	Rebaser() ChangeRebaser[T]
	// BuildEditor constructs an editor that feeds built changes to apply.
	// Failures here always propagate to the caller: editor construction
	// runs synchronously in the local edit path and must surface
	// immediately, unlike the background reconciliation the rest of the
	// algebra runs in.
	BuildEditor(apply func(T)) (Editor[T], error)
	Codecs() any
}
