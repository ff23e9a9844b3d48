package rebase

import (
	"errors"
	"fmt"
)

// RebaseOutcome classifies what RebaseBranch did.
type RebaseOutcome int

const (
	// OutcomeNoOp: the target head was already reachable from the source
	// head, so nothing moved.
	OutcomeNoOp RebaseOutcome = iota
	// OutcomeFastForward: the source had no divergent commits left to
	// replay, so the head simply advanced to the target head.
	OutcomeFastForward
	// OutcomeRebased: divergent source commits were replayed onto the
	// target head as new commit objects.
	OutcomeRebased
)

// BranchRebaseResult reports the effect of rebasing one commit chain onto
// another.
type BranchRebaseResult[T any] struct {
	Outcome RebaseOutcome
	// NewHead is the head after the rebase. Equal to the input head on
	// OutcomeNoOp.
	NewHead *GraphCommit[T]
	// SourceCommits are the newly created replacement commits, in order.
	// They preserve the original commits' revision tags. Empty unless
	// Outcome is OutcomeRebased.
	SourceCommits []*GraphCommit[T]
	// TargetCommits are the target's divergent commits the source adopted,
	// in order. Empty on OutcomeNoOp.
	TargetCommits []*GraphCommit[T]
	// NetChange is the composition of rolling back the old source commits,
	// applying the target commits, and replaying the rebased commits: the
	// single change that maps the old head state to the new head state.
	// Nil on OutcomeNoOp.
	NetChange *T
}

// ErrDisjointGraphs reports two commit chains with no common ancestor.
// Chains minted by this core always share the origin commit, so hitting
// this means the caller mixed graphs from unrelated sessions.
var ErrDisjointGraphs = errors.New("rebase: commit chains share no ancestor")

// RebaseBranch replays the commits that are reachable from head but not
// from onto, in their original order, onto the target head.
//
// Commit i is rebased over the inverses of the not-yet-replayed source
// commits before it (most recent first), then the target's divergent
// commits, then the already-replayed commits, so each replayed change is
// computed in the state it will actually apply in. Source commits whose
// revision already appears among the target's divergent commits were
// integrated on the other side and are skipped rather than replayed; their
// inverses still participate so later commits see a consistent base.
func RebaseBranch[T any](rebaser ChangeRebaser[T], head, onto *GraphCommit[T]) (BranchRebaseResult[T], error) {
	var sourcePath, targetPath []*GraphCommit[T]
	ancestor := FindCommonAncestor(head, onto, &sourcePath, &targetPath)
	if ancestor == nil {
		return BranchRebaseResult[T]{}, ErrDisjointGraphs
	}
	if len(targetPath) == 0 {
		return BranchRebaseResult[T]{Outcome: OutcomeNoOp, NewHead: head}, nil
	}

	targetRevs := make(map[RevisionTag]struct{}, len(targetPath))
	targets := make([]TaggedChange[T], 0, len(targetPath))
	for _, c := range targetPath {
		targetRevs[c.Revision] = struct{}{}
		targets = append(targets, TagCommit(c))
	}

	var (
		inverses  []TaggedChange[T] // rollbacks of processed source commits, most recent first
		replayed  []TaggedChange[T]
		newHead   = onto
		newCommit []*GraphCommit[T]
	)
	for _, c := range sourcePath {
		if _, integrated := targetRevs[c.Revision]; !integrated {
			change := c.Change
			var err error
			for _, over := range inverses {
				if change, err = rebaser.Rebase(change, over); err != nil {
					return BranchRebaseResult[T]{}, fmt.Errorf("rebase %s: %w", c.Revision, err)
				}
			}
			for _, over := range targets {
				if change, err = rebaser.Rebase(change, over); err != nil {
					return BranchRebaseResult[T]{}, fmt.Errorf("rebase %s: %w", c.Revision, err)
				}
			}
			for _, over := range replayed {
				if change, err = rebaser.Rebase(change, over); err != nil {
					return BranchRebaseResult[T]{}, fmt.Errorf("rebase %s: %w", c.Revision, err)
				}
			}
			newHead = &GraphCommit[T]{Revision: c.Revision, Change: change, Parent: newHead}
			newCommit = append(newCommit, newHead)
			replayed = append(replayed, TagCommit(newHead))
		}

		inv, err := rebaser.Invert(TagCommit(c), true)
		if err != nil {
			return BranchRebaseResult[T]{}, fmt.Errorf("invert %s: %w", c.Revision, err)
		}
		inverses = append([]TaggedChange[T]{Tagged(c.Revision, inv)}, inverses...)
	}

	netParts := make([]TaggedChange[T], 0, len(inverses)+len(targets)+len(replayed))
	netParts = append(netParts, inverses...)
	netParts = append(netParts, targets...)
	netParts = append(netParts, replayed...)
	net, err := rebaser.Compose(netParts)
	if err != nil {
		return BranchRebaseResult[T]{}, fmt.Errorf("compose net change: %w", err)
	}

	outcome := OutcomeRebased
	if len(newCommit) == 0 {
		outcome = OutcomeFastForward
		newHead = onto
	}
	return BranchRebaseResult[T]{
		Outcome:       outcome,
		NewHead:       newHead,
		SourceCommits: newCommit,
		TargetCommits: targetPath,
		NetChange:     &net,
	}, nil
}
