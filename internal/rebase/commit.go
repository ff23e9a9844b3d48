package rebase

// GraphCommit is one node in the shared commit graph: a revision tag, the
// change it introduced, and a parent pointer. Commits are immutable once
// created and shared by reference across any number of branches; a branch
// may only extend or discard its own head pointer, never mutate a commit.
// Multiple children may extend one parent, so the graph is a tree rooted at
// the origin commit, not a single list.
type GraphCommit[T any] struct {
	Revision RevisionTag
	Change   T
	Parent   *GraphCommit[T]
}

// NewOriginCommit returns a root commit carrying NullRevision and the zero
// change. Every branch family shares one of these as its chain terminator.
func NewOriginCommit[T any]() *GraphCommit[T] {
	return &GraphCommit[T]{Revision: NullRevision}
}

// FindAncestor walks the parent chain from commit (inclusive) until
// predicate holds, returning the matching commit or nil.
//
// If path is non-nil, it is filled with the commits between the ancestor
// (exclusive) and commit (inclusive), ordered nearest-ancestor first, so
// the slice can be replayed onto the ancestor to rebuild the chain. On a
// nil result, *path is reset to empty.
func FindAncestor[T any](commit *GraphCommit[T], predicate func(*GraphCommit[T]) bool, path *[]*GraphCommit[T]) *GraphCommit[T] {
	if path != nil {
		*path = (*path)[:0]
	}
	for c := commit; c != nil; c = c.Parent {
		if predicate(c) {
			if path != nil {
				reverse(*path)
			}
			return c
		}
		if path != nil {
			*path = append(*path, c)
		}
	}
	if path != nil {
		*path = (*path)[:0]
	}
	return nil
}

// FindCommonAncestor returns the nearest commit reachable from both a and b,
// or nil when the chains are disjoint. Identical inputs return that commit
// with both paths empty.
//
// pathA and pathB, when non-nil, receive each side's commits from the
// ancestor (exclusive) up to the input (inclusive), nearest-ancestor first.
// The search indexes one chain by revision then walks the other, so it runs
// in O(depth) time and space.
func FindCommonAncestor[T any](a, b *GraphCommit[T], pathA, pathB *[]*GraphCommit[T]) *GraphCommit[T] {
	if pathA != nil {
		*pathA = (*pathA)[:0]
	}
	if pathB != nil {
		*pathB = (*pathB)[:0]
	}
	if a == nil || b == nil {
		return nil
	}
	if a == b {
		return a
	}

	visited := make(map[RevisionTag]*GraphCommit[T])
	for c := a; c != nil; c = c.Parent {
		visited[c.Revision] = c
	}

	ancestor := FindAncestor(b, func(c *GraphCommit[T]) bool {
		_, ok := visited[c.Revision]
		return ok
	}, pathB)
	if ancestor == nil {
		return nil
	}

	if pathA != nil {
		found := FindAncestor(a, func(c *GraphCommit[T]) bool {
			return c.Revision == ancestor.Revision
		}, pathA)
		if found == nil {
			// a indexed ancestor's revision above, so the walk must hit it.
			panic("rebase: common ancestor not reachable from first input")
		}
	}
	return ancestor
}

func reverse[E any](s []E) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
