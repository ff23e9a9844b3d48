package rebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T, revisions ...RevisionTag) []*GraphCommit[string] {
	t.Helper()
	commits := []*GraphCommit[string]{NewOriginCommit[string]()}
	for _, rev := range revisions {
		commits = append(commits, &GraphCommit[string]{
			Revision: rev,
			Change:   string(rev),
			Parent:   commits[len(commits)-1],
		})
	}
	return commits
}

func isOrigin(c *GraphCommit[string]) bool {
	return c.Revision == NullRevision
}

func TestFindAncestor_PathOrder(t *testing.T) {
	commits := chain(t, "c1", "c2", "c3")
	head := commits[len(commits)-1]

	var path []*GraphCommit[string]
	found := FindAncestor(head, isOrigin, &path)
	require.NotNil(t, found)
	assert.Equal(t, NullRevision, found.Revision)

	// Path runs nearest-ancestor first, ancestor excluded, so replaying it
	// onto the ancestor rebuilds the chain.
	require.Len(t, path, 3)
	assert.Equal(t, RevisionTag("c1"), path[0].Revision)
	assert.Equal(t, RevisionTag("c2"), path[1].Revision)
	assert.Equal(t, RevisionTag("c3"), path[2].Revision)
}

func TestFindAncestor_NoMatch(t *testing.T) {
	commits := chain(t, "c1", "c2")
	var path []*GraphCommit[string]
	path = append(path, commits[0]) // stale contents must be cleared

	found := FindAncestor(commits[len(commits)-1], func(c *GraphCommit[string]) bool {
		return c.Revision == "missing"
	}, &path)
	assert.Nil(t, found)
	assert.Empty(t, path)
}

func TestFindAncestor_SelfMatch(t *testing.T) {
	commits := chain(t, "c1")
	head := commits[len(commits)-1]
	var path []*GraphCommit[string]
	found := FindAncestor(head, func(c *GraphCommit[string]) bool { return c == head }, &path)
	assert.Same(t, head, found)
	assert.Empty(t, path)
}

func TestFindCommonAncestor_Diverged(t *testing.T) {
	base := chain(t, "b1", "b2")
	fork := base[len(base)-1]
	a := &GraphCommit[string]{Revision: "a1", Change: "a1", Parent: fork}
	a = &GraphCommit[string]{Revision: "a2", Change: "a2", Parent: a}
	b := &GraphCommit[string]{Revision: "x1", Change: "x1", Parent: fork}

	var pathA, pathB []*GraphCommit[string]
	ancestor := FindCommonAncestor(a, b, &pathA, &pathB)
	require.NotNil(t, ancestor)
	assert.Same(t, fork, ancestor)
	require.Len(t, pathA, 2)
	assert.Equal(t, RevisionTag("a1"), pathA[0].Revision)
	assert.Equal(t, RevisionTag("a2"), pathA[1].Revision)
	require.Len(t, pathB, 1)
	assert.Equal(t, RevisionTag("x1"), pathB[0].Revision)
}

func TestFindCommonAncestor_IdenticalInputs(t *testing.T) {
	commits := chain(t, "c1", "c2")
	head := commits[len(commits)-1]
	var pathA, pathB []*GraphCommit[string]
	ancestor := FindCommonAncestor(head, head, &pathA, &pathB)
	assert.Same(t, head, ancestor)
	assert.Empty(t, pathA)
	assert.Empty(t, pathB)
}

func TestFindCommonAncestor_OneIsAncestorOfOther(t *testing.T) {
	commits := chain(t, "c1", "c2", "c3")
	mid, head := commits[2], commits[3]

	var pathA, pathB []*GraphCommit[string]
	ancestor := FindCommonAncestor(head, mid, &pathA, &pathB)
	assert.Same(t, mid, ancestor)
	require.Len(t, pathA, 1)
	assert.Equal(t, RevisionTag("c3"), pathA[0].Revision)
	assert.Empty(t, pathB)
}

func TestFindCommonAncestor_Disjoint(t *testing.T) {
	a := &GraphCommit[string]{Revision: "a", Change: "a"}
	b := &GraphCommit[string]{Revision: "b", Change: "b"}
	assert.Nil(t, FindCommonAncestor(a, b, nil, nil))
}
