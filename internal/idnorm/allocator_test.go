package idnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborlab/arbor/internal/rebase"
)

func TestAllocate_SequentialAcrossRevisions(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	tag1, tag2 := rebase.RevisionTag("tag1"), rebase.RevisionTag("tag2")

	assert.Equal(t, []IDRange{{First: 0, Count: 1}}, a.Allocate(tag1, 0, 1))
	assert.Equal(t, []IDRange{{First: 1, Count: 2}}, a.Allocate(tag1, 1, 2))
	assert.Equal(t, []IDRange{{First: 3, Count: 1}}, a.Allocate(tag2, 0, 1))

	// Identical inputs return identical outputs.
	assert.Equal(t, []IDRange{{First: 0, Count: 1}}, a.Allocate(tag1, 0, 1))
	assert.Equal(t, []IDRange{{First: 1, Count: 2}}, a.Allocate(tag1, 1, 2))
	assert.Equal(t, []IDRange{{First: 3, Count: 1}}, a.Allocate(tag2, 0, 1))
}

func TestAllocate_AdjacentRangesCoalesce(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	tag := rebase.RevisionTag("tag")
	a.Allocate(tag, 0, 1)
	a.Allocate(tag, 1, 2)

	// Locals 0..2 were assigned finals 0..2 in two adjacent pieces; a
	// request spanning both comes back as one coalesced range.
	assert.Equal(t, []IDRange{{First: 0, Count: 3}}, a.Allocate(tag, 0, 3))
}

func TestAllocate_SupersetSplitsAroundPriorAssignment(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	tag := rebase.RevisionTag("tag")
	require.Equal(t, []IDRange{{First: 0, Count: 2}}, a.Allocate(tag, 5, 2))

	// Locals 3..8: 3,4 are fresh, 5,6 keep their prior finals, 7,8 are
	// fresh again, so the result splits around the memoized middle.
	got := a.Allocate(tag, 3, 6)
	assert.Equal(t, []IDRange{
		{First: 2, Count: 2},
		{First: 0, Count: 2},
		{First: 4, Count: 2},
	}, got)

	// And the superset itself is now memoized exactly.
	assert.Equal(t, got, a.Allocate(tag, 3, 6))
}

func TestAllocate_SubsetReusesPriorAssignment(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	tag := rebase.RevisionTag("tag")
	require.Equal(t, []IDRange{{First: 0, Count: 5}}, a.Allocate(tag, 10, 5))
	assert.Equal(t, []IDRange{{First: 1, Count: 3}}, a.Allocate(tag, 11, 3))
}

func TestAllocate_RevisionsAreIndependent(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	r1 := a.Allocate("r1", 0, 2)
	r2 := a.Allocate("r2", 0, 2)
	assert.NotEqual(t, r1, r2, "the same local key in different revisions gets distinct finals")
}

func TestAllocate_ZeroCount(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	assert.Nil(t, a.Allocate("r", 0, 0))
}

func TestMint_BypassesMemoization(t *testing.T) {
	a := NewMemoizedIDRangeAllocator()
	a.Allocate("r", 0, 2)

	minted := a.Mint(3)
	assert.Equal(t, IDRange{First: 2, Count: 3}, minted)
	again := a.Mint(3)
	assert.Equal(t, IDRange{First: 5, Count: 3}, again, "mint never memoizes")

	// Memoized assignments are unaffected and later allocations skip past
	// the minted block.
	assert.Equal(t, []IDRange{{First: 0, Count: 2}}, a.Allocate("r", 0, 2))
	assert.Equal(t, []IDRange{{First: 8, Count: 1}}, a.Allocate("r", 2, 1))
}
