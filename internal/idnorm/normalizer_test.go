package idnorm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLocalID_StrictlyDecreasingFromMinusOne(t *testing.T) {
	n := NewSessionIDNormalizer()
	assert.Equal(t, LocalCompressedID(-1), n.AddLocalID())
	assert.Equal(t, LocalCompressedID(-2), n.AddLocalID())
	assert.Equal(t, LocalCompressedID(-3), n.AddLocalID())
}

func TestAddFinalIDs_TrailingEagerRanges(t *testing.T) {
	n := NewSessionIDNormalizer()
	require.Equal(t, LocalCompressedID(-1), n.AddLocalID())

	// One local anchors the final space; contiguous trailing finals need no
	// further locals.
	n.AddFinalIDs(0, 1, nil)
	n.AddFinalIDs(2, 3, nil)
	n.AddFinalIDs(4, 10, nil)

	final, ok := n.GetFinalID(-1)
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(0), final)
	last, ok := n.GetLastFinalID()
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(10), last)
}

func TestAddFinalIDs_RequiresExistingLocalRange(t *testing.T) {
	n := NewSessionIDNormalizer()
	assert.PanicsWithValue(t, "Final IDs must be added to an existing local range.", func() {
		n.AddFinalIDs(0, 1, nil)
	})
}

func TestAddFinalIDs_MalformedRanges(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	n.AddFinalIDs(0, 3, nil)

	assert.PanicsWithValue(t, "Malformed normalization range.", func() {
		n.AddFinalIDs(5, 4, nil) // last before first
	})
	assert.PanicsWithValue(t, "Malformed normalization range.", func() {
		n.AddFinalIDs(2, 6, nil) // overlaps the previous range
	})
}

func TestAddFinalIDs_GapMustAlignToLocal(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	n.AddFinalIDs(0, 0, nil)

	// No unfinalized local remains, so a gap has nothing to anchor it.
	assert.PanicsWithValue(t, "Gaps in final space must align to a local.", func() {
		n.AddFinalIDs(5, 6, nil)
	})

	// With an unfinalized local outstanding, the same gap is legal: other
	// sessions claimed the skipped finals.
	n.AddLocalID()
	n.AddFinalIDs(5, 6, nil)
	final, ok := n.GetFinalID(-2)
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(5), final)
}

func TestGetFinalID_UnfinalizedLocal(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	_, ok := n.GetFinalID(-1)
	assert.False(t, ok, "a recorded but unfinalized local has no final yet")
}

func TestGetFinalID_UnrecordedLocalPanics(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	assert.PanicsWithValue(t, "Local ID was never recorded with this normalizer.", func() {
		n.GetFinalID(-2)
	})
	assert.PanicsWithValue(t, "Local ID was never recorded with this normalizer.", func() {
		n.GetFinalID(0)
	})
}

func TestGetSessionSpaceID(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	n.AddFinalIDs(0, 2, nil) // final 0 binds to -1; finals 1,2 are eager

	id, ok := n.GetSessionSpaceID(0)
	require.True(t, ok)
	assert.Equal(t, SessionSpaceID(-1), id, "a final with a local counterpart normalizes to the local")

	id, ok = n.GetSessionSpaceID(2)
	require.True(t, ok)
	assert.Equal(t, SessionSpaceID(2), id, "eager finals are their own session-space form")

	_, ok = n.GetSessionSpaceID(3)
	assert.False(t, ok)
}

func TestCreationIndexLookups(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID() // creation 0, local -1
	n.AddLocalID() // creation 1, local -2
	n.AddFinalIDs(0, 3, nil) // binds -1,-2; eager finals 2,3 at creation 2,3
	n.AddLocalID() // creation 4, local -3

	idx, ok := n.GetCreationIndex(3)
	require.True(t, ok)
	assert.Equal(t, uint64(3), idx)
	idx, ok = n.GetCreationIndex(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), idx)

	id, ok := n.GetIDByCreationIndex(0)
	require.True(t, ok)
	assert.Equal(t, SessionSpaceID(-1), id)
	id, ok = n.GetIDByCreationIndex(2)
	require.True(t, ok)
	assert.Equal(t, SessionSpaceID(2), id)
	id, ok = n.GetIDByCreationIndex(4)
	require.True(t, ok)
	assert.Equal(t, SessionSpaceID(-3), id)
	_, ok = n.GetIDByCreationIndex(5)
	assert.False(t, ok)
}

func TestPartialFinalization_SplitsLocalRun(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	n.AddLocalID()
	n.AddLocalID()
	n.AddFinalIDs(10, 11, nil) // finalizes -1,-2 only

	final, ok := n.GetFinalID(-2)
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(11), final)
	_, ok = n.GetFinalID(-3)
	assert.False(t, ok)

	n.AddFinalIDs(12, 12, nil)
	final, ok = n.GetFinalID(-3)
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(12), final)
}

func TestSerialize_RoundTripEquals(t *testing.T) {
	n := NewSessionIDNormalizer()
	n.AddLocalID()
	n.AddLocalID()
	n.AddFinalIDs(0, 4, "range-data")
	n.AddLocalID()

	data, err := n.Serialize()
	require.NoError(t, err)
	back, err := DeserializeNormalizer(data)
	require.NoError(t, err)
	assert.True(t, n.Equals(back))
	assert.True(t, back.Equals(n))

	// The round-tripped normalizer keeps working.
	back.AddFinalIDs(5, 5, nil)
	final, ok := back.GetFinalID(-3)
	require.True(t, ok)
	assert.Equal(t, FinalCompressedID(5), final)
}

func TestSerialize_FuzzedRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := NewSessionIDNormalizer()
		unfinalized := uint64(0)
		nextFinal := FinalCompressedID(0)
		for op := 0; op < 30; op++ {
			if rng.Intn(2) == 0 || n.localCount == 0 {
				n.AddLocalID()
				unfinalized++
				continue
			}
			if gap := rng.Intn(3); gap > 0 && unfinalized > 0 {
				nextFinal += FinalCompressedID(gap)
			}
			count := uint64(rng.Intn(4) + 1)
			n.AddFinalIDs(nextFinal, nextFinal+FinalCompressedID(count-1), nil)
			nextFinal += FinalCompressedID(count)
			if count >= unfinalized {
				unfinalized = 0
			} else {
				unfinalized -= count
			}
		}

		data, err := n.Serialize()
		require.NoError(t, err)
		back, err := DeserializeNormalizer(data)
		require.NoError(t, err)
		require.True(t, n.Equals(back), "trial %d diverged", trial)
	}
}
