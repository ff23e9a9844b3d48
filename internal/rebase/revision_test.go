package rebase

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTagger_MonotonicWithinSession(t *testing.T) {
	tagger := NewSessionTagger()
	seen := make(map[RevisionTag]struct{})
	for i := 0; i < 100; i++ {
		tag := tagger.Mint(nil)
		_, dup := seen[tag]
		require.False(t, dup, "tag %s minted twice", tag)
		seen[tag] = struct{}{}
	}
}

func TestSessionTagger_DeterministicWithKnownSession(t *testing.T) {
	session := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	a := NewSessionTaggerWithID(session)
	b := NewSessionTaggerWithID(session)
	assert.Equal(t, a.Mint(nil), b.Mint(nil))
	assert.Equal(t, a.Mint(nil), b.Mint(nil))
	assert.Equal(t, session, a.Session())
}

func TestSessionTagger_DistinctSessionsDistinctTags(t *testing.T) {
	a := NewSessionTagger()
	b := NewSessionTagger()
	assert.NotEqual(t, a.Mint(nil), b.Mint(nil))
}

func TestContentTagger_DeterministicOverPayload(t *testing.T) {
	tagger := ContentTagger{}
	one := tagger.Mint([]byte("change-a"))
	two := tagger.Mint([]byte("change-a"))
	other := tagger.Mint([]byte("change-b"))

	assert.Equal(t, one, two)
	assert.NotEqual(t, one, other)
	// base32lower multibase strings carry the "b" prefix.
	assert.True(t, strings.HasPrefix(string(one), "b"), "got %s", one)
	assert.NotEqual(t, NullRevision, one)
}
