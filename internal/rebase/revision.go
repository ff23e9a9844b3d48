package rebase

import (
	"fmt"

	"github.com/google/uuid"
	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// RevisionTag is a globally comparable identifier minted once per commit.
// The core never inspects its contents; equality is the only operation it
// relies on, so tags from different minting schemes may coexist in one graph.
type RevisionTag string

// NullRevision is the well-known origin revision. Every commit chain
// terminates at a commit carrying it.
const NullRevision RevisionTag = "null"

// Tagger mints revision tags. Implementations must never return the same
// tag twice within a session, and must never return NullRevision.
type Tagger interface {
	// Mint returns a fresh tag. The payload is the serialized change the
	// tag will label; content-addressed taggers hash it, others ignore it.
	Mint(payload []byte) RevisionTag
}

// SessionTagger mints session-scoped tags from a uuid identity and a
// monotonic counter. Two peers can mint without coordination because their
// session uuids differ.
type SessionTagger struct {
	session uuid.UUID
	next    uint64
}

// NewSessionTagger creates a tagger with a fresh random session identity.
func NewSessionTagger() *SessionTagger {
	return &SessionTagger{session: uuid.New()}
}

// NewSessionTaggerWithID creates a tagger bound to a known session identity,
// for deterministic tests and replays.
func NewSessionTaggerWithID(session uuid.UUID) *SessionTagger {
	return &SessionTagger{session: session}
}

// Mint returns "<session-uuid>:<n>". The payload is ignored.
func (t *SessionTagger) Mint(_ []byte) RevisionTag {
	tag := RevisionTag(fmt.Sprintf("%s:%d", t.session, t.next))
	t.next++
	return tag
}

// Session returns the tagger's session identity.
func (t *SessionTagger) Session() uuid.UUID {
	return t.session
}

// ContentTagger mints content-addressed tags: a CIDv1 (raw codec, SHA2-256)
// over the change payload, rendered as a base32lower multibase string.
// Identical payloads yield identical tags, so callers that need per-commit
// uniqueness must salt the payload themselves.
type ContentTagger struct{}

// Mint hashes the payload into a CID string.
func (ContentTagger) Mint(payload []byte) RevisionTag {
	c, err := computeCID(payload)
	if err != nil {
		// multihash.Sum over SHA2_256 cannot fail on any input length.
		panic(fmt.Sprintf("rebase: compute cid: %v", err))
	}
	return RevisionTag(cidString(c))
}

func computeCID(data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

func cidString(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}
