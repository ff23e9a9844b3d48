package idnorm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// LocalCompressedID is a session-scoped provisional identifier: strictly
// negative, allocated in decreasing order from -1.
type LocalCompressedID int64

// FinalCompressedID is a globally-sequenced permanent identifier:
// non-negative, assigned in increasing order once sequenced.
type FinalCompressedID int64

// SessionSpaceID is an identifier as this session refers to it: negative
// values are locals, non-negative values are finals that never had a local
// counterpart (eager finals).
type SessionSpaceID int64

// Exact failure messages. These are invariant violations: a caller driving
// the normalizer out of contract is a programming error in the surrounding
// system, so all of them panic.
const (
	msgNoLocalRange  = "Final IDs must be added to an existing local range."
	msgMalformed     = "Malformed normalization range."
	msgGapAlignment  = "Gaps in final space must align to a local."
	msgNeverRecorded = "Local ID was never recorded with this normalizer."
)

// span is a run of creation-contiguous IDs of one shape: locals awaiting
// finals (FirstFinal == -1), locals with finals, or eager finals with no
// locals (FirstLocal == 0). The i-th ID of a span has local FirstLocal-i
// and final FirstFinal+i where present.
type span struct {
	FirstCreation uint64            `json:"firstCreation"`
	Count         uint64            `json:"count"`
	FirstLocal    LocalCompressedID `json:"firstLocal"` // 0 = no locals
	FirstFinal    FinalCompressedID `json:"firstFinal"` // -1 = no finals yet
}

func (s *span) hasLocals() bool { return s.FirstLocal != 0 }
func (s *span) hasFinals() bool { return s.FirstFinal != -1 }

// finalRange records one AddFinalIDs declaration with its caller data, for
// serialization and data retrieval.
type finalRange struct {
	First FinalCompressedID `json:"first"`
	Last  FinalCompressedID `json:"last"`
	Data  any               `json:"data,omitempty"`
}

// SessionIDNormalizer records, in creation order, the session's local IDs
// and the final IDs the sequencer assigns to them, and answers bidirectional
// lookups between the two spaces.
//
// Invariants it enforces: locals decrease strictly from -1; final ranges
// are declared in increasing order; a gap between two final ranges must be
// anchored by an unfinalized local; a final range cannot exist before any
// local does.
type SessionIDNormalizer struct {
	spans       []span
	ranges      []finalRange
	localCount  uint64
	idCount     uint64
	unfinalized uint64
	lastFinal   FinalCompressedID
}

// NewSessionIDNormalizer returns an empty normalizer.
func NewSessionIDNormalizer() *SessionIDNormalizer {
	return &SessionIDNormalizer{lastFinal: -1}
}

// AddLocalID allocates the next local ID, strictly decreasing from -1. O(1).
func (n *SessionIDNormalizer) AddLocalID() LocalCompressedID {
	n.localCount++
	local := -LocalCompressedID(n.localCount)
	if len(n.spans) > 0 {
		tail := &n.spans[len(n.spans)-1]
		if tail.hasLocals() && !tail.hasFinals() {
			tail.Count++
			n.idCount++
			n.unfinalized++
			return local
		}
	}
	n.spans = append(n.spans, span{
		FirstCreation: n.idCount,
		Count:         1,
		FirstLocal:    local,
		FirstFinal:    -1,
	})
	n.idCount++
	n.unfinalized++
	return local
}

// AddFinalIDs declares the contiguous final range [first, last]. The finals
// bind 1:1, in creation order, to previously allocated unfinalized locals;
// any surplus becomes eager finals with no local counterpart. data is
// retained with the range and survives serialization.
func (n *SessionIDNormalizer) AddFinalIDs(first, last FinalCompressedID, data any) {
	if n.localCount == 0 {
		panic(msgNoLocalRange)
	}
	if first < 0 || last < first || first <= n.lastFinal {
		panic(msgMalformed)
	}
	if gap := first - (n.lastFinal + 1); gap > 0 && n.unfinalized == 0 {
		panic(msgGapAlignment)
	}

	nextFinal := first
	remaining := uint64(last - first + 1)
	for remaining > 0 && n.unfinalized > 0 {
		i := n.firstUnfinalizedSpan()
		s := &n.spans[i]
		if take := s.Count; take <= remaining {
			s.FirstFinal = nextFinal
			nextFinal += FinalCompressedID(take)
			remaining -= take
			n.unfinalized -= take
			continue
		}
		// Partial finalization splits the span.
		take := remaining
		rest := span{
			FirstCreation: s.FirstCreation + take,
			Count:         s.Count - take,
			FirstLocal:    s.FirstLocal - LocalCompressedID(take),
			FirstFinal:    -1,
		}
		s.Count = take
		s.FirstFinal = nextFinal
		n.spans = append(n.spans, span{})
		copy(n.spans[i+2:], n.spans[i+1:])
		n.spans[i+1] = rest
		nextFinal += FinalCompressedID(take)
		n.unfinalized -= take
		remaining = 0
	}
	if remaining > 0 {
		// Eager finals: extend a contiguous eager tail or open a new one.
		if len(n.spans) > 0 {
			tail := &n.spans[len(n.spans)-1]
			if !tail.hasLocals() && tail.FirstFinal+FinalCompressedID(tail.Count) == nextFinal {
				tail.Count += remaining
				n.idCount += remaining
				remaining = 0
			}
		}
		if remaining > 0 {
			n.spans = append(n.spans, span{
				FirstCreation: n.idCount,
				Count:         remaining,
				FirstLocal:    0,
				FirstFinal:    nextFinal,
			})
			n.idCount += remaining
		}
	}
	n.lastFinal = last
	n.ranges = append(n.ranges, finalRange{First: first, Last: last, Data: data})
}

func (n *SessionIDNormalizer) firstUnfinalizedSpan() int {
	for i := range n.spans {
		if n.spans[i].hasLocals() && !n.spans[i].hasFinals() {
			return i
		}
	}
	panic("idnorm: unfinalized count out of sync with spans")
}

// GetFinalID returns the final assigned to local, or ok=false if the local
// exists but has not been finalized. Querying a local that was never
// allocated panics.
func (n *SessionIDNormalizer) GetFinalID(local LocalCompressedID) (FinalCompressedID, bool) {
	if local >= 0 || uint64(-local) > n.localCount {
		panic(msgNeverRecorded)
	}
	for i := range n.spans {
		s := &n.spans[i]
		if !s.hasLocals() {
			continue
		}
		low := s.FirstLocal - LocalCompressedID(s.Count-1)
		if local <= s.FirstLocal && local >= low {
			if !s.hasFinals() {
				return 0, false
			}
			return s.FirstFinal + FinalCompressedID(s.FirstLocal-local), true
		}
	}
	panic("idnorm: local count out of sync with spans")
}

// GetSessionSpaceID returns how this session refers to final: the local it
// was allocated under, or the final itself for eager finals. ok=false when
// the final was never recorded here.
func (n *SessionIDNormalizer) GetSessionSpaceID(final FinalCompressedID) (SessionSpaceID, bool) {
	s := n.spanForFinal(final)
	if s == nil {
		return 0, false
	}
	if s.hasLocals() {
		return SessionSpaceID(s.FirstLocal - LocalCompressedID(final-s.FirstFinal)), true
	}
	return SessionSpaceID(final), true
}

// GetLastFinalID returns the highest final recorded, if any.
func (n *SessionIDNormalizer) GetLastFinalID() (FinalCompressedID, bool) {
	if n.lastFinal < 0 {
		return 0, false
	}
	return n.lastFinal, true
}

// GetCreationIndex returns the zero-based creation position of final.
func (n *SessionIDNormalizer) GetCreationIndex(final FinalCompressedID) (uint64, bool) {
	s := n.spanForFinal(final)
	if s == nil {
		return 0, false
	}
	return s.FirstCreation + uint64(final-s.FirstFinal), true
}

// GetIDByCreationIndex returns the ID created at position index, in session
// space.
func (n *SessionIDNormalizer) GetIDByCreationIndex(index uint64) (SessionSpaceID, bool) {
	if index >= n.idCount {
		return 0, false
	}
	i := sort.Search(len(n.spans), func(i int) bool {
		return n.spans[i].FirstCreation > index
	}) - 1
	s := &n.spans[i]
	offset := index - s.FirstCreation
	if s.hasLocals() {
		return SessionSpaceID(s.FirstLocal - LocalCompressedID(offset)), true
	}
	return SessionSpaceID(s.FirstFinal + FinalCompressedID(offset)), true
}

func (n *SessionIDNormalizer) spanForFinal(final FinalCompressedID) *span {
	if final < 0 {
		return nil
	}
	for i := range n.spans {
		s := &n.spans[i]
		if s.hasFinals() && final >= s.FirstFinal && final < s.FirstFinal+FinalCompressedID(s.Count) {
			return s
		}
	}
	return nil
}

type serialForm struct {
	Spans      []span            `json:"spans"`
	Ranges     []finalRange      `json:"ranges"`
	LocalCount uint64            `json:"localCount"`
	IDCount    uint64            `json:"idCount"`
	LastFinal  FinalCompressedID `json:"lastFinal"`
}

// Serialize encodes the normalizer as canonical JSON.
func (n *SessionIDNormalizer) Serialize() ([]byte, error) {
	return CanonicalJSON(serialForm{
		Spans:      n.spans,
		Ranges:     n.ranges,
		LocalCount: n.localCount,
		IDCount:    n.idCount,
		LastFinal:  n.lastFinal,
	})
}

// DeserializeNormalizer decodes a normalizer previously produced by
// Serialize. The result Equals the original.
func DeserializeNormalizer(data []byte) (*SessionIDNormalizer, error) {
	var form serialForm
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("decode normalizer: %w", err)
	}
	n := &SessionIDNormalizer{
		spans:      form.Spans,
		ranges:     form.Ranges,
		localCount: form.LocalCount,
		idCount:    form.IDCount,
		lastFinal:  form.LastFinal,
	}
	for i := range n.spans {
		if n.spans[i].hasLocals() && !n.spans[i].hasFinals() {
			n.unfinalized += n.spans[i].Count
		}
	}
	return n, nil
}

// Equals reports structural equality via the canonical serialized form.
func (n *SessionIDNormalizer) Equals(other *SessionIDNormalizer) bool {
	a, err := n.Serialize()
	if err != nil {
		return false
	}
	b, err := other.Serialize()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
