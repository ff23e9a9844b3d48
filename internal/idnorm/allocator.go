package idnorm

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/arborlab/arbor/internal/rebase"
)

// IDRange is a contiguous run of final IDs.
type IDRange struct {
	First FinalCompressedID
	Count uint64
}

// memoEntry is one memoized assignment: count finals starting at first,
// covering the locals [local, local+count) of one revision.
type memoEntry struct {
	local int64
	first FinalCompressedID
	count uint64
}

// MemoizedIDRangeAllocator hands out final ID ranges for (revision,
// changeset-local ID) keys such that identical inputs always produce
// identical outputs, no matter how requests overlap. Requests covering a
// subset or superset of an earlier request reuse the earlier assignment
// exactly, splitting the returned ranges around it; fresh IDs come from one
// monotonic counter shared by all revisions.
type MemoizedIDRangeAllocator struct {
	nextID     FinalCompressedID
	byRevision map[rebase.RevisionTag]*treemap.Map
}

// NewMemoizedIDRangeAllocator returns an allocator counting from zero.
func NewMemoizedIDRangeAllocator() *MemoizedIDRangeAllocator {
	return &MemoizedIDRangeAllocator{byRevision: make(map[rebase.RevisionTag]*treemap.Map)}
}

// Allocate returns the final IDs for the count locals starting at localID
// within revision, memoizing every assignment. The result is a minimal list
// of contiguous ranges: adjacent assignments with adjacent finals coalesce.
func (a *MemoizedIDRangeAllocator) Allocate(revision rebase.RevisionTag, localID int64, count uint64) []IDRange {
	if count == 0 {
		return nil
	}
	m, ok := a.byRevision[revision]
	if !ok {
		m = treemap.NewWith(utils.Int64Comparator)
		a.byRevision[revision] = m
	}

	var result []IDRange
	cur := localID
	remaining := count
	for remaining > 0 {
		if fk, fv := m.Floor(cur); fk != nil {
			entry := fv.(*memoEntry)
			if offset := cur - entry.local; offset < int64(entry.count) {
				take := entry.count - uint64(offset)
				if take > remaining {
					take = remaining
				}
				result = appendRange(result, entry.first+FinalCompressedID(offset), take)
				cur += int64(take)
				remaining -= take
				continue
			}
		}
		// Unassigned run: it extends to the next memoized entry or to the
		// end of the request, whichever is nearer.
		run := remaining
		if ck, _ := m.Ceiling(cur); ck != nil {
			if gap := uint64(ck.(int64) - cur); gap < run {
				run = gap
			}
		}
		entry := &memoEntry{local: cur, first: a.nextID, count: run}
		a.nextID += FinalCompressedID(run)
		a.putCoalescing(m, entry)
		result = appendRange(result, entry.first, run)
		cur += int64(run)
		remaining -= run
	}
	return result
}

// Mint allocates count fresh finals from the shared monotonic counter,
// bypassing memoization entirely.
func (a *MemoizedIDRangeAllocator) Mint(count uint64) IDRange {
	r := IDRange{First: a.nextID, Count: count}
	a.nextID += FinalCompressedID(count)
	return r
}

// putCoalescing inserts entry, merging it with a directly preceding entry
// whose locals and finals are both adjacent.
func (a *MemoizedIDRangeAllocator) putCoalescing(m *treemap.Map, entry *memoEntry) {
	if pk, pv := m.Floor(entry.local - 1); pk != nil {
		prev := pv.(*memoEntry)
		if prev.local+int64(prev.count) == entry.local &&
			prev.first+FinalCompressedID(prev.count) == entry.first {
			prev.count += entry.count
			return
		}
	}
	m.Put(entry.local, entry)
}

func appendRange(ranges []IDRange, first FinalCompressedID, count uint64) []IDRange {
	if n := len(ranges); n > 0 {
		last := &ranges[n-1]
		if last.First+FinalCompressedID(last.Count) == first {
			last.Count += count
			return ranges
		}
	}
	return append(ranges, IDRange{First: first, Count: count})
}
