package connection

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

const defaultLedgerWindow = 4096

// LedgerSlice is a list of ledger indices.
type LedgerSlice []uint32

func (s LedgerSlice) Len() int            { return len(s) }
func (s LedgerSlice) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s LedgerSlice) Less(i, j int) bool  { return s[i] < s[j] }
func (s LedgerSlice) Sorted() LedgerSlice { sort.Sort(s); return s }

// LedgerRange is an inclusive range of ledger indices.
type LedgerRange struct {
	Start uint32
	End   uint32
}

func (r *LedgerRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// LedgerSet records the closed ledgers observed on a connection inside a
// sliding window, so skipped ledgers can be reported.
type LedgerSet struct {
	mu       sync.Mutex
	ledgers  *bitset.BitSet
	start    uint32
	max      uint32
	capacity uint32
}

// NewLedgerSet returns an empty set keeping capacity ledgers.
func NewLedgerSet(capacity uint32) *LedgerSet {
	if capacity == 0 {
		capacity = defaultLedgerWindow
	}
	return &LedgerSet{
		ledgers:  bitset.New(uint(capacity)),
		capacity: capacity,
	}
}

// Set marks ledger i as observed. When i jumps past the highest ledger
// seen so far, the skipped range is returned.
func (l *LedgerSet) Set(i uint32) *LedgerRange {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max == 0 {
		l.start, l.max = i, i
		l.ledgers.ClearAll()
		l.ledgers.Set(0)
		return nil
	}
	if i < l.start {
		return nil
	}
	if i-l.start >= l.capacity {
		l.rebase(i)
	}
	l.ledgers.Set(uint(i - l.start))
	if i <= l.max {
		return nil
	}
	var gap *LedgerRange
	if i > l.max+1 {
		gap = &LedgerRange{Start: l.max + 1, End: i - 1}
	}
	l.max = i
	return gap
}

// rebase moves the window so that i sits in its upper half.
func (l *LedgerSet) rebase(i uint32) {
	newStart := i - l.capacity/2
	moved := bitset.New(uint(l.capacity))
	for j, ok := l.ledgers.NextSet(0); ok; j, ok = l.ledgers.NextSet(j + 1) {
		index := l.start + uint32(j)
		if index >= newStart {
			moved.Set(uint(index - newStart))
		}
	}
	l.ledgers = moved
	l.start = newStart
}

// Has reports whether ledger i was observed and is still in the window.
func (l *LedgerSet) Has(i uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max == 0 || i < l.start || i-l.start >= l.capacity {
		return false
	}
	return l.ledgers.Test(uint(i - l.start))
}

// Missing lists the unobserved ledgers of [from, to] inside the window.
func (l *LedgerSet) Missing(from, to uint32) LedgerSlice {
	l.mu.Lock()
	defer l.mu.Unlock()
	var missing LedgerSlice
	if l.max == 0 {
		return missing
	}
	if from < l.start {
		from = l.start
	}
	if to > l.max {
		to = l.max
	}
	for i := from; i <= to && i >= from; i++ {
		if !l.ledgers.Test(uint(i - l.start)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Max returns the highest observed ledger.
func (l *LedgerSet) Max() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max
}

// Count returns the number of observed ledgers in the window.
func (l *LedgerSet) Count() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint32(l.ledgers.Count())
}

// Reset forgets everything; used when the connection changes.
func (l *LedgerSet) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ledgers.ClearAll()
	l.start, l.max = 0, 0
}
