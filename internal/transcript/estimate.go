package transcript

import (
	"fmt"
	"time"

	"github.com/sksthrs/mekiku/internal/ir"
)

// Default scan and tolerance parameters.
const (
	// DefaultMaxLogScan is how many recent entries Estimate inspects.
	DefaultMaxLogScan = 50

	// DefaultSameSenderWindow is how far back in received time a later-sent
	// entry of the same sender still counts as the new entry's neighbour.
	DefaultSameSenderWindow = 20 * time.Second

	// DefaultMaxUndo is the look-back of UndoLast for local undo.
	DefaultMaxUndo = 5
)

// Params tunes the ordering estimator.
type Params struct {
	MaxLogScan       int
	SameSenderWindow time.Duration
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{
		MaxLogScan:       DefaultMaxLogScan,
		SameSenderWindow: DefaultSameSenderWindow,
	}
}

// Result is the placement decision for a new entry.
type Result int

const (
	// ResultAdd appends at the end of the log.
	ResultAdd Result = iota + 1
	// ResultInsert splices before Estimation.Index.
	ResultInsert
	// ResultUpdate means the entry at Estimation.Index is the same event.
	ResultUpdate
	// ResultReject drops the entry: the log is non-empty but no anchor
	// below the new entry could be found.
	ResultReject
)

func (r Result) String() string {
	switch r {
	case ResultAdd:
		return "add"
	case ResultInsert:
		return "insert"
	case ResultUpdate:
		return "update"
	case ResultReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Bound is an optional log index found by the backward scan.
type Bound struct {
	Index int
	Found bool
}

func found(i int) Bound {
	return Bound{Index: i, Found: true}
}

func (b Bound) String() string {
	if !b.Found {
		return "-"
	}
	return fmt.Sprintf("%d", b.Index)
}

// Bounds collects the evidence of one scan.
//
// SameFirst is the index right after the latest same-sender entry sent
// earlier than the new one. SameLast is the lowest index of a same-sender
// entry sent later but received within the window. OtherFirst is the index
// right after the latest other-sender entry received no later than the new
// one. OtherLast is the lowest index of the trailing run of other-sender
// entries received after it.
type Bounds struct {
	SameFirst  Bound
	SameLast   Bound
	OtherFirst Bound
	OtherLast  Bound
}

func (b Bounds) String() string {
	return fmt.Sprintf("same[%s:%s] other[%s:%s]", b.SameFirst, b.SameLast, b.OtherFirst, b.OtherLast)
}

// Estimation is the output of Estimate.
type Estimation struct {
	Result Result
	Index  int
	Bounds Bounds
}

// Estimate decides where e belongs in entries.
//
// entries is read only. The scan runs backwards over at most
// p.MaxLogScan+1 of the most recent entries.
func Estimate(entries []ir.Entry, e ir.Entry, p Params) Estimation {
	n := len(entries)
	if n == 0 {
		return Estimation{Result: ResultAdd, Index: 0}
	}

	var b Bounds
	sortTime := e.SortTime()
	recvTime := e.RecvTime()
	window := ir.Timestamp(p.SameSenderWindow.Milliseconds())
	lowest := max(n-1-p.MaxLogScan, 0)

scan:
	for i := n - 1; i >= lowest; i-- {
		cur := entries[i]
		if cur.SenderID == e.SenderID {
			switch {
			case cur.SortTime() == sortTime:
				return Estimation{Result: ResultUpdate, Index: i, Bounds: b}
			case cur.SortTime() < sortTime:
				// nothing before this can belong after e
				b.SameFirst = found(i + 1)
				break scan
			case cur.ReceivedAt-e.ReceivedAt >= -window:
				b.SameLast = found(i)
			}
			continue
		}

		if cur.RecvTime() <= recvTime {
			if !b.OtherFirst.Found {
				b.OtherFirst = found(i + 1)
			}
		} else if !b.OtherFirst.Found {
			b.OtherLast = found(i)
		}
	}

	index, ok := resolve(b)
	switch {
	case !ok || index >= n:
		return Estimation{Result: ResultAdd, Index: n, Bounds: b}
	case !b.SameFirst.Found && !b.OtherFirst.Found:
		return Estimation{Result: ResultReject, Index: index, Bounds: b}
	default:
		return Estimation{Result: ResultInsert, Index: index, Bounds: b}
	}
}

// resolve turns the scan bounds into an insertion index.
// ok is false when no upper bound exists, which means "after everything".
//
// The three cases, in order:
//  1. the same-sender upper bound lies before every later-received entry
//  2. the same-sender lower bound lies after every later-received entry
//  3. otherwise the tightest lower bound, clamped below by the tightest
//     upper bound
func resolve(b Bounds) (index int, ok bool) {
	if b.SameLast.Found && b.OtherFirst.Found && b.SameLast.Index < b.OtherFirst.Index {
		return b.SameLast.Index, true
	}
	if b.SameFirst.Found && b.OtherLast.Found && b.SameFirst.Index > b.OtherLast.Index {
		return b.SameFirst.Index, true
	}

	upper, hasUpper := minBound(b.SameLast, b.OtherLast)
	if !hasUpper {
		return 0, false
	}
	lower, hasLower := maxBound(b.SameFirst, b.OtherFirst)
	if hasLower && lower > upper {
		return lower, true
	}
	return upper, true
}

func minBound(a, b Bound) (int, bool) {
	switch {
	case a.Found && b.Found:
		return min(a.Index, b.Index), true
	case a.Found:
		return a.Index, true
	case b.Found:
		return b.Index, true
	}
	return 0, false
}

func maxBound(a, b Bound) (int, bool) {
	switch {
	case a.Found && b.Found:
		return max(a.Index, b.Index), true
	case a.Found:
		return a.Index, true
	case b.Found:
		return b.Index, true
	}
	return 0, false
}
