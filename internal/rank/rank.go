// Package rank computes Levenshtein edit distances between a token and a
// word list and keeps the K closest words in a deterministic order.
//
// Distances use unit costs for insertion, deletion and substitution and
// compare bytes; callers normalize both sides to lowercase ASCII first.
//
// Ordering policy of a [List]: words are offered in dictionary order and a
// candidate is placed at the first slot whose distance is strictly greater
// than its own, an empty slot counting as infinitely far. A later word
// therefore never overtakes an earlier word with the same distance, and a
// tie is dropped once the list is full.
package rank

import (
	"strconv"
	"strings"
)

// DefaultK is the default candidate list capacity.
const DefaultK = 5

// Candidate is a dictionary word and its edit distance to a token.
type Candidate struct {
	Word     string
	Distance int
}

// String renders the candidate as "word (distance)".
func (c Candidate) String() string {
	return c.Word + " (" + strconv.Itoa(c.Distance) + ")"
}

// List is a bounded, ascending-by-distance candidate list. The zero value
// has capacity 0 and accepts nothing; use [NewList].
type List struct {
	k     int
	items []Candidate
}

// NewList returns an empty list with capacity k. k < 1 is treated as 1.
func NewList(k int) List {
	if k < 1 {
		k = 1
	}
	return List{k: k, items: make([]Candidate, 0, k)}
}

// Insert offers c to the list and reports whether it was kept.
func (l *List) Insert(c Candidate) bool {
	pos := len(l.items)
	for i, it := range l.items {
		if it.Distance > c.Distance {
			pos = i
			break
		}
	}
	if pos >= l.k {
		return false
	}
	if len(l.items) < l.k {
		l.items = append(l.items, Candidate{})
	}
	copy(l.items[pos+1:], l.items[pos:len(l.items)-1])
	l.items[pos] = c
	return true
}

// Len returns the number of kept candidates.
func (l List) Len() int { return len(l.items) }

// Candidates returns a copy of the kept candidates in rank order.
func (l List) Candidates() []Candidate {
	out := make([]Candidate, len(l.items))
	copy(out, l.items)
	return out
}

// Best returns the first-ranked candidate. ok is false when the list is empty.
func (l List) Best() (c Candidate, ok bool) {
	if len(l.items) == 0 {
		return Candidate{}, false
	}
	return l.items[0], true
}

// String renders the list as "w (d), w (d), ...". An empty list renders as "".
func (l List) String() string {
	var b strings.Builder
	for i, c := range l.items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// Ranker ranks tokens against word lists. It is immutable after
// construction and safe for concurrent use; every Rank call owns its own
// scratch buffers.
type Ranker struct {
	k int
}

// New returns a [Ranker] keeping at most k candidates. k < 1 selects
// [DefaultK].
func New(k int) *Ranker {
	if k < 1 {
		k = DefaultK
	}
	return &Ranker{k: k}
}

// K returns the candidate list capacity.
func (r *Ranker) K() int { return r.k }

// Rank computes the distance from token to every word, scanning words in
// order, and returns the K best. The result is empty only when words is.
func (r *Ranker) Rank(token string, words []string) List {
	list := NewList(r.k)
	prev, cur := newRows(len(token))
	for _, w := range words {
		d := distance(token, w, prev, cur)
		list.Insert(Candidate{Word: w, Distance: d})
	}
	return list
}

// Distance returns the Levenshtein distance between a and b.
func Distance(a, b string) int {
	prev, cur := newRows(len(a))
	return distance(a, b, prev, cur)
}

// newRows allocates the two rolling rows for a token of length n.
func newRows(n int) (prev, cur []int) {
	buf := make([]int, 2*(n+1))
	return buf[:n+1], buf[n+1:]
}

// distance runs the Wagner–Fischer recurrence with a over the row and b over
// the columns, reusing prev and cur (each len(a)+1 long).
//
//	d[i][0] = i, d[0][j] = j
//	d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
func distance(a, b string, prev, cur []int) int {
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		cur[0] = j
		bj := b[j-1]
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == bj {
				cost = 0
			}
			cur[i] = min(prev[i]+1, cur[i-1]+1, prev[i-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(a)]
}
