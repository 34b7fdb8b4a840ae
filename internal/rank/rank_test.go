package rank_test

import (
	"reflect"
	"testing"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/spellbook/internal/rank"
)

var samplePairs = [][2]string{
	{"", ""},
	{"", "abc"},
	{"kitten", "sitting"},
	{"flaw", "lawn"},
	{"caat", "cat"},
	{"caat", "hat"},
	{"intention", "execution"},
	{"a", "b"},
	{"abcdef", "azced"},
	{"gumbo", "gambol"},
	{"book", "back"},
}

func TestDistance_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"caat", "cat", 1},
		{"caat", "hat", 2},
		{"intention", "execution", 5},
		{"same", "same", 0},
	}
	for _, tc := range tests {
		if got := rank.Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	for _, p := range samplePairs {
		ab := rank.Distance(p[0], p[1])
		ba := rank.Distance(p[1], p[0])
		if ab != ba {
			t.Errorf("Distance(%q, %q) = %d but Distance(%q, %q) = %d", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestDistance_Identities(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "a", "cat", "dictionary"} {
		if got := rank.Distance(s, s); got != 0 {
			t.Errorf("Distance(%q, %q) = %d, want 0", s, s, got)
		}
		if got := rank.Distance("", s); got != len(s) {
			t.Errorf("Distance(\"\", %q) = %d, want %d", s, got, len(s))
		}
	}
}

// TestDistance_MatchesReference cross-checks against matchr's Levenshtein
// implementation.
func TestDistance_MatchesReference(t *testing.T) {
	t.Parallel()

	for _, p := range samplePairs {
		want := matchr.Levenshtein(p[0], p[1])
		if got := rank.Distance(p[0], p[1]); got != want {
			t.Errorf("Distance(%q, %q) = %d, matchr says %d", p[0], p[1], got, want)
		}
	}
}

func TestRank_TopCandidate(t *testing.T) {
	t.Parallel()

	r := rank.New(5)
	list := r.Rank("caat", []string{"cat", "hat", "bat"})

	best, ok := list.Best()
	if !ok {
		t.Fatal("Best: list is empty")
	}
	if best.Word != "cat" || best.Distance != 1 {
		t.Errorf("Best = %v, want cat (1)", best)
	}
	want := []rank.Candidate{{"cat", 1}, {"hat", 2}, {"bat", 2}}
	if got := list.Candidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates = %v, want %v", got, want)
	}
	if s := list.String(); s != "cat (1), hat (2), bat (2)" {
		t.Errorf("String = %q", s)
	}
}

func TestRank_EmptyDictionary(t *testing.T) {
	t.Parallel()

	list := rank.New(5).Rank("xyz", nil)
	if list.Len() != 0 {
		t.Fatalf("Len = %d, want 0", list.Len())
	}
	if _, ok := list.Best(); ok {
		t.Error("Best: ok = true on empty list")
	}
	if list.String() != "" {
		t.Errorf("String = %q, want empty", list.String())
	}
}

func TestRank_FirstFoundWinsOnTies(t *testing.T) {
	t.Parallel()

	// All words are distance 1 from "at"; the list must keep the first two
	// in dictionary order and never let a later tie displace them.
	r := rank.New(2)
	list := r.Rank("at", []string{"bat", "cat", "hat", "mat"})

	want := []rank.Candidate{{"bat", 1}, {"cat", 1}}
	if got := list.Candidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates = %v, want %v", got, want)
	}
}

func TestRank_CloserWordDisplacesWorse(t *testing.T) {
	t.Parallel()

	r := rank.New(3)
	words := []string{"zzzz", "dogs", "cats", "cat", "car"}
	list := r.Rank("cat", words)

	want := []rank.Candidate{{"cat", 0}, {"cats", 1}, {"car", 1}}
	if got := list.Candidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates = %v, want %v", got, want)
	}
}

func TestRank_CapacityAndOrderInvariant(t *testing.T) {
	t.Parallel()

	words := []string{"apple", "apply", "ample", "maple", "apples", "happy", "apt", "a", "applet", "grapple"}
	for k := 1; k <= 6; k++ {
		list := rank.New(k).Rank("appel", words)
		if list.Len() > k {
			t.Errorf("k=%d: Len = %d exceeds capacity", k, list.Len())
		}
		got := list.Candidates()
		for i := 1; i < len(got); i++ {
			if got[i-1].Distance > got[i].Distance {
				t.Errorf("k=%d: not ascending at %d: %v", k, i, got)
			}
		}
	}
}

func TestList_Insert(t *testing.T) {
	t.Parallel()

	l := rank.NewList(3)
	steps := []struct {
		c    rank.Candidate
		kept bool
		want string
	}{
		{rank.Candidate{"a", 3}, true, "a (3)"},
		{rank.Candidate{"b", 3}, true, "a (3), b (3)"},
		{rank.Candidate{"c", 1}, true, "c (1), a (3), b (3)"},
		{rank.Candidate{"d", 3}, false, "c (1), a (3), b (3)"},
		{rank.Candidate{"e", 2}, true, "c (1), e (2), a (3)"},
		{rank.Candidate{"f", 0}, true, "f (0), c (1), e (2)"},
		{rank.Candidate{"g", 2}, false, "f (0), c (1), e (2)"},
	}
	for i, s := range steps {
		if kept := l.Insert(s.c); kept != s.kept {
			t.Errorf("step %d: Insert(%v) kept = %v, want %v", i, s.c, kept, s.kept)
		}
		if got := l.String(); got != s.want {
			t.Errorf("step %d: list = %q, want %q", i, got, s.want)
		}
	}
}

func TestNew_DefaultK(t *testing.T) {
	t.Parallel()

	if k := rank.New(0).K(); k != rank.DefaultK {
		t.Errorf("New(0).K() = %d, want %d", k, rank.DefaultK)
	}
}
