// Package mock provides an in-memory test double for [spell.Lexicon].
package mock

import (
	"slices"
	"sync"

	"github.com/MrWong99/spellbook/internal/spell"
)

var _ spell.Lexicon = (*Lexicon)(nil)

// Lexicon is an in-memory [spell.Lexicon] that records inserts. It is safe
// for concurrent use.
type Lexicon struct {
	mu    sync.Mutex
	words []string

	// InsertErr is returned by Insert when non-nil; the word is not added.
	InsertErr error

	inserts []string
}

// New returns a Lexicon holding words in order.
func New(words ...string) *Lexicon {
	return &Lexicon{words: slices.Clone(words)}
}

// Lookup reports whether word is present.
func (l *Lexicon) Lookup(word string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.words, word)
}

// Insert records the attempt and appends word unless InsertErr is set.
func (l *Lexicon) Insert(word string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inserts = append(l.inserts, word)
	if l.InsertErr != nil {
		return false, l.InsertErr
	}
	if slices.Contains(l.words, word) {
		return false, nil
	}
	l.words = append(l.words, word)
	return true, nil
}

// Words returns a copy of the current words.
func (l *Lexicon) Words() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.words)
}

// Inserts returns every word passed to Insert, in order.
func (l *Lexicon) Inserts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.inserts)
}
