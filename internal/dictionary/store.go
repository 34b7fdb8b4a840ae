// Package dictionary owns the canonical word list of the spell checker.
//
// A [Store] is loaded once at startup from a flat file (one word per line)
// and is append-only afterwards. Every accepted word is written to the
// backing file and synced before it becomes visible to readers, so the
// in-memory sequence and the persisted list never disagree for any state a
// reader can observe.
//
// Insertion order is preserved; the ranker scans entries in that order and
// its tie policy depends on it.
package dictionary

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries is the default upper bound on the number of words.
	DefaultMaxEntries = 5000

	// DefaultMaxWordLength is the default upper bound on a word's byte length.
	DefaultMaxWordLength = 100
)

var (
	// ErrEmptyWord is returned by Insert when the word normalizes to "".
	ErrEmptyWord = errors.New("dictionary: empty word")

	// ErrWordTooLong is returned by Insert when the normalized word exceeds
	// the configured maximum length.
	ErrWordTooLong = errors.New("dictionary: word exceeds maximum length")

	// ErrFull is returned by Insert when the store already holds the
	// configured maximum number of entries.
	ErrFull = errors.New("dictionary: maximum entry count reached")

	// ErrPersist wraps failures writing to the backing file. The in-memory
	// sequence is left unchanged when it is returned.
	ErrPersist = errors.New("dictionary: persist failed")

	// ErrClosed is returned by Insert after Close.
	ErrClosed = errors.New("dictionary: store closed")

	// ErrWritesSuspended is returned by Insert while appends are paused
	// after repeated persist failures.
	ErrWritesSuspended = errors.New("dictionary: writes suspended after repeated failures")
)

// Option configures a [Store].
type Option func(*Store)

// WithMaxEntries bounds the number of entries the store accepts.
// Values <= 0 are ignored.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithMaxWordLength bounds the byte length of a single entry.
// Values <= 0 are ignored.
func WithMaxWordLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxWordLength = n
		}
	}
}

// WithWriteGuard suspends appends for cooldown after maxFailures
// consecutive persist failures. Values <= 0 select [DefaultWriteFailures]
// and [DefaultWriteCooldown].
func WithWriteGuard(maxFailures int, cooldown time.Duration) Option {
	return func(s *Store) { s.guard = newWriteGuard(maxFailures, cooldown) }
}

// WithInsertHook registers a callback invoked after every Insert attempt with
// the normalized word and the outcome. It is called outside the critical
// section. Used for metrics.
func WithInsertHook(fn func(word string, inserted bool, err error)) Option {
	return func(s *Store) { s.onInsert = fn }
}

// Store is the append-only dictionary. Lookups and snapshots take a read
// lock only; Insert holds the write lock for the duration of one append.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	words []string
	index map[string]struct{}
	log   wordLog

	guard         *writeGuard
	maxEntries    int
	maxWordLength int
	onInsert      func(word string, inserted bool, err error)
}

// Load reads the word list at path and returns a [Store] that appends new
// words to the same file. The file must exist and be readable; any error
// opening it is returned and callers are expected to treat it as fatal.
// Write access is only needed once a word is inserted.
//
// Lines are trimmed and lowercased. Empty lines, duplicates and words longer
// than the length bound are skipped. Words beyond the entry bound are
// dropped with a warning.
func Load(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %q: %w", path, err)
	}
	defer f.Close()

	fl := newFileLog(path)
	s := newStore(fl, opts...)

	var (
		skippedLong int
		dropped     int
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := Normalize(sc.Text())
		if w == "" {
			continue
		}
		if len(w) > s.maxWordLength {
			skippedLong++
			continue
		}
		if _, dup := s.index[w]; dup {
			continue
		}
		if len(s.words) >= s.maxEntries {
			dropped++
			continue
		}
		s.words = append(s.words, w)
		s.index[w] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dictionary: read %q: %w", path, err)
	}
	if err := fl.checkTrailingNewline(f); err != nil {
		return nil, fmt.Errorf("dictionary: inspect %q: %w", path, err)
	}

	if skippedLong > 0 {
		slog.Warn("dictionary: skipped over-long entries", "path", path, "count", skippedLong, "max_word_length", s.maxWordLength)
	}
	if dropped > 0 {
		slog.Warn("dictionary: entry limit reached, dropped remaining words", "path", path, "dropped", dropped, "max_entries", s.maxEntries)
	}
	return s, nil
}

// newStore builds an empty store around log.
func newStore(log wordLog, opts ...Option) *Store {
	s := &Store{
		index:         make(map[string]struct{}),
		log:           log,
		guard:         newWriteGuard(0, 0),
		maxEntries:    DefaultMaxEntries,
		maxWordLength: DefaultMaxWordLength,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Normalize trims surrounding whitespace and lowercases word.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Lookup reports whether the normalized form of word is in the dictionary.
func (s *Store) Lookup(word string) bool {
	w := Normalize(word)
	s.mu.RLock()
	_, ok := s.index[w]
	s.mu.RUnlock()
	return ok
}

// Insert adds word to the dictionary. It returns false with a nil error when
// the normalized word is already present. Otherwise the word is appended to
// the backing file, synced, and then appended in memory; both happen under
// the write lock so no reader sees one without the other. If the file write
// fails, the error wraps [ErrPersist] and the store is unchanged.
func (s *Store) Insert(word string) (bool, error) {
	w := Normalize(word)
	inserted, err := s.insert(w)
	if s.onInsert != nil {
		s.onInsert(w, inserted, err)
	}
	return inserted, err
}

func (s *Store) insert(w string) (bool, error) {
	if w == "" {
		return false, ErrEmptyWord
	}
	if len(w) > s.maxWordLength {
		return false, ErrWordTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[w]; ok {
		return false, nil
	}
	if s.log == nil {
		return false, ErrClosed
	}
	if len(s.words) >= s.maxEntries {
		return false, ErrFull
	}
	if err := s.guard.allow(); err != nil {
		return false, err
	}
	err := s.log.Append(w)
	s.guard.record(err)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.words = append(s.words, w)
	s.index[w] = struct{}{}
	return true, nil
}

// Words returns the current entries in insertion order. The returned slice
// is a snapshot: later inserts never modify it. Callers must not write to it.
func (s *Store) Words() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.words)
	return s.words[:n:n]
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// MaxEntries returns the configured capacity.
func (s *Store) MaxEntries() int { return s.maxEntries }

// Ping reports whether the store still accepts inserts. It returns
// [ErrClosed] after Close and [ErrWritesSuspended] while the write guard is
// open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.log == nil {
		return ErrClosed
	}
	if s.guard.suspended() {
		return ErrWritesSuspended
	}
	return nil
}

// Close releases the backing file. Lookups keep working; Insert returns
// [ErrClosed]. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	if err != nil {
		return fmt.Errorf("dictionary: close: %w", err)
	}
	return nil
}
