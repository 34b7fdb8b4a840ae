package protocol

import (
	"fmt"
	"strings"
)

// ErrorKind names a class of rejected input.
type ErrorKind string

const (
	// KindEmpty marks an empty or whitespace-only line.
	KindEmpty ErrorKind = "empty"

	// KindTooLong marks a raw line longer than the input limit.
	KindTooLong ErrorKind = "too_long"

	// KindNormalizedTooLong marks a line that exceeds the limit after
	// normalization.
	KindNormalizedTooLong ErrorKind = "normalized_too_long"

	// KindUnsupported marks a line containing a byte that is neither an
	// ASCII letter nor whitespace.
	KindUnsupported ErrorKind = "unsupported_character"
)

// ValidationError rejects one input line. Every validation failure is
// terminal for its connection.
type ValidationError struct {
	Kind ErrorKind

	// Length is the offending length for the too-long kinds.
	Length int

	// Limit is the configured maximum for the too-long kinds.
	Limit int

	// Char is the first disallowed byte for KindUnsupported.
	Char byte
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindTooLong, KindNormalizedTooLong:
		if e.Length == 0 {
			// The transport gave up before the line ended.
			return fmt.Sprintf("protocol: input %s: limit %d", e.Kind, e.Limit)
		}
		return fmt.Sprintf("protocol: input %s: %d > %d", e.Kind, e.Length, e.Limit)
	case KindUnsupported:
		return fmt.Sprintf("protocol: input %s: %q", e.Kind, e.Char)
	default:
		return "protocol: input " + string(e.Kind)
	}
}

// ClientMessage returns the text sent to the client, without the
// "ERROR: " prefix.
func (e *ValidationError) ClientMessage() string {
	switch e.Kind {
	case KindEmpty:
		return "Input string is empty!"
	case KindTooLong:
		return "Input string is longer than allowed limit!"
	case KindNormalizedTooLong:
		return "Cleaned input string is longer than allowed limit!"
	case KindUnsupported:
		return "Input string contains unsupported characters!"
	default:
		return "Invalid input!"
	}
}

// Input is a validated line.
type Input struct {
	// Raw is the line as received, without its line terminator.
	Raw string

	// Normalized is Raw trimmed and lowercased.
	Normalized string

	// HadUppercase reports whether Raw contained uppercase letters. The
	// session sends an informational notice when it is set.
	HadUppercase bool
}

// Token is one whitespace-delimited word of a normalized line.
type Token struct {
	// Index is the 1-based position of the token in the line.
	Index int
	Text  string
}

// ParseInput validates raw against maxLen and normalizes it. Checks run in
// this order: empty, raw length, normalized length, character class.
// Trimming and lowering are ASCII-only, so a non-ASCII letter or space is
// never folded into an accepted character and always fails the class check.
// The
// uppercase flag is computed before any normalization-dependent check so a
// caller can emit the notice ahead of a later rejection.
func ParseInput(raw string, maxLen int) (Input, error) {
	in := Input{Raw: raw}

	trimmed := strings.Trim(raw, asciiSpace)
	if trimmed == "" {
		return in, &ValidationError{Kind: KindEmpty}
	}
	if maxLen > 0 && len(raw) > maxLen {
		return in, &ValidationError{Kind: KindTooLong, Length: len(raw), Limit: maxLen}
	}

	in.HadUppercase = hasUpper(raw)
	in.Normalized = asciiLower(trimmed)

	if maxLen > 0 && len(in.Normalized) > maxLen {
		return in, &ValidationError{Kind: KindNormalizedTooLong, Length: len(in.Normalized), Limit: maxLen}
	}
	for i := 0; i < len(in.Normalized); i++ {
		c := in.Normalized[i]
		if !isAlpha(c) && !isSpace(c) {
			return in, &ValidationError{Kind: KindUnsupported, Char: c}
		}
	}
	return in, nil
}

// Tokenize splits a normalized line on whitespace, numbering tokens from 1.
func Tokenize(normalized string) []Token {
	fields := strings.Fields(normalized)
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tokens[i] = Token{Index: i + 1, Text: f}
	}
	return tokens
}

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// asciiSpace is the C locale whitespace set.
const asciiSpace = " \t\n\v\f\r"

// asciiLower lowers A-Z only. Other bytes, including every byte of a
// multi-byte rune, pass through unchanged so the character check sees them.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// isSpace matches the C locale whitespace set.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
