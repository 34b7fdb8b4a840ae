// Package protocol implements the plain-text, line-oriented wire protocol of
// the spell-check service: the [Conn] abstraction transports carry it over,
// input validation with named error kinds, tokenization, and the exact
// message formats.
//
// A session looks like this (server lines prefixed S, client lines C):
//
//	S: Welcome to Text Analysis Server!
//	S: Enter your string:
//	C: caat
//	S: WORD 01: caat
//	S: MATCHES: cat (1), hat (2), bat (2)
//	S: WORD not in dictionary. Do you want to add this word to dictionary? (y/N):
//	C: n
//	S: INPUT: caat
//	S: OUTPUT: cat
//
// Lines starting with "ERROR: " are followed by connection close; lines
// starting with "INFO: " are not.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/spellbook/internal/rank"
)

// Greeting is sent when a connection opens.
const Greeting = "Welcome to Text Analysis Server!\nEnter your string:\n"

// AddPrompt asks the client to approve adding an unknown word. It is not
// newline-terminated; the client answers on the same line.
const AddPrompt = "WORD not in dictionary. Do you want to add this word to dictionary? (y/N): "

// CorrectWord closes the block of an exact dictionary hit.
const CorrectWord = "Correct word!\n"

// UppercaseNotice is sent when the input contained uppercase letters.
const UppercaseNotice = "Input contained uppercase letters. Converted to lowercase."

// ErrLineTooLong is returned by [Conn.ReceiveLine] when a line exceeds the
// transport's read bound.
var ErrLineTooLong = errors.New("protocol: line too long")

// Conn is one client conversation. Implementations need not be safe for
// concurrent use; a session drives its Conn from a single goroutine.
type Conn interface {
	// Send writes text verbatim. text may or may not end in a newline.
	Send(ctx context.Context, text string) error

	// ReceiveLine blocks for the next line and returns it without its
	// terminator. It returns io.EOF when the peer closed the connection.
	ReceiveLine(ctx context.Context) (string, error)

	// Close terminates the conversation.
	Close() error

	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// WordHeader renders the per-token block header:
//
//	WORD 01: caat
//	MATCHES: cat (1), hat (2)
func WordHeader(tok Token, matches rank.List) string {
	return fmt.Sprintf("WORD %02d: %s\nMATCHES: %s\n", tok.Index, tok.Text, matches.String())
}

// ErrorLine renders a terminal error line.
func ErrorLine(msg string) string { return "ERROR: " + msg + "\n" }

// InfoLine renders an informational line.
func InfoLine(msg string) string { return "INFO: " + msg + "\n" }

// TranscriptLines renders the final two lines pairing the raw input with the
// resolved output words. output is truncated to maxOutput bytes when
// maxOutput > 0.
func TranscriptLines(raw string, output []string, maxOutput int) string {
	return "INPUT: " + raw + "\nOUTPUT: " + OutputText(output, maxOutput) + "\n"
}

// OutputText joins the resolved words with single spaces, truncated to
// maxOutput bytes when maxOutput > 0.
func OutputText(words []string, maxOutput int) string {
	out := strings.Join(words, " ")
	if maxOutput > 0 && len(out) > maxOutput {
		out = out[:maxOutput]
	}
	return out
}

// IsAffirmative reports whether a decision reply accepts: its first byte is
// 'y' or 'Y'.
func IsAffirmative(reply string) bool {
	return len(reply) > 0 && (reply[0] == 'y' || reply[0] == 'Y')
}
