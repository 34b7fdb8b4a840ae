// Package mcp exposes the dictionary to MCP clients as two read-only tools:
//
//   - "spell_lookup" reports whether a word is in the dictionary.
//   - "spell_suggest" returns the ranked correction candidates for a word,
//     flagging candidates that share a Double Metaphone code with it.
//
// Adding words is only possible through the interactive line protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/spellbook/internal/protocol"
	"github.com/MrWong99/spellbook/internal/rank"
)

// Implementation name reported to MCP clients.
const serverName = "spellbook"

// Lexicon is the read-only view of the dictionary used by the tools.
type Lexicon interface {
	Lookup(word string) bool
	Words() []string
}

// LookupInput is the argument of "spell_lookup".
type LookupInput struct {
	Word string `json:"word" jsonschema:"the word to check"`
}

// LookupResult is the structured result of "spell_lookup".
type LookupResult struct {
	Word       string `json:"word"`
	Normalized string `json:"normalized"`
	Found      bool   `json:"found"`
}

// SuggestInput is the argument of "spell_suggest".
type SuggestInput struct {
	Word  string `json:"word" jsonschema:"the word to correct"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of candidates; defaults to the server setting"`
}

// Suggestion is one ranked candidate.
type Suggestion struct {
	Word       string `json:"word"`
	Distance   int    `json:"distance"`
	SoundsLike bool   `json:"sounds_like"`
}

// SuggestResult is the structured result of "spell_suggest".
type SuggestResult struct {
	Word       string       `json:"word"`
	Found      bool         `json:"found"`
	Candidates []Suggestion `json:"candidates"`
}

// Server serves the spell tools over MCP.
type Server struct {
	lex      Lexicon
	ranker   *rank.Ranker
	maxInput int
	version  string

	mcpServer *mcpsdk.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithMaxInputLength bounds the length of a tool's word argument the same
// way the line protocol bounds an input line. Zero disables the bound.
func WithMaxInputLength(n int) Option {
	return func(s *Server) { s.maxInput = n }
}

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New returns a Server answering from lex and ranking with r.
func New(lex Lexicon, r *rank.Ranker, opts ...Option) *Server {
	s := &Server{lex: lex, ranker: r, version: "dev"}
	for _, o := range opts {
		o(s)
	}

	s.mcpServer = mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: s.version}, nil)
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "spell_lookup",
		Description: "Check whether a word is in the dictionary. Uppercase letters are lowered first.",
	}, s.lookup)
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "spell_suggest",
		Description: "Rank dictionary words by edit distance to a word. Candidates that sound alike are flagged.",
	}, s.suggest)
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcpsdk.StdioTransport{})
}

// Serve serves MCP over t. Cancellation of ctx is not an error.
func (s *Server) Serve(ctx context.Context, t mcpsdk.Transport) error {
	slog.Info("mcp server started", "tools", 2)
	err := s.mcpServer.Run(ctx, t)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mcp: serve: %w", err)
	}
	return nil
}

func (s *Server) lookup(_ context.Context, _ *mcpsdk.CallToolRequest, in LookupInput) (*mcpsdk.CallToolResult, LookupResult, error) {
	word, err := s.normalize(in.Word)
	if err != nil {
		return nil, LookupResult{}, err
	}
	return nil, LookupResult{Word: in.Word, Normalized: word, Found: s.lex.Lookup(word)}, nil
}

func (s *Server) suggest(_ context.Context, _ *mcpsdk.CallToolRequest, in SuggestInput) (*mcpsdk.CallToolResult, SuggestResult, error) {
	if in.Limit < 0 {
		return nil, SuggestResult{}, fmt.Errorf("mcp: limit must not be negative, got %d", in.Limit)
	}
	word, err := s.normalize(in.Word)
	if err != nil {
		return nil, SuggestResult{}, err
	}

	list := s.ranker.Rank(word, s.lex.Words())
	cands := list.Candidates()
	if in.Limit > 0 && in.Limit < len(cands) {
		cands = cands[:in.Limit]
	}

	primary, secondary := matchr.DoubleMetaphone(word)
	out := SuggestResult{
		Word:       word,
		Found:      s.lex.Lookup(word),
		Candidates: make([]Suggestion, len(cands)),
	}
	for i, c := range cands {
		out.Candidates[i] = Suggestion{
			Word:       c.Word,
			Distance:   c.Distance,
			SoundsLike: soundsLike(primary, secondary, c.Word),
		}
	}
	return nil, out, nil
}

// normalize applies the line protocol's validation to a single word.
func (s *Server) normalize(raw string) (string, error) {
	in, err := protocol.ParseInput(raw, s.maxInput)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	if len(strings.Fields(in.Normalized)) != 1 {
		return "", fmt.Errorf("mcp: expected a single word, got %q", raw)
	}
	return in.Normalized, nil
}

// soundsLike reports whether word shares a non-empty Double Metaphone code
// with the token codes p and s.
func soundsLike(p, s, word string) bool {
	wp, ws := matchr.DoubleMetaphone(word)
	for _, a := range []string{p, s} {
		if a == "" {
			continue
		}
		if a == wp || a == ws {
			return true
		}
	}
	return false
}
