// Package spell resolves individual tokens against the dictionary.
//
// Resolution has two phases. [Evaluator.Evaluate] is the compute phase: a
// lookup plus a ranking, a pure function of the token and the current
// dictionary snapshot that performs no connection I/O, so callers may run it
// for many tokens in parallel. [Evaluator.Resolve] is the decision phase: it
// talks to the client over a [protocol.Conn] and must run sequentially, one
// token at a time, in token order.
package spell

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/spellbook/internal/observe"
	"github.com/MrWong99/spellbook/internal/protocol"
	"github.com/MrWong99/spellbook/internal/rank"
)

// Lexicon is the dictionary as seen by the evaluator. Implementations must
// be safe for concurrent use. *dictionary.Store satisfies it.
type Lexicon interface {
	Lookup(word string) bool
	Insert(word string) (bool, error)
	Words() []string
}

// Kind is the disposition of one resolved token.
type Kind int

const (
	// ExactMatch means the token is a dictionary word.
	ExactMatch Kind = iota

	// AddedNew means the client approved adding the token.
	AddedNew

	// SubstitutedWith means the token is replaced by its best candidate
	// (or kept when there is none).
	SubstitutedWith
)

// String returns the metric/log label of k.
func (k Kind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case AddedNew:
		return "added"
	case SubstitutedWith:
		return "substituted"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the resolved disposition of one token.
type Outcome struct {
	Kind Kind

	// Word is the word that appears in the transcript for this token.
	Word string
}

// Replacement returns the transcript word.
func (o Outcome) Replacement() string { return o.Word }

// Evaluation is the compute-phase result for one token.
type Evaluation struct {
	Token   protocol.Token
	Matches rank.List

	// Exact reports whether the token was a dictionary hit when evaluated.
	Exact bool
}

// RequiresDecision reports whether the token needs the interactive
// accept/decline exchange.
func (e Evaluation) RequiresDecision() bool { return !e.Exact }

// Evaluator resolves tokens against a [Lexicon]. It is safe for concurrent
// use.
type Evaluator struct {
	lex     Lexicon
	ranker  *rank.Ranker
	metrics *observe.Metrics
}

// Option configures an [Evaluator].
type Option func(*Evaluator)

// WithMetrics records evaluation metrics to m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator returns an [Evaluator] ranking against lex with r.
func NewEvaluator(lex Lexicon, r *rank.Ranker, opts ...Option) *Evaluator {
	e := &Evaluator{lex: lex, ranker: r}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Evaluate runs the compute phase for tok: an exact lookup and a ranking
// over the current dictionary snapshot. The ranking is computed for exact
// hits too; the client is shown it either way.
func (e *Evaluator) Evaluate(ctx context.Context, tok protocol.Token) Evaluation {
	ctx, span := observe.StartEvaluate(ctx, tok.Index, tok.Text)

	exact := e.lex.Lookup(tok.Text)

	start := time.Now()
	matches := e.ranker.Rank(tok.Text, e.lex.Words())
	e.metrics.RankDuration.Record(ctx, time.Since(start).Seconds())

	observe.EndEvaluate(span, exact, matches.Len())

	return Evaluation{Token: tok, Matches: matches, Exact: exact}
}

// Resolve runs the decision phase for ev over conv.
//
// The lexicon is consulted again first, so a word added earlier in the same
// line (or by another connection) resolves as an exact match. For exact
// matches the block ends with "Correct word!". Otherwise the client is
// asked whether to add the token; an affirmative reply inserts it, any other
// reply, an empty read or a read error declines. A declined token is
// replaced by the best candidate, or kept when the list is empty. A failed
// insert is logged and treated as a decline.
//
// Only failures to send return an error; the caller should end the session.
func (e *Evaluator) Resolve(ctx context.Context, conv protocol.Conn, ev Evaluation) (Outcome, error) {
	exact := ev.Exact || e.lex.Lookup(ev.Token.Text)
	header := protocol.WordHeader(ev.Token, ev.Matches)

	if exact {
		if err := conv.Send(ctx, header+protocol.CorrectWord); err != nil {
			return Outcome{}, fmt.Errorf("spell: send match block: %w", err)
		}
		return e.record(ctx, Outcome{Kind: ExactMatch, Word: ev.Token.Text}), nil
	}

	if err := conv.Send(ctx, header+protocol.AddPrompt); err != nil {
		return Outcome{}, fmt.Errorf("spell: send add prompt: %w", err)
	}

	log := observe.Logger(ctx)
	reply, err := conv.ReceiveLine(ctx)
	if err != nil {
		log.Debug("no decision reply, treating as decline", "token", ev.Token.Text, "err", err)
		reply = ""
	}

	if protocol.IsAffirmative(reply) {
		_, err := e.lex.Insert(ev.Token.Text)
		if err == nil {
			return e.record(ctx, Outcome{Kind: AddedNew, Word: ev.Token.Text}), nil
		}
		log.Error("failed to add word to dictionary", "word", ev.Token.Text, "err", err)
	}

	return e.record(ctx, substitute(ev)), nil
}

// substitute picks the best candidate, falling back to the token itself.
func substitute(ev Evaluation) Outcome {
	if best, ok := ev.Matches.Best(); ok {
		return Outcome{Kind: SubstitutedWith, Word: best.Word}
	}
	return Outcome{Kind: SubstitutedWith, Word: ev.Token.Text}
}

func (e *Evaluator) record(ctx context.Context, o Outcome) Outcome {
	e.metrics.RecordToken(ctx, o.Kind.String())
	return o
}
