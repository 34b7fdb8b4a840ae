// Package session drives one client conversation from greeting to
// transcript.
//
// A [Coordinator] walks every connection through the same states:
//
//	AwaitInput → Validate → Tokenize → EvaluateEach → Respond → Closed
//
// Any state may jump straight to Closed: a rejected line gets a single
// "ERROR: " reply and the connection is closed, and an I/O failure closes it
// silently. Per-token ranking runs in parallel; the accept/decline exchange
// with the client runs strictly in token order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/spellbook/internal/observe"
	"github.com/MrWong99/spellbook/internal/protocol"
	"github.com/MrWong99/spellbook/internal/spell"
)

// Default limits applied when the corresponding [Config] field is zero.
const (
	DefaultMaxInputLength  = 100
	DefaultMaxOutputLength = 200
)

// State is a step of the session lifecycle.
type State int

const (
	AwaitInput State = iota
	Validate
	Tokenize
	EvaluateEach
	Respond
	Closed
)

// String returns the log label of s.
func (s State) String() string {
	switch s {
	case AwaitInput:
		return "await_input"
	case Validate:
		return "validate"
	case Tokenize:
		return "tokenize"
	case EvaluateEach:
		return "evaluate_each"
	case Respond:
		return "respond"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transcript is the record of one finished session.
type Transcript struct {
	Remote string

	// Raw is the input line as received, or empty when none arrived.
	Raw string

	Tokens   []protocol.Token
	Outcomes []spell.Outcome

	// Output is the content of the OUTPUT line, after truncation.
	Output string

	// Rejection is set when the input line failed validation.
	Rejection *protocol.ValidationError

	// Stopped is the last state entered before Closed.
	Stopped State

	// State is Closed once Run returns.
	State State
}

// Completed reports whether the session reached the transcript reply.
func (t *Transcript) Completed() bool { return t.Stopped == Respond && t.Rejection == nil }

// Config configures a [Coordinator].
type Config struct {
	// Evaluator resolves tokens. Required.
	Evaluator *spell.Evaluator

	// MaxInputLength bounds the input line. Defaults to 100 if zero.
	MaxInputLength int

	// MaxOutputLength truncates the OUTPUT line. Defaults to 200 if zero.
	MaxOutputLength int

	// Parallelism caps concurrent ranking goroutines per session. Zero or
	// negative means one goroutine per token.
	Parallelism int

	// Metrics receives validation counters. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Coordinator runs sessions. It holds no per-session state and is safe for
// concurrent use by any number of connections.
type Coordinator struct {
	eval        *spell.Evaluator
	maxInput    int
	maxOutput   int
	parallelism int
	metrics     *observe.Metrics
}

// New returns a Coordinator for cfg.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		eval:        cfg.Evaluator,
		maxInput:    cfg.MaxInputLength,
		maxOutput:   cfg.MaxOutputLength,
		parallelism: cfg.Parallelism,
		metrics:     cfg.Metrics,
	}
	if c.maxInput <= 0 {
		c.maxInput = DefaultMaxInputLength
	}
	if c.maxOutput <= 0 {
		c.maxOutput = DefaultMaxOutputLength
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// MaxInputLength returns the effective input bound. Transports size their
// line buffers from it.
func (c *Coordinator) MaxInputLength() int { return c.maxInput }

// Run drives conn through one full session and closes it. The returned
// transcript is never nil. A rejected input line is not an error; a
// non-nil error reports a transport failure, which the caller should log.
// A client that disconnects before sending a line yields neither.
func (c *Coordinator) Run(ctx context.Context, conn protocol.Conn) (*Transcript, error) {
	tr := &Transcript{Remote: conn.RemoteAddr()}

	ctx, span := observe.StartSession(ctx, tr.Remote)

	log := observe.Logger(ctx).With("remote", tr.Remote)
	start := time.Now()

	err := c.run(ctx, conn, tr, log)

	tr.State = Closed
	if cerr := conn.Close(); cerr != nil {
		log.Debug("close connection", "err", cerr)
	}

	observe.EndSession(span, tr.Stopped.String(), len(tr.Tokens), err)
	log.Debug("session closed",
		"stopped", tr.Stopped.String(),
		"tokens", len(tr.Tokens),
		"duration", time.Since(start),
	)
	return tr, err
}

func (c *Coordinator) run(ctx context.Context, conn protocol.Conn, tr *Transcript, log *slog.Logger) error {
	// AwaitInput
	tr.Stopped = AwaitInput
	if err := conn.Send(ctx, protocol.Greeting); err != nil {
		return fmt.Errorf("session: send greeting: %w", err)
	}
	line, err := conn.ReceiveLine(ctx)
	switch {
	case errors.Is(err, protocol.ErrLineTooLong):
		return c.reject(ctx, conn, tr, log, &protocol.ValidationError{
			Kind:  protocol.KindTooLong,
			Limit: c.maxInput,
		})
	case errors.Is(err, io.EOF):
		log.Debug("client left before sending input")
		return nil
	case err != nil:
		return fmt.Errorf("session: receive input: %w", err)
	}
	tr.Raw = line

	// Validate
	tr.Stopped = Validate
	in, err := protocol.ParseInput(line, c.maxInput)
	if in.HadUppercase {
		if err := conn.Send(ctx, protocol.InfoLine(protocol.UppercaseNotice)); err != nil {
			return fmt.Errorf("session: send notice: %w", err)
		}
	}
	if err != nil {
		var ve *protocol.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("session: validate: %w", err)
		}
		return c.reject(ctx, conn, tr, log, ve)
	}

	// Tokenize
	tr.Stopped = Tokenize
	tr.Tokens = protocol.Tokenize(in.Normalized)

	// EvaluateEach
	tr.Stopped = EvaluateEach
	evals, err := c.evaluateAll(ctx, tr.Tokens)
	if err != nil {
		return err
	}
	words := make([]string, 0, len(evals))
	for _, ev := range evals {
		out, err := c.eval.Resolve(ctx, conn, ev)
		if err != nil {
			return fmt.Errorf("session: resolve word %d: %w", ev.Token.Index, err)
		}
		tr.Outcomes = append(tr.Outcomes, out)
		words = append(words, out.Replacement())
	}

	// Respond
	tr.Stopped = Respond
	tr.Output = protocol.OutputText(words, c.maxOutput)
	if err := conn.Send(ctx, protocol.TranscriptLines(tr.Raw, words, c.maxOutput)); err != nil {
		return fmt.Errorf("session: send transcript: %w", err)
	}
	log.Info("session completed", "tokens", len(tr.Tokens), "output", tr.Output)
	return nil
}

// evaluateAll ranks every token concurrently. Each goroutine writes only its
// own slot of the result slice.
func (c *Coordinator) evaluateAll(ctx context.Context, tokens []protocol.Token) ([]spell.Evaluation, error) {
	evals := make([]spell.Evaluation, len(tokens))

	eg, egCtx := errgroup.WithContext(ctx)
	if c.parallelism > 0 {
		eg.SetLimit(c.parallelism)
	}
	for i, tok := range tokens {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			evals[i] = c.eval.Evaluate(egCtx, tok)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("session: evaluate: %w", err)
	}
	return evals, nil
}

// reject sends the client message of ve and records the failure.
func (c *Coordinator) reject(ctx context.Context, conn protocol.Conn, tr *Transcript, log *slog.Logger, ve *protocol.ValidationError) error {
	tr.Rejection = ve
	c.metrics.RecordValidationFailure(ctx, string(ve.Kind))
	log.Info("input rejected", "kind", ve.Kind, "err", ve)
	if err := conn.Send(ctx, protocol.ErrorLine(ve.ClientMessage())); err != nil {
		return fmt.Errorf("session: send error: %w", err)
	}
	return nil
}
