package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
)

// LineReader supplies input lines. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Options tunes a session.
type Options struct {
	TermPrompt     string
	DocumentPrompt string
	SummaryRadius  int
	Metrics        *metrics.Metrics
}

// Session holds the state of one interactive run. It is not safe for
// concurrent use.
type Session struct {
	engine  *query.Engine
	out     io.Writer
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	pending string
	timings []time.Duration
}

func New(engine *query.Engine, out io.Writer, opts Options) *Session {
	if opts.TermPrompt == "" {
		opts.TermPrompt = "term> "
	}
	if opts.DocumentPrompt == "" {
		opts.DocumentPrompt = "document id (enter to skip)> "
	}
	if opts.SummaryRadius <= 0 {
		opts.SummaryRadius = 5
	}
	return &Session{
		engine: engine,
		out:    out,
		opts:   opts,
		logger: slog.Default().With("component", "session"),
		now:    time.Now,
	}
}

// Prompt returns the prompt for the current state.
func (s *Session) Prompt() string {
	if s.pending != "" {
		return s.opts.DocumentPrompt
	}
	return s.opts.TermPrompt
}

// Step handles one input line and reports whether the session is over.
func (s *Session) Step(line string) bool {
	start := s.now()
	var (
		cmd Command
		err error
	)
	if s.pending != "" {
		cmd, err = ParseDocID(line, s.pending)
	} else {
		cmd = ParseTerm(line)
	}
	if err != nil {
		s.report(err)
		return false
	}

	switch cmd.Kind {
	case Quit:
		return true
	case Skip:
		s.pending = ""
	case Lookup:
		s.lookup(cmd.Term, start)
	case ShowContext:
		s.showContext(cmd)
	}
	return false
}

func (s *Session) lookup(input string, start time.Time) {
	res, err := s.engine.Search(input)
	if err != nil {
		s.count("miss")
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Term: %s\n", res.Term)
	fmt.Fprintf(s.out, "Document frequency: %d\n", res.DocumentFrequency)
	fmt.Fprintf(s.out, "Total frequency: %d\n", res.Frequency)
	for _, hit := range res.Hits {
		fmt.Fprintf(s.out, "  doc %d  tf=%d  %s\n", hit.DocID, hit.Frequency, hit.Title)
	}
	elapsed := s.now().Sub(start)
	s.timings = append(s.timings, elapsed)
	s.count("hit")
	if s.opts.Metrics != nil {
		s.opts.Metrics.LookupLatency.WithLabelValues("none").Observe(elapsed.Seconds())
	}
	fmt.Fprintf(s.out, "Lookup time: %.6f seconds\n", elapsed.Seconds())
	s.pending = res.Term
}

func (s *Session) showContext(cmd Command) {
	p, err := s.engine.TermInDocument(cmd.Term, cmd.DocID)
	if err != nil {
		s.report(err)
		return
	}
	doc, _ := s.engine.Document(cmd.DocID)
	fmt.Fprintf(s.out, "Document %d: %s\n", doc.ID, doc.Title)
	fmt.Fprintf(s.out, "Term frequency: %d\n", p.Frequency)
	if p.Positional() {
		fmt.Fprintf(s.out, "Positions: %s\n", joinInts(p.Positions))
	}
	w, err := s.engine.Summary(cmd.Term, cmd.DocID, s.opts.SummaryRadius)
	if err != nil {
		s.report(err)
	} else {
		fmt.Fprintf(s.out, "Summary: %s\n", w)
	}
	s.pending = ""
}

func (s *Session) report(err error) {
	var ue *UserError
	switch {
	case errors.As(err, &ue):
		fmt.Fprintf(s.out, "%s\n", ue.Error())
	case errors.Is(err, apperrors.ErrTermNotFound):
		fmt.Fprintf(s.out, "Term not found: %s\n", strings.TrimPrefix(err.Error(), apperrors.ErrTermNotFound.Error()+": "))
	case apperrors.Recoverable(err):
		fmt.Fprintf(s.out, "%v\n", err)
	default:
		s.logger.Error("query failed", "error", err)
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func (s *Session) count(result string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.LookupsTotal.WithLabelValues(result).Inc()
	}
}

// AverageLookup returns the mean time of successful lookups and how many
// there were.
func (s *Session) AverageLookup() (time.Duration, int) {
	if len(s.timings) == 0 {
		return 0, 0
	}
	var total time.Duration
	for _, d := range s.timings {
		total += d
	}
	return total / time.Duration(len(s.timings)), len(s.timings)
}

// Run reads lines from r until the quit token, end of input or ctx ends,
// then prints the average lookup time.
func (s *Session) Run(ctx context.Context, r LineReader) error {
	defer s.summarize()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		r.SetPrompt(s.Prompt())
		line, err := r.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if s.pending != "" || strings.TrimSpace(line) != "" {
				s.pending = ""
				continue
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if s.Step(line) {
			return nil
		}
	}
}

func (s *Session) summarize() {
	avg, n := s.AverageLookup()
	if n == 0 {
		fmt.Fprintln(s.out, "No successful lookups.")
		return
	}
	fmt.Fprintf(s.out, "Average lookup time over %d lookups: %.6f seconds\n", n, avg.Seconds())
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " ")
}
