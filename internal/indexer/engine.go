// Package indexer turns a parsed document collection into a sealed
// positional inverted index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/tracing"
)

// DuplicatePolicy decides what a build does when two documents share an id.
type DuplicatePolicy int

const (
	// DuplicatesMerge folds both documents' postings under the shared id.
	DuplicatesMerge DuplicatePolicy = iota
	// DuplicatesReject fails the build.
	DuplicatesReject
)

// ParseDuplicatePolicy maps "merge" (or "") and "reject" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "merge":
		return DuplicatesMerge, nil
	case "reject":
		return DuplicatesReject, nil
	}
	return 0, fmt.Errorf("%w: duplicate id policy %q", apperrors.ErrInvalidInput, s)
}

func (p DuplicatePolicy) String() string {
	if p == DuplicatesReject {
		return "reject"
	}
	return "merge"
}

// Options configures a build.
type Options struct {
	Analyzer       *tokenizer.Analyzer
	TrackPositions bool
	// Workers bounds the analysis fan-out; zero uses GOMAXPROCS.
	Workers    int
	Duplicates DuplicatePolicy
}

// Stats summarizes a finished build.
type Stats struct {
	Documents  int
	Distinct   int
	Duplicates int
	// Empty counts documents whose body holds no text.
	Empty      int
	Terms      int
	TokenSlots int
	Elapsed    time.Duration
	Phases     map[string]time.Duration
}

// Result is everything a build produces. Index is sealed.
type Result struct {
	Index          *index.TermIndex
	Dictionary     index.Dictionary
	Collection     *document.Collection
	Analyzer       tokenizer.Settings
	TrackPositions bool
	Stats          Stats
}

// Engine runs builds.
type Engine struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Analyzer == nil {
		a, err := tokenizer.NewAnalyzer(tokenizer.Settings{})
		if err != nil {
			return nil, err
		}
		opts.Analyzer = a
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "indexer"),
	}, nil
}

// WithMetrics makes the engine report to m.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

type analyzedDoc struct {
	occurrences []tokenizer.Occurrence
	slots       int
}

// Build indexes docs in order. Analysis of each document is independent and
// runs on up to Workers goroutines; recording into the term index happens on
// the calling goroutine in document order so every position list stays
// ascending.
func (e *Engine) Build(ctx context.Context, docs []document.Document) (*Result, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "index.build", "")
	defer func() {
		root.End()
		root.Log(e.logger)
	}()

	if len(docs) == 0 {
		return nil, apperrors.ErrEmptyCollection
	}

	collection := document.NewCollection(nil)
	empty := 0
	_, collectSpan := tracing.StartChildSpan(ctx, "collect")
	for _, d := range docs {
		if d.IsEmpty() {
			empty++
		}
		if !collection.Add(d) && e.opts.Duplicates == DuplicatesReject {
			collectSpan.End()
			return nil, fmt.Errorf("%w: id %d", apperrors.ErrDuplicateDocument, d.ID)
		}
	}
	collectSpan.End()
	if empty > 0 {
		e.logger.Warn("documents without body text", "count", empty)
	}
	if collection.Duplicates() > 0 {
		e.logger.Warn("duplicate document ids merged",
			"duplicates", collection.Duplicates(),
		)
	}

	analyzed, err := e.analyze(ctx, docs)
	if err != nil {
		return nil, err
	}

	_, reduceSpan := tracing.StartChildSpan(ctx, "reduce")
	idx := index.NewTermIndex()
	slots := 0
	// A repeated id continues the token stream of its earlier documents.
	offsets := make(map[document.ID]int, collection.Distinct())
	for i, d := range docs {
		base := offsets[d.ID]
		for _, o := range analyzed[i].occurrences {
			if e.opts.TrackPositions {
				err = idx.Record(o.Term, d.ID, base+o.Position)
			} else {
				err = idx.RecordCount(o.Term, d.ID)
			}
			if err != nil {
				reduceSpan.End()
				return nil, fmt.Errorf("indexing document %d: %w", d.ID, err)
			}
		}
		slots += analyzed[i].slots
		offsets[d.ID] = base + analyzed[i].slots
	}
	dict := idx.Finalize()
	reduceSpan.SetAttr("terms", idx.Len())
	reduceSpan.End()

	root.SetAttr("documents", len(docs))
	root.SetAttr("terms", idx.Len())

	stats := Stats{
		Documents:  len(docs),
		Distinct:   collection.Distinct(),
		Duplicates: collection.Duplicates(),
		Empty:      empty,
		Terms:      idx.Len(),
		TokenSlots: slots,
		Elapsed:    time.Since(start),
		Phases:     root.Phases(),
	}
	e.report(stats)

	e.logger.Info("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"token_slots", stats.TokenSlots,
		"positions", e.opts.TrackPositions,
		"elapsed", stats.Elapsed,
	)
	return &Result{
		Index:          idx,
		Dictionary:     dict,
		Collection:     collection,
		Analyzer:       e.opts.Analyzer.Settings(),
		TrackPositions: e.opts.TrackPositions,
		Stats:          stats,
	}, nil
}

func (e *Engine) analyze(ctx context.Context, docs []document.Document) ([]analyzedDoc, error) {
	ctx, span := tracing.StartChildSpan(ctx, "analyze")
	defer span.End()

	out := make([]analyzedDoc, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			occ, slots := e.opts.Analyzer.Analyze(docs[i].Body)
			out[i] = analyzedDoc{occurrences: occ, slots: slots}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing documents: %w", err)
	}
	span.SetAttr("workers", e.opts.Workers)
	return out, nil
}

func (e *Engine) report(s Stats) {
	if e.metrics == nil {
		return
	}
	e.metrics.DocsIndexedTotal.Add(float64(s.Documents))
	e.metrics.TermsIndexed.Set(float64(s.Terms))
	for phase, d := range s.Phases {
		e.metrics.BuildDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// DocumentTerms returns the sorted analyzed terms of one document, with
// repeats. It backs the debug dump.
func (e *Engine) DocumentTerms(d document.Document) []string {
	occ, _ := e.opts.Analyzer.Analyze(d.Body)
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.Term
	}
	slices.Sort(out)
	return out
}
