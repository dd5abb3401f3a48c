// Command invert builds a positional inverted index from a tagged document
// collection and writes the dictionary and postings artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/dump"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/export"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/resilience"
)

type cliArgs struct {
	configPath    string
	input         string
	output        string
	stopwords     bool
	stopwordsFile string
	stemming      bool
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invert: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(args.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	args.apply(cfg)

	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	if err := run(ctx, cfg, args.input, os.Stdout, m); err != nil {
		slog.Error("indexing failed", "input", args.input, "error", err)
		os.Exit(1)
	}
}

func parseArgs(argv []string) (cliArgs, error) {
	var a cliArgs
	fs := flag.NewFlagSet("invert", flag.ContinueOnError)
	fs.StringVar(&a.configPath, "config", "", "path to config file")
	fs.StringVar(&a.input, "input", "", "path to the document collection")
	fs.StringVar(&a.input, "i", "", "shorthand for -input")
	fs.StringVar(&a.output, "output", "", "output directory (overrides indexer.outputDir)")
	fs.StringVar(&a.output, "o", "", "shorthand for -output")
	fs.BoolVar(&a.stopwords, "stopwords", false, "remove stopwords")
	fs.StringVar(&a.stopwordsFile, "stopwords-file", "", "stopword list, one word per line")
	fs.BoolVar(&a.stemming, "stemming", false, "stem terms")
	if err := fs.Parse(argv); err != nil {
		return a, err
	}
	if a.input == "" {
		return a, errors.New("-input is required")
	}
	if fs.NArg() > 0 {
		return a, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return a, nil
}

// apply lets command-line flags win over the config file.
func (a cliArgs) apply(cfg *config.Config) {
	if a.output != "" {
		cfg.Indexer.OutputDir = a.output
	}
	if a.stopwords {
		cfg.Indexer.RemoveStopwords = true
	}
	if a.stopwordsFile != "" {
		cfg.Indexer.StopwordsFile = a.stopwordsFile
	}
	if a.stemming {
		cfg.Indexer.Stemming = true
	}
}

func run(ctx context.Context, cfg *config.Config, input string, out io.Writer, m *metrics.Metrics) error {
	start := time.Now()
	log := logger.WithComponent("invert")

	fmt.Fprintf(out, "Reading document(s) from %s\n", input)
	docs, err := document.NewParser().ParseFile(input)
	if err != nil {
		return err
	}

	opts, err := indexer.OptionsFromConfig(cfg.Indexer, log)
	if err != nil {
		return err
	}
	eng, err := indexer.NewEngine(opts)
	if err != nil {
		return err
	}
	eng.WithMetrics(m)
	res, err := eng.Build(ctx, docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Extracted %d unique terms.\n", res.Stats.Terms)
	fmt.Fprintf(out, "Extracted %d documents.\n", res.Stats.Documents)

	compression, err := segment.ParseCompression(cfg.Indexer.Compression)
	if err != nil {
		return err
	}
	snap := segment.NewSnapshot(res)
	paths, err := segment.NewWriter(cfg.Indexer.OutputDir, compression).Write(snap)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if m != nil {
		m.SnapshotBytes.WithLabelValues("dictionary").Set(float64(paths.DictionarySize))
		m.SnapshotBytes.WithLabelValues("postings").Set(float64(paths.PostingsSize))
	}

	if cfg.Indexer.WriteTextDumps {
		if err := dump.WriteFiles(cfg.Indexer.OutputDir, res.Dictionary, res.Index); err != nil {
			return fmt.Errorf("writing text dumps: %w", err)
		}
	}
	if cfg.Indexer.DebugDump {
		path := filepath.Join(cfg.Indexer.OutputDir, dump.DebugFile)
		if err := dump.WriteDebugFile(path, res.Collection.Documents(), eng.DocumentTerms); err != nil {
			return fmt.Errorf("writing debug dump: %w", err)
		}
	}

	if cfg.Export.Enabled {
		if err := exportSnapshot(ctx, cfg, snap); err != nil {
			return err
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		n := notify.New(producer, resilience.RetryConfig{MaxAttempts: 3})
		// The snapshot is already on disk; a searcher watching the
		// directory still picks it up.
		if err := n.IndexComplete(ctx, notify.NewEvent(snap, paths)); err != nil {
			log.Warn("searchers were not notified", "error", err)
		}
	}

	log.Info("snapshot written",
		"build_id", snap.BuildID,
		"dictionary", paths.Dictionary,
		"postings", paths.Postings,
		"compression", compression,
	)
	fmt.Fprintf(out, "Indexing completed in %.6f seconds.\n", time.Since(start).Seconds())
	return nil
}

func exportSnapshot(ctx context.Context, cfg *config.Config, snap *segment.Snapshot) error {
	exp, err := export.Open(ctx, cfg.Export, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("opening export database: %w", err)
	}
	defer exp.Close()
	if err := exp.Export(ctx, snap); err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}
	return nil
}
