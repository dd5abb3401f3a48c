// Command query loads a snapshot written by invert and answers term lookups
// interactively until ZZEND or end of input.
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

	"github.com/chzyer/readline"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/session"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/logger"
)

type cliArgs struct {
	configPath   string
	dictPath     string
	postingsPath string
	radius       int
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(2)
	}
	cfg, err := config.Load(args.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if args.radius >= 0 {
		cfg.Query.SummaryRadius = args.radius
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	engine, err := open(args, os.Stdout)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              cfg.Query.Prompt,
		HistoryFile:         cfg.Query.HistoryFile,
		InterruptPrompt:     "^C",
		EOFPrompt:           session.QuitToken,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		slog.Error("failed to open terminal", "error", err)
		os.Exit(1)
	}
	defer rl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	s := session.New(engine, rl.Stdout(), session.Options{
		TermPrompt:    cfg.Query.Prompt,
		SummaryRadius: cfg.Query.SummaryRadius,
	})
	if err := s.Run(ctx, rl); err != nil {
		slog.Error("session ended with error", "error", err)
		os.Exit(1)
	}
}

// filterInput blocks Ctrl-Z so the session cannot be suspended mid-line.
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// parseArgs accepts -dict and -postings, or -i followed by both paths as
// positional arguments. A lone -dir names a directory holding both.
func parseArgs(argv []string) (cliArgs, error) {
	var (
		a   cliArgs
		dir string
		in  bool
	)
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.StringVar(&a.configPath, "config", "", "path to config file")
	fs.StringVar(&a.dictPath, "dict", "", "dictionary artifact")
	fs.StringVar(&a.postingsPath, "postings", "", "postings artifact")
	fs.StringVar(&dir, "dir", "", "directory holding both artifacts")
	fs.BoolVar(&in, "i", false, "read DICT and POSTINGS from the arguments")
	fs.IntVar(&a.radius, "radius", -1, "summary radius (overrides query.summaryRadius)")
	if err := fs.Parse(argv); err != nil {
		return a, err
	}
	switch {
	case in:
		if fs.NArg() != 2 {
			return a, errors.New("-i takes exactly two paths: DICT POSTINGS")
		}
		a.dictPath, a.postingsPath = fs.Arg(0), fs.Arg(1)
	case dir != "":
		a.dictPath = filepath.Join(dir, segment.DictionaryFile)
		a.postingsPath = filepath.Join(dir, segment.PostingsFile)
	}
	if a.dictPath == "" || a.postingsPath == "" {
		return a, errors.New("both the dictionary and the postings path are required")
	}
	return a, nil
}

func open(a cliArgs, out io.Writer) (*query.Engine, error) {
	fmt.Fprintf(out, "Dictionary file: %s\n", a.dictPath)
	fmt.Fprintf(out, "Postings file: %s\n", a.postingsPath)
	snap, err := segment.Load(a.dictPath, a.postingsPath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Loaded %d terms from postings.\n", len(snap.Dictionary))
	return query.New(snap)
}
