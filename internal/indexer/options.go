package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
)

// OptionsFromConfig builds the analyzer and build options described by cfg.
//
// With stop-word removal on and no file configured, the built-in English list
// is used. A configured file that does not exist is logged and the build
// proceeds without stop-words; any other read failure is returned.
func OptionsFromConfig(cfg config.IndexerConfig, logger *slog.Logger) (Options, error) {
	policy, err := tokenizer.ParseDigitPolicy(cfg.DigitPolicy)
	if err != nil {
		return Options{}, err
	}
	normalizer := tokenizer.Normalizer{Digits: policy}

	settings := tokenizer.Settings{DigitPolicy: policy.String()}
	if cfg.Stemming {
		settings.Stemmer = cfg.Stemmer
		if settings.Stemmer == "" {
			settings.Stemmer = "snowball"
		}
	}
	if cfg.RemoveStopwords {
		set, err := loadStopwords(cfg.StopwordsFile, normalizer, logger)
		if err != nil {
			return Options{}, err
		}
		settings.Stopwords = set.Words()
	}

	analyzer, err := tokenizer.NewAnalyzer(settings)
	if err != nil {
		return Options{}, err
	}
	dupes, err := ParseDuplicatePolicy(cfg.DuplicateIDs)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Analyzer:       analyzer,
		TrackPositions: cfg.TrackPositions,
		Workers:        cfg.Workers,
		Duplicates:     dupes,
	}, nil
}

func loadStopwords(path string, n tokenizer.Normalizer, logger *slog.Logger) (tokenizer.StopwordSet, error) {
	if path == "" {
		return tokenizer.DefaultStopwords(n), nil
	}
	set, err := tokenizer.LoadStopwords(path, n)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("stopword file not found, indexing without stopwords", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading stopwords: %w", err)
	}
	logger.Info("stopwords loaded", "path", path, "count", len(set))
	return set, nil
}
