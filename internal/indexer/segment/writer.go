package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Default artifact names inside an output directory.
const (
	DictionaryFile = "dictionary.dat"
	PostingsFile   = "postings.dat"
)

// Paths locates a written snapshot.
type Paths struct {
	Dictionary     string
	Postings       string
	DictionarySize int64
	PostingsSize   int64
}

// Writer persists snapshots into one directory.
type Writer struct {
	dataDir     string
	compression Compression
	logger      *slog.Logger
}

// NewWriter creates a Writer that writes artifacts into dataDir.
func NewWriter(dataDir string, c Compression) *Writer {
	return &Writer{
		dataDir:     dataDir,
		compression: c,
		logger:      slog.Default().With("component", "segment-writer"),
	}
}

// Write encodes s and atomically replaces both artifacts. Each file is
// written to a .tmp sibling, synced and renamed; the postings file is
// renamed first so a reader never sees a new dictionary with old postings
// for longer than one rename.
func (w *Writer) Write(s *Snapshot) (Paths, error) {
	dict, postings, err := Marshal(s, w.compression)
	if err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory: %w", err)
	}
	paths := Paths{
		Dictionary:     filepath.Join(w.dataDir, DictionaryFile),
		Postings:       filepath.Join(w.dataDir, PostingsFile),
		DictionarySize: int64(len(dict)),
		PostingsSize:   int64(len(postings)),
	}
	if err := writeAtomic(paths.Postings, postings); err != nil {
		return Paths{}, err
	}
	if err := writeAtomic(paths.Dictionary, dict); err != nil {
		return Paths{}, err
	}
	w.logger.Info("snapshot written",
		"build_id", s.BuildID,
		"dictionary", paths.Dictionary,
		"postings", paths.Postings,
		"dictionary_bytes", paths.DictionarySize,
		"postings_bytes", paths.PostingsSize,
		"compression", w.compression,
	)
	return paths, nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
