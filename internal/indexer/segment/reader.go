package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

// Load reads and validates the artifacts at dictPath and postingsPath. A
// missing file is ErrInputNotFound; anything structurally wrong is
// ErrSerializationMismatch.
func Load(dictPath, postingsPath string) (*Snapshot, error) {
	dict, err := readArtifact(dictPath)
	if err != nil {
		return nil, err
	}
	postings, err := readArtifact(postingsPath)
	if err != nil {
		return nil, err
	}
	s, err := Unmarshal(dict, postings)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	slog.Default().With("component", "segment-reader").Info("snapshot loaded",
		"build_id", s.BuildID,
		"terms", len(s.Dictionary),
		"documents", s.Collection.Len(),
		"positions", s.TrackPositions,
	)
	return s, nil
}

// ReadHeader returns the header of the artifact at path without reading the
// payload.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, openError(path, err)
	}
	defer f.Close()
	b := make([]byte, HeaderSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		return Header{}, mismatch("reading header of %s: %v", path, err)
	}
	h := decodeHeader(b)
	if h.Magic != MagicBytes {
		return Header{}, mismatch("%s: bad magic bytes %x", path, h.Magic)
	}
	return h, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	return data, nil
}

func openError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", apperrors.ErrInputNotFound, path)
	}
	return fmt.Errorf("opening %s: %w", path, err)
}
