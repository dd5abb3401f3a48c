package document

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

// IDMarker opens a new document; it is followed by the document id.
const IDMarker = ".I"

type field byte

const (
	fieldNone    field = 0
	fieldTitle   field = 'T'
	fieldBody    field = 'W'
	fieldDate    field = 'B'
	fieldAuthors field = 'A'
	fieldN       field = 'N'
	fieldX       field = 'X'
)

var sectionMarkers = map[string]field{
	".T": fieldTitle,
	".W": fieldBody,
	".B": fieldDate,
	".A": fieldAuthors,
	".N": fieldN,
	".X": fieldX,
}

const maxLineSize = 4 * 1024 * 1024

// builder accumulates the lines of the document currently open.
type builder struct {
	open    bool
	id      ID
	current field
	lines   map[field][]string
}

func (b *builder) reset(id ID) {
	b.open = true
	b.id = id
	b.current = fieldNone
	b.lines = make(map[field][]string, 6)
}

func (b *builder) append(line string) {
	if b.current == fieldNone {
		return
	}
	b.lines[b.current] = append(b.lines[b.current], line)
}

func (b *builder) build() Document {
	authors := make([]string, 0, len(b.lines[fieldAuthors]))
	for _, a := range b.lines[fieldAuthors] {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return Document{
		ID:              b.id,
		Title:           joinField(b.lines[fieldTitle]),
		Body:            joinField(b.lines[fieldBody]),
		PublicationDate: joinField(b.lines[fieldDate]),
		Authors:         authors,
		N:               cloneLines(b.lines[fieldN]),
		X:               cloneLines(b.lines[fieldX]),
	}
}

func joinField(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, " "))
}

func cloneLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Parser turns a tagged line stream into documents.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{
		logger: slog.Default().With("component", "document-parser"),
	}
}

// ParseFile opens path and parses it. A missing path yields ErrInputNotFound.
func (p *Parser) ParseFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()
	p.logger.Info("reading documents", "path", path)
	return p.Parse(f)
}

// Parse reads r to the end and returns the documents in input order. Lines
// before the first identifier marker are ignored. Duplicate ids are emitted
// as they appear.
func (p *Parser) Parse(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		docs    []Document
		current builder
		lineNo  int
	)
	flush := func() {
		if !current.open {
			return
		}
		docs = append(docs, current.build())
		current.open = false
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		line = strings.ReplaceAll(line, "\t", " ")

		if line == "" {
			if current.open {
				current.append("")
			}
			continue
		}

		if isIDMarker(line) {
			flush()
			id, err := parseID(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.reset(id)
			continue
		}

		if f, ok := sectionMarkers[strings.TrimRight(line, " ")]; ok {
			if current.open {
				current.current = f
			}
			continue
		}

		if current.open {
			current.append(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document stream: %w", err)
	}
	flush()

	if len(docs) == 0 {
		return nil, apperrors.ErrEmptyCollection
	}
	p.logger.Debug("documents parsed", "count", len(docs), "lines", lineNo)
	return docs, nil
}

func isIDMarker(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && fields[0] == IDMarker
}

func parseID(line string) (ID, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: missing id in %q", apperrors.ErrMalformedIdentifier, line)
	}
	n, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a document id", apperrors.ErrMalformedIdentifier, fields[1])
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: document id must be positive", apperrors.ErrMalformedIdentifier)
	}
	return ID(n), nil
}
