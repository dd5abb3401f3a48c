// Package dump writes human-readable views of a built index: the dictionary
// as "term: df" lines, every postings list on one line, and an optional
// per-document listing of analyzed terms for debugging.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
)

const (
	IndexFile    = "index.txt"
	PostingsFile = "postings.txt"
	DebugFile    = "docs_terms_debug.txt"
)

// WriteDictionary writes one "term: df" line per dictionary entry.
func WriteDictionary(w io.Writer, dict index.Dictionary) error {
	bw := bufio.NewWriter(w)
	for _, e := range dict {
		bw.WriteString(e.Term)
		bw.WriteString(": ")
		bw.WriteString(strconv.Itoa(e.DocFreq))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// WritePostings writes one line per term in dictionary order:
//
//	term freq=3 df=2 | 1:2[0 4] 7:1[12]
//
// Count-only postings omit the bracketed positions.
func WritePostings(w io.Writer, idx *index.TermIndex) error {
	bw := bufio.NewWriter(w)
	for text, term := range idx.All() {
		fmt.Fprintf(bw, "%s freq=%d df=%d |", text, term.Frequency(), term.DocumentFrequency())
		for p := range term.Postings().All() {
			bw.WriteByte(' ')
			bw.WriteString(FormatPosting(p))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// FormatPosting renders p as "doc:tf" or "doc:tf[p1 p2 ...]".
func FormatPosting(p index.Posting) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(p.DocID), 10))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(p.Frequency))
	if p.Positional() {
		sb.WriteByte('[')
		for i, pos := range p.Positions {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.Itoa(pos))
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

// TermsFunc returns the analyzed terms of one document.
type TermsFunc func(document.Document) []string

// WriteDebug writes each document's id, title, body, word count and sorted
// terms.
func WriteDebug(w io.Writer, docs []document.Document, terms TermsFunc) error {
	bw := bufio.NewWriter(w)
	for _, d := range docs {
		fmt.Fprintf(bw, "Document ID: %d\nTitle: %s\nText: %s\nWords: %d\nTerms: %s\n\n",
			d.ID, d.Title, d.Body, d.WordCount(), strings.Join(terms(d), " "))
	}
	return bw.Flush()
}

// WriteFiles writes index.txt and postings.txt into dir.
func WriteFiles(dir string, dict index.Dictionary, idx *index.TermIndex) error {
	if err := writeFile(filepath.Join(dir, IndexFile), func(w io.Writer) error {
		return WriteDictionary(w, dict)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, PostingsFile), func(w io.Writer) error {
		return WritePostings(w, idx)
	})
}

// WriteDebugFile writes the per-document debug listing to path.
func WriteDebugFile(path string, docs []document.Document, terms TermsFunc) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteDebug(w, docs, terms)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
