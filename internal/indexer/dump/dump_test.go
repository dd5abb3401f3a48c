package dump

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
)

func sampleIndex(t *testing.T) *index.TermIndex {
	t.Helper()
	x := index.NewTermIndex()
	require.NoError(t, x.Record("b", 1, 1))
	require.NoError(t, x.Record("a", 1, 0))
	require.NoError(t, x.Record("a", 1, 2))
	require.NoError(t, x.Record("a", 7, 12))
	x.Finalize()
	return x
}

func TestWriteDictionary(t *testing.T) {
	x := sampleIndex(t)
	var buf bytes.Buffer
	require.NoError(t, WriteDictionary(&buf, x.Dictionary()))
	assert.Equal(t, "a: 2\nb: 1\n", buf.String())
}

func TestWritePostings(t *testing.T) {
	x := sampleIndex(t)
	var buf bytes.Buffer
	require.NoError(t, WritePostings(&buf, x))
	assert.Equal(t, "a freq=3 df=2 | 1:2[0 2] 7:1[12]\nb freq=1 df=1 | 1:1[1]\n", buf.String())
}

func TestFormatCountOnlyPosting(t *testing.T) {
	assert.Equal(t, "4:3", FormatPosting(index.Posting{DocID: 4, Frequency: 3}))
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	x := sampleIndex(t)
	require.NoError(t, WriteFiles(dir, x.Dictionary(), x))

	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "a: 2\nb: 1\n", string(data))
	assert.FileExists(t, filepath.Join(dir, PostingsFile))
}

func TestWriteDebug(t *testing.T) {
	docs := []document.Document{{ID: 9, Title: "T", Body: "Beta alpha"}}
	path := filepath.Join(t.TempDir(), "debug", DebugFile)
	require.NoError(t, WriteDebugFile(path, docs, func(d document.Document) []string {
		return strings.Fields(strings.ToLower(d.Body))
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Document ID: 9\nTitle: T\nText: Beta alpha\nWords: 2\nTerms: beta alpha\n\n", string(data))
}
