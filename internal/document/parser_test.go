package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

const sample = `.I 1
.T
Preliminary Report-International Algebraic Language
.B
CACM December, 1958
.A
Perlis, A. J.
Samelson,K.
.N
CA581203 JB March 22, 1978  8:28 PM
.X
100 5 1
123 5 1
.I 2
.T
Extraction of Roots by Repeated Subtractions for Digital Computers
.W
Extraction of roots
by repeated subtractions.

Second paragraph.
.B
CACM December, 1958
.A
Sugai, I.
`

func TestParseSample(t *testing.T) {
	docs, err := NewParser().Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, ID(1), first.ID)
	assert.Equal(t, "Preliminary Report-International Algebraic Language", first.Title)
	assert.Equal(t, "", first.Body)
	assert.Equal(t, "CACM December, 1958", first.PublicationDate)
	assert.Equal(t, []string{"Perlis, A. J.", "Samelson,K."}, first.Authors)
	assert.Equal(t, []string{"CA581203 JB March 22, 1978  8:28 PM"}, first.N)
	assert.Equal(t, []string{"100 5 1", "123 5 1"}, first.X)
	assert.True(t, first.IsEmpty())

	second := docs[1]
	assert.Equal(t, ID(2), second.ID)
	assert.Equal(t, "Extraction of roots by repeated subtractions.  Second paragraph.", second.Body)
	assert.Equal(t, []string{"Sugai, I."}, second.Authors)
	assert.Equal(t, 8, second.WordCount())
}

func TestParseFieldConcatenation(t *testing.T) {
	input := ".I 9\n.W\nalpha beta\ngamma\n.T\ntitle one\ntitle two\n"
	docs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "alpha beta gamma", docs[0].Body)
	assert.Equal(t, "title one title two", docs[0].Title)
}

func TestParseReplacesTabs(t *testing.T) {
	docs, err := NewParser().Parse(strings.NewReader(".I 8\n.X\n100\t5\t1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"100 5 1"}, docs[0].X)
}

func TestParseBlankLinesKeptInAuxFields(t *testing.T) {
	input := ".I 3\n.N\nfirst\n\nsecond\n"
	docs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "", "second"}, docs[0].N)
}

func TestParseIgnoresLinesOutsideFields(t *testing.T) {
	input := "stray preamble\n.T\norphan\n.I 4\nno field yet\n.W\nbody\n"
	docs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "", docs[0].Title)
	assert.Equal(t, "body", docs[0].Body)
}

func TestParseDuplicateIDsAreEmitted(t *testing.T) {
	input := ".I 5\n.W\none\n.I 5\n.W\ntwo\n"
	docs, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "one", docs[0].Body)
	assert.Equal(t, "two", docs[1].Body)
}

func TestParseMalformedIdentifier(t *testing.T) {
	tests := []string{
		".I\n.W\nbody\n",
		".I abc\n.W\nbody\n",
		".I 0\n",
		".I -3\n",
		".I 99999999999\n",
	}
	for _, input := range tests {
		_, err := NewParser().Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, apperrors.ErrMalformedIdentifier, input)
	}
}

func TestParseEmptyCollection(t *testing.T) {
	for _, input := range []string{"", "\n\n", ".T\nno id anywhere\n"} {
		_, err := NewParser().Parse(strings.NewReader(input))
		assert.ErrorIs(t, err, apperrors.ErrEmptyCollection)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cacm.all")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	docs, err := NewParser().ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = NewParser().ParseFile(filepath.Join(dir, "missing.all"))
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)
}

func TestCollection(t *testing.T) {
	c := NewCollection([]Document{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}})
	assert.False(t, c.Add(Document{ID: 1, Title: "c"}))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Distinct())
	assert.Equal(t, 1, c.Duplicates())

	d, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "c", d.Title)
	assert.False(t, c.Contains(3))
	assert.Equal(t, []ID{1, 2, 1}, []ID{c.Documents()[0].ID, c.Documents()[1].ID, c.Documents()[2].ID})
}
