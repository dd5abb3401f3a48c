package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

var sampleDocs = []document.Document{
	{ID: 1, Title: "Preliminary Report", Body: "A B A", Authors: []string{"Perlis, A. J."}},
	{ID: 3, Title: "Matrix Inversion", Body: "matrix inversion of a matrix", PublicationDate: "CACM December, 1958", N: []string{"CA581203 JB March 22, 1978"}},
	{ID: 2, Title: "Roots", Body: "roots by repeated subtraction, roots again", X: []string{"2\t5\t2", ""}},
}

func buildSnapshot(t *testing.T, positions bool, s tokenizer.Settings) *Snapshot {
	t.Helper()
	a, err := tokenizer.NewAnalyzer(s)
	require.NoError(t, err)
	e, err := indexer.NewEngine(indexer.Options{Analyzer: a, TrackPositions: positions})
	require.NoError(t, err)
	res, err := e.Build(context.Background(), sampleDocs)
	require.NoError(t, err)
	return NewSnapshot(res)
}

func assertSameSnapshot(t *testing.T, want, got *Snapshot) {
	t.Helper()
	assert.Equal(t, want.BuildID, got.BuildID)
	assert.Equal(t, want.Analyzer, got.Analyzer)
	assert.Equal(t, want.TrackPositions, got.TrackPositions)
	assert.Equal(t, want.Dictionary, got.Dictionary)
	assert.Equal(t, want.Collection.Documents(), got.Collection.Documents())
	require.Equal(t, want.Index.Len(), got.Index.Len())
	for text, term := range want.Index.All() {
		other, ok := got.Index.Term(text)
		require.True(t, ok, text)
		assert.Equal(t, term.Frequency(), other.Frequency(), text)
		assert.Equal(t, term.Postings().Postings(), other.Postings().Postings(), text)
	}
}

func TestRoundTripAllCompressions(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			snap := buildSnapshot(t, true, tokenizer.Settings{Stemmer: "snowball", Stopwords: []string{"of"}})
			dict, postings, err := Marshal(snap, c)
			require.NoError(t, err)

			got, err := Unmarshal(dict, postings)
			require.NoError(t, err)
			assertSameSnapshot(t, snap, got)
			assert.True(t, got.Index.Sealed())
		})
	}
}

func TestRoundTripWithoutPositions(t *testing.T) {
	snap := buildSnapshot(t, false, tokenizer.Settings{})
	dict, postings, err := Marshal(snap, CompressionZSTD)
	require.NoError(t, err)

	got, err := Unmarshal(dict, postings)
	require.NoError(t, err)
	assertSameSnapshot(t, snap, got)

	matrix, ok := got.Index.Term("matrix")
	require.True(t, ok)
	p, err := matrix.Postings().Lookup(3)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Frequency)
	assert.False(t, p.Positional())
}

func TestRoundTripMergedDuplicateIDs(t *testing.T) {
	docs, err := document.NewParser().Parse(strings.NewReader(".I 1\n.W\nb a\n.I 1\n.W\na\n"))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	e, err := indexer.NewEngine(indexer.Options{TrackPositions: true})
	require.NoError(t, err)
	res, err := e.Build(context.Background(), docs)
	require.NoError(t, err)
	snap := NewSnapshot(res)

	dict, postings, err := Marshal(snap, CompressionLZ4)
	require.NoError(t, err)
	got, err := Unmarshal(dict, postings)
	require.NoError(t, err)
	assertSameSnapshot(t, snap, got)

	a, ok := got.Index.Term("a")
	require.True(t, ok)
	p, err := a.Postings().Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, []int{1, 2}, p.Positions)
}

func TestCompressionFallsBackOnIncompressible(t *testing.T) {
	raw := []byte{0x01}
	out, used, err := compress(raw, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, used)
	assert.Equal(t, raw, out)

	big := bytes.Repeat([]byte("matrix inversion "), 500)
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		out, used, err := compress(big, c)
		require.NoError(t, err)
		assert.Equal(t, c, used)
		assert.Less(t, len(out), len(big))
		back, err := decompress(out, used, len(big))
		require.NoError(t, err)
		assert.Equal(t, big, back)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}

func TestUnmarshalRejectsCorruption(t *testing.T) {
	snap := buildSnapshot(t, true, tokenizer.Settings{})
	dict, postings, err := Marshal(snap, CompressionNone)
	require.NoError(t, err)

	flipped := bytes.Clone(postings)
	flipped[HeaderSize+3] ^= 0xff
	_, err = Unmarshal(dict, flipped)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)

	_, err = Unmarshal(dict[:HeaderSize], postings)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)

	_, err = Unmarshal(postings, dict)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)

	badMagic := bytes.Clone(dict)
	badMagic[0] = 0
	_, err = Unmarshal(badMagic, postings)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
}

// reseal recomputes the footer checksum so a header edit gets past it.
func reseal(data []byte) []byte {
	end := len(data) - FooterSize
	binary.LittleEndian.PutUint32(data[end:end+4], crc32.ChecksumIEEE(data[:end]))
	return data
}

func TestUnmarshalRejectsDamagedHeader(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			snap := buildSnapshot(t, true, tokenizer.Settings{})
			dict, postings, err := Marshal(snap, c)
			require.NoError(t, err)

			huge := bytes.Clone(postings)
			binary.LittleEndian.PutUint64(huge[44:52], 1<<63)
			assert.NotPanics(t, func() {
				_, err = Unmarshal(dict, huge)
			})
			assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
			assert.Contains(t, err.Error(), "checksum")

			assert.NotPanics(t, func() {
				_, err = Unmarshal(dict, reseal(huge))
			})
			assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)

			inflated := bytes.Clone(postings)
			binary.LittleEndian.PutUint64(inflated[44:52], 1<<30)
			_, err = Unmarshal(dict, reseal(inflated))
			assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)

			recounted := bytes.Clone(dict)
			binary.LittleEndian.PutUint32(recounted[8:12], 7)
			_, err = Unmarshal(recounted, postings)
			assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
		})
	}
}

func TestUnmarshalRejectsForeignBuild(t *testing.T) {
	a := buildSnapshot(t, true, tokenizer.Settings{})
	b := buildSnapshot(t, true, tokenizer.Settings{})
	dictA, _, err := Marshal(a, CompressionLZ4)
	require.NoError(t, err)
	_, postingsB, err := Marshal(b, CompressionLZ4)
	require.NoError(t, err)

	_, err = Unmarshal(dictA, postingsB)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
}

func TestUnmarshalRejectsDocFreqDrift(t *testing.T) {
	snap := buildSnapshot(t, true, tokenizer.Settings{})
	_, postings, err := Marshal(snap, CompressionNone)
	require.NoError(t, err)

	forged := *snap
	forged.Dictionary = append(index.Dictionary(nil), snap.Dictionary...)
	forged.Dictionary[0].DocFreq += 5
	dict, _, err := Marshal(&forged, CompressionNone)
	require.NoError(t, err)

	_, err = Unmarshal(dict, postings)
	require.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
	assert.Contains(t, err.Error(), "df")
}

func TestUnmarshalRejectsUnsortedPositions(t *testing.T) {
	snap := buildSnapshot(t, true, tokenizer.Settings{})
	dict, postings, err := Marshal(snap, CompressionNone)
	require.NoError(t, err)

	h, raw, err := decodeArtifact(postings, KindPostings)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), `"pos":[0,2]`, `"pos":[2,0]`, 1)
	require.NotEqual(t, string(raw), tampered)
	forged, err := encodeArtifact(h, []byte(tampered), CompressionNone)
	require.NoError(t, err)

	_, err = Unmarshal(dict, forged)
	assert.ErrorIs(t, err, apperrors.ErrSerializationMismatch)
}

func TestMarshalRequiresSealedIndex(t *testing.T) {
	snap := &Snapshot{
		BuildID:    uuid.New(),
		Index:      index.NewTermIndex(),
		Collection: document.NewCollection(nil),
	}
	_, _, err := Marshal(snap, CompressionNone)
	assert.Error(t, err)
}

func TestWriterAndLoad(t *testing.T) {
	dir := t.TempDir()
	snap := buildSnapshot(t, true, tokenizer.Settings{})
	paths, err := NewWriter(filepath.Join(dir, "out"), CompressionZSTD).Write(snap)
	require.NoError(t, err)

	assert.FileExists(t, paths.Dictionary)
	assert.FileExists(t, paths.Postings)
	assert.NoFileExists(t, paths.Dictionary+".tmp")
	info, err := os.Stat(paths.Postings)
	require.NoError(t, err)
	assert.Equal(t, paths.PostingsSize, info.Size())

	h, err := ReadHeader(paths.Dictionary)
	require.NoError(t, err)
	assert.Equal(t, KindDictionary, h.Kind)
	assert.Equal(t, snap.BuildID, h.BuildID)
	assert.NotZero(t, h.Flags&FlagPositions)

	got, err := Load(paths.Dictionary, paths.Postings)
	require.NoError(t, err)
	assertSameSnapshot(t, snap, got)

	_, err = Load(filepath.Join(dir, "missing.dat"), paths.Postings)
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)
}
