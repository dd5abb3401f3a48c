// Package segment persists a built index as two artifacts, a dictionary and a
// postings file, and loads them back with full cross-validation.
//
// Each artifact is a 64-byte header, a possibly compressed JSON payload and an
// 8-byte footer:
//
//	header  magic u32 | version u16 | kind u8 | compression u8 |
//	        terms u32 | docs u32 | build id [16]byte | flags u32 |
//	        payload len u64 | raw len u64 | created unix nanos i64 | reserved
//	payload JSON, compressed per the header
//	footer  crc32(header + payload) u32 | payload len u32
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x50495844
	FormatVersion uint16 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 8

	// maxRawLen caps the decompressed payload size a header may claim.
	maxRawLen = math.MaxInt32
)

// Kind tells the two artifacts apart.
type Kind uint8

const (
	KindDictionary Kind = 1
	KindPostings   Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindDictionary:
		return "dictionary"
	case KindPostings:
		return "postings"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Header flags describing how the index was analyzed. The digit policy
// occupies bits 8-15.
const (
	FlagPositions uint32 = 1 << iota
	FlagStopwords
	FlagStemming
)

// Header is the fixed-size prefix of every artifact.
type Header struct {
	Magic       uint32
	Version     uint16
	Kind        Kind
	Compression Compression
	TermCount   uint32
	DocCount    uint32
	BuildID     uuid.UUID
	Flags       uint32
	PayloadLen  uint64
	RawLen      uint64
	CreatedAt   int64
}

// Created returns the build timestamp.
func (h Header) Created() time.Time {
	return time.Unix(0, h.CreatedAt)
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	b[6] = byte(h.Kind)
	b[7] = byte(h.Compression)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	copy(b[16:32], h.BuildID[:])
	binary.LittleEndian.PutUint32(b[32:36], h.Flags)
	binary.LittleEndian.PutUint64(b[36:44], h.PayloadLen)
	binary.LittleEndian.PutUint64(b[44:52], h.RawLen)
	binary.LittleEndian.PutUint64(b[52:60], uint64(h.CreatedAt))
	return b
}

func decodeHeader(b []byte) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint32(b[0:4])
	h.Version = binary.LittleEndian.Uint16(b[4:6])
	h.Kind = Kind(b[6])
	h.Compression = Compression(b[7])
	h.TermCount = binary.LittleEndian.Uint32(b[8:12])
	h.DocCount = binary.LittleEndian.Uint32(b[12:16])
	copy(h.BuildID[:], b[16:32])
	h.Flags = binary.LittleEndian.Uint32(b[32:36])
	h.PayloadLen = binary.LittleEndian.Uint64(b[36:44])
	h.RawLen = binary.LittleEndian.Uint64(b[44:52])
	h.CreatedAt = int64(binary.LittleEndian.Uint64(b[52:60]))
	return h
}

// encodeArtifact compresses raw and frames it. h supplies everything but the
// magic, version, compression and lengths.
func encodeArtifact(h Header, raw []byte, c Compression) ([]byte, error) {
	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compressing %s payload: %w", h.Kind, err)
	}
	h.Magic = MagicBytes
	h.Version = FormatVersion
	h.Compression = used
	h.PayloadLen = uint64(len(payload))
	h.RawLen = uint64(len(raw))

	out := make([]byte, 0, HeaderSize+len(payload)+FooterSize)
	out = append(out, h.encode()...)
	out = append(out, payload...)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(out))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(payload)))
	return append(out, footer...), nil
}

// decodeArtifact verifies framing and checksum and returns the header and the
// decompressed payload. The checksum covers header and payload. Every failure
// wraps ErrSerializationMismatch.
func decodeArtifact(data []byte, want Kind) (Header, []byte, error) {
	if len(data) < HeaderSize+FooterSize {
		return Header{}, nil, mismatch("%s artifact truncated: %d bytes", want, len(data))
	}
	h := decodeHeader(data[:HeaderSize])
	if h.Magic != MagicBytes {
		return Header{}, nil, mismatch("%s artifact: bad magic bytes %x", want, h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, nil, mismatch("%s artifact: unsupported version %d", want, h.Version)
	}
	if h.Kind != want {
		return Header{}, nil, mismatch("expected %s artifact, found %s", want, h.Kind)
	}
	if uint64(len(data)) != uint64(HeaderSize+FooterSize)+h.PayloadLen {
		return Header{}, nil, mismatch("%s artifact: payload length %d does not match file size %d", want, h.PayloadLen, len(data))
	}
	end := HeaderSize + int(h.PayloadLen)
	payload := data[HeaderSize:end]
	footer := data[end:]
	checksum := binary.LittleEndian.Uint32(footer[0:4])
	if got := crc32.ChecksumIEEE(data[:end]); got != checksum {
		return Header{}, nil, mismatch("%s artifact: checksum %08x, expected %08x", want, got, checksum)
	}
	if uint64(binary.LittleEndian.Uint32(footer[4:8])) != h.PayloadLen {
		return Header{}, nil, mismatch("%s artifact: footer length disagrees with header", want)
	}
	if h.RawLen > maxRawLen {
		return Header{}, nil, mismatch("%s artifact: raw length %d exceeds %d", want, h.RawLen, maxRawLen)
	}
	raw, err := decompress(payload, h.Compression, int(h.RawLen))
	if err != nil {
		return Header{}, nil, mismatch("%s artifact: %v", want, err)
	}
	return h, raw, nil
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrSerializationMismatch, fmt.Sprintf(format, args...))
}
