// Package index holds the in-memory positional inverted index: per-term
// postings stores keyed by document id, the term table, and the sorted
// dictionary derived from it.
package index

import (
	"fmt"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
)

// Posting records one term's occurrences within one document. Frequency is
// always authoritative; Positions is nil when positions were not tracked.
type Posting struct {
	DocID     document.ID `json:"doc"`
	Frequency int         `json:"tf"`
	Positions []int       `json:"pos,omitempty"`
}

// Positional reports whether the posting carries positions.
func (p Posting) Positional() bool {
	return p.Positions != nil
}

func (p Posting) clone() Posting {
	if p.Positions != nil {
		p.Positions = slices.Clone(p.Positions)
	}
	return p
}

// PostingList is an ordered run of postings, ascending by document id.
type PostingList []Posting

// PostingsStore maps document ids to postings. Keys live in a roaring bitmap,
// which keeps them sorted with logarithmic insertion whatever order ids
// arrive in.
type PostingsStore struct {
	docs    *roaring.Bitmap
	entries map[document.ID]*Posting
}

// NewPostingsStore returns an empty store.
func NewPostingsStore() *PostingsStore {
	return &PostingsStore{
		docs:    roaring.New(),
		entries: make(map[document.ID]*Posting),
	}
}

// record adds one occurrence for id. The first occurrence creates the
// posting; later ones bump its frequency and append pos when tracked.
func (s *PostingsStore) record(id document.ID, pos int, tracked bool) {
	p, ok := s.entries[id]
	if !ok {
		p = &Posting{DocID: id}
		if tracked {
			p.Positions = make([]int, 0, 4)
		}
		s.entries[id] = p
		s.docs.Add(uint32(id))
	}
	p.Frequency++
	if tracked {
		p.Positions = append(p.Positions, pos)
	}
}

// Contains reports whether id has a posting.
func (s *PostingsStore) Contains(id document.ID) bool {
	return s.docs.Contains(uint32(id))
}

// Lookup returns a copy of the posting for id.
func (s *PostingsStore) Lookup(id document.ID) (Posting, error) {
	p, ok := s.entries[id]
	if !ok {
		return Posting{}, fmt.Errorf("%w: document %d", apperrors.ErrDocumentNotFound, id)
	}
	return p.clone(), nil
}

// PositionsOf returns a copy of id's positions.
func (s *PostingsStore) PositionsOf(id document.ID) ([]int, error) {
	p, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %d", apperrors.ErrDocumentNotFound, id)
	}
	return slices.Clone(p.Positions), nil
}

// All yields copies of the postings ascending by document id.
func (s *PostingsStore) All() iter.Seq[Posting] {
	return func(yield func(Posting) bool) {
		it := s.docs.Iterator()
		for it.HasNext() {
			if !yield(s.entries[document.ID(it.Next())].clone()) {
				return
			}
		}
	}
}

// Postings collects All into a PostingList.
func (s *PostingsStore) Postings() PostingList {
	out := make(PostingList, 0, s.Len())
	for p := range s.All() {
		out = append(out, p)
	}
	return out
}

// Len returns the number of distinct documents in the store.
func (s *PostingsStore) Len() int {
	return int(s.docs.GetCardinality())
}
