package segment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/tokenizer"
)

// Snapshot is one build as it is persisted: the sealed term index, its
// dictionary, the document collection and the analyzer settings queries must
// reuse.
type Snapshot struct {
	BuildID        uuid.UUID
	CreatedAt      time.Time
	Analyzer       tokenizer.Settings
	TrackPositions bool
	Index          *index.TermIndex
	Dictionary     index.Dictionary
	Collection     *document.Collection
}

// NewSnapshot wraps a build result under a fresh build id.
func NewSnapshot(res *indexer.Result) *Snapshot {
	return &Snapshot{
		BuildID:        uuid.New(),
		CreatedAt:      time.Now(),
		Analyzer:       res.Analyzer,
		TrackPositions: res.TrackPositions,
		Index:          res.Index,
		Dictionary:     res.Dictionary,
		Collection:     res.Collection,
	}
}

type termRecord struct {
	Term     string          `json:"term"`
	Freq     int             `json:"freq"`
	Postings []index.Posting `json:"postings"`
}

type postingsPayload struct {
	Analyzer  tokenizer.Settings  `json:"analyzer"`
	Positions bool                `json:"positions"`
	Terms     []termRecord        `json:"terms"`
	Documents []document.Document `json:"documents"`
}

func (s *Snapshot) header(kind Kind) Header {
	h := Header{
		Kind:      kind,
		TermCount: uint32(len(s.Dictionary)),
		DocCount:  uint32(s.Collection.Len()),
		BuildID:   s.BuildID,
		CreatedAt: s.CreatedAt.UnixNano(),
	}
	if s.TrackPositions {
		h.Flags |= FlagPositions
	}
	if len(s.Analyzer.Stopwords) > 0 {
		h.Flags |= FlagStopwords
	}
	if s.Analyzer.Stemmer != "" {
		h.Flags |= FlagStemming
	}
	if policy, err := tokenizer.ParseDigitPolicy(s.Analyzer.DigitPolicy); err == nil {
		h.Flags |= uint32(policy) << 8
	}
	return h
}

// Marshal encodes s as its dictionary and postings artifacts.
func Marshal(s *Snapshot, c Compression) (dict, postings []byte, err error) {
	if !s.Index.Sealed() {
		return nil, nil, fmt.Errorf("marshaling snapshot: index is not finalized")
	}
	rawDict, err := json.Marshal(s.Dictionary)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling dictionary: %w", err)
	}
	payload := postingsPayload{
		Analyzer:  s.Analyzer,
		Positions: s.TrackPositions,
		Terms:     make([]termRecord, 0, s.Index.Len()),
		Documents: s.Collection.Documents(),
	}
	for text, term := range s.Index.All() {
		payload.Terms = append(payload.Terms, termRecord{
			Term:     text,
			Freq:     term.Frequency(),
			Postings: term.Postings().Postings(),
		})
	}
	rawPostings, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling postings: %w", err)
	}

	dict, err = encodeArtifact(s.header(KindDictionary), rawDict, c)
	if err != nil {
		return nil, nil, err
	}
	postings, err = encodeArtifact(s.header(KindPostings), rawPostings, c)
	if err != nil {
		return nil, nil, err
	}
	return dict, postings, nil
}

// Unmarshal decodes both artifacts, rebuilds the term index from the
// postings and checks that the two artifacts agree. Any inconsistency is
// reported as ErrSerializationMismatch.
func Unmarshal(dictData, postingsData []byte) (*Snapshot, error) {
	dh, rawDict, err := decodeArtifact(dictData, KindDictionary)
	if err != nil {
		return nil, err
	}
	ph, rawPostings, err := decodeArtifact(postingsData, KindPostings)
	if err != nil {
		return nil, err
	}
	if dh.BuildID != ph.BuildID {
		return nil, mismatch("dictionary build %s does not match postings build %s", dh.BuildID, ph.BuildID)
	}

	var dict index.Dictionary
	if err := json.Unmarshal(rawDict, &dict); err != nil {
		return nil, mismatch("parsing dictionary: %v", err)
	}
	var payload postingsPayload
	if err := json.Unmarshal(rawPostings, &payload); err != nil {
		return nil, mismatch("parsing postings: %v", err)
	}
	if int(dh.TermCount) != len(dict) || int(ph.TermCount) != len(payload.Terms) {
		return nil, mismatch("header term counts disagree with payloads")
	}
	if int(ph.DocCount) != len(payload.Documents) {
		return nil, mismatch("header document count %d, payload holds %d", ph.DocCount, len(payload.Documents))
	}
	if (ph.Flags&FlagPositions != 0) != payload.Positions {
		return nil, mismatch("position flag disagrees with payload")
	}
	if _, err := tokenizer.NewAnalyzer(payload.Analyzer); err != nil {
		return nil, mismatch("analyzer settings: %v", err)
	}

	idx, err := rebuild(payload)
	if err != nil {
		return nil, err
	}
	if err := compareDictionaries(dict, idx.Finalize()); err != nil {
		return nil, err
	}

	return &Snapshot{
		BuildID:        ph.BuildID,
		CreatedAt:      ph.Created(),
		Analyzer:       payload.Analyzer,
		TrackPositions: payload.Positions,
		Index:          idx,
		Dictionary:     dict,
		Collection:     document.NewCollection(payload.Documents),
	}, nil
}

// rebuild replays every posting into a fresh term index after checking it.
func rebuild(p postingsPayload) (*index.TermIndex, error) {
	idx := index.NewTermIndex()
	prev := ""
	for i, rec := range p.Terms {
		if i > 0 && rec.Term <= prev {
			return nil, mismatch("postings terms out of order at %q", rec.Term)
		}
		prev = rec.Term
		if len(rec.Postings) == 0 {
			return nil, mismatch("term %q has no postings", rec.Term)
		}
		sum := 0
		var lastDoc document.ID
		for j, posting := range rec.Postings {
			if j > 0 && posting.DocID <= lastDoc {
				return nil, mismatch("term %q: postings not ascending at document %d", rec.Term, posting.DocID)
			}
			lastDoc = posting.DocID
			if err := checkPosting(rec.Term, posting, p.Positions); err != nil {
				return nil, err
			}
			sum += posting.Frequency
			if err := replay(idx, rec.Term, posting); err != nil {
				return nil, err
			}
		}
		if sum != rec.Freq {
			return nil, mismatch("term %q: frequency %d, postings sum to %d", rec.Term, rec.Freq, sum)
		}
	}
	return idx, nil
}

func checkPosting(term string, p index.Posting, positional bool) error {
	if p.DocID == 0 {
		return mismatch("term %q: posting with document id 0", term)
	}
	if p.Frequency <= 0 {
		return mismatch("term %q document %d: frequency %d", term, p.DocID, p.Frequency)
	}
	if !positional {
		if p.Positions != nil {
			return mismatch("term %q document %d: positions in a count-only index", term, p.DocID)
		}
		return nil
	}
	if len(p.Positions) != p.Frequency {
		return mismatch("term %q document %d: frequency %d with %d positions", term, p.DocID, p.Frequency, len(p.Positions))
	}
	for k, pos := range p.Positions {
		if pos < 0 || (k > 0 && pos < p.Positions[k-1]) {
			return mismatch("term %q document %d: positions out of order", term, p.DocID)
		}
	}
	return nil
}

func replay(idx *index.TermIndex, term string, p index.Posting) error {
	if p.Positions != nil {
		for _, pos := range p.Positions {
			if err := idx.Record(term, p.DocID, pos); err != nil {
				return err
			}
		}
		return nil
	}
	for range p.Frequency {
		if err := idx.RecordCount(term, p.DocID); err != nil {
			return err
		}
	}
	return nil
}

func compareDictionaries(stored, derived index.Dictionary) error {
	if len(stored) != len(derived) {
		return mismatch("dictionary holds %d terms, postings hold %d", len(stored), len(derived))
	}
	for i := range stored {
		if stored[i].Term != derived[i].Term {
			return mismatch("dictionary term %q, postings term %q at %d", stored[i].Term, derived[i].Term, i)
		}
		if stored[i].DocFreq != derived[i].DocFreq {
			return mismatch("term %q: dictionary df %d, postings size %d", stored[i].Term, stored[i].DocFreq, derived[i].DocFreq)
		}
	}
	return nil
}
