// Package document models the records of a tagged document collection and
// parses the line-oriented format they are stored in.
package document

import (
	"fmt"
	"strings"
)

// ID identifies a document within one collection. It is taken verbatim from
// the collection's identifier marker and is always positive.
type ID uint32

// Document is one parsed record. It is immutable once the parser flushes it.
type Document struct {
	ID              ID       `json:"id"`
	Title           string   `json:"title"`
	Body            string   `json:"body"`
	PublicationDate string   `json:"publication_date"`
	Authors         []string `json:"authors"`
	N               []string `json:"n"`
	X               []string `json:"x"`
}

// WordCount returns the number of whitespace-separated words in the body.
func (d Document) WordCount() int {
	return len(strings.Fields(d.Body))
}

// IsEmpty reports whether the body holds no text.
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Body) == ""
}

func (d Document) String() string {
	return fmt.Sprintf("Document(%d | Title: %s | Publication Date: %s | Authors: %v)",
		d.ID, d.Title, d.PublicationDate, d.Authors)
}

// Collection holds documents in input order with lookup by id. When an id
// repeats, Get returns the document that was added last.
type Collection struct {
	docs  []Document
	byID  map[ID]int
	dupes int
}

// NewCollection builds a collection from docs, preserving their order.
func NewCollection(docs []Document) *Collection {
	c := &Collection{
		docs: make([]Document, 0, len(docs)),
		byID: make(map[ID]int, len(docs)),
	}
	for _, d := range docs {
		c.Add(d)
	}
	return c
}

// Add appends d. It reports false when d's id was already present.
func (c *Collection) Add(d Document) bool {
	_, seen := c.byID[d.ID]
	c.byID[d.ID] = len(c.docs)
	c.docs = append(c.docs, d)
	if seen {
		c.dupes++
	}
	return !seen
}

// Get returns the document with the given id.
func (c *Collection) Get(id ID) (Document, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

// Contains reports whether a document with the given id exists.
func (c *Collection) Contains(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// Documents returns the documents in input order.
func (c *Collection) Documents() []Document {
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Len returns the number of documents, duplicates included.
func (c *Collection) Len() int {
	return len(c.docs)
}

// Distinct returns the number of distinct ids.
func (c *Collection) Distinct() int {
	return len(c.byID)
}

// Duplicates returns how many documents reused an id seen earlier.
func (c *Collection) Duplicates() int {
	return c.dupes
}
