// Package session runs the interactive query loop: each input line becomes a
// Command, each Command produces one response, and "ZZEND" ends the session.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
)

// QuitToken ends a session.
const QuitToken = "ZZEND"

// Kind tells commands apart.
type Kind int

const (
	// Skip is an empty line.
	Skip Kind = iota
	Lookup
	ShowContext
	Quit
)

func (k Kind) String() string {
	switch k {
	case Lookup:
		return "lookup"
	case ShowContext:
		return "show-context"
	case Quit:
		return "quit"
	}
	return "skip"
}

// Command is one parsed input line.
type Command struct {
	Kind  Kind
	Term  string
	DocID document.ID
}

// UserError is bad input from the person at the prompt. It is reported and
// the session carries on.
type UserError struct {
	Input  string
	Reason string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// ParseTerm reads a line at the term prompt.
func ParseTerm(line string) Command {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return Command{Kind: Skip}
	case QuitToken:
		return Command{Kind: Quit}
	}
	return Command{Kind: Lookup, Term: line}
}

// ParseDocID reads a line at the document prompt for term. An empty line
// returns to the term prompt.
func ParseDocID(line, term string) (Command, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return Command{Kind: Skip}, nil
	case QuitToken:
		return Command{Kind: Quit}, nil
	}
	id, err := strconv.ParseUint(line, 10, 32)
	if err != nil || id == 0 {
		return Command{}, &UserError{Input: line, Reason: "document id must be a positive integer"}
	}
	return Command{Kind: ShowContext, Term: term, DocID: document.ID(id)}, nil
}
