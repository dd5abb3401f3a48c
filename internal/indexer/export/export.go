// Package export copies a built snapshot into a relational database so it can
// be inspected with SQL. SQLite and PostgreSQL are supported.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/postgres"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	build_id TEXT PRIMARY KEY,
	created_at BIGINT NOT NULL,
	term_count INTEGER NOT NULL,
	document_count INTEGER NOT NULL,
	positions BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	doc_id BIGINT PRIMARY KEY,
	title TEXT NOT NULL,
	publication_date TEXT NOT NULL,
	authors TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS terms (
	term TEXT PRIMARY KEY,
	document_frequency INTEGER NOT NULL,
	frequency INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	doc_id BIGINT NOT NULL,
	term_frequency INTEGER NOT NULL,
	positions TEXT NOT NULL,
	PRIMARY KEY (term, doc_id)
);
`

// Exporter writes snapshots into one database.
type Exporter struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an open database.
func New(db *sql.DB, d Dialect) *Exporter {
	return &Exporter{
		db:      db,
		dialect: d,
		logger:  slog.Default().With("component", "export"),
	}
}

// Open connects to the database named by cfg.
func Open(ctx context.Context, cfg config.ExportConfig, pg config.PostgresConfig) (*Exporter, error) {
	switch cfg.Driver {
	case "", "sqlite3":
		db, err := sql.Open("sqlite3", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening export database: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
		return New(db, SQLite), nil
	case "postgres":
		client, err := postgres.New(ctx, pg)
		if err != nil {
			return nil, err
		}
		return New(client.DB, Postgres), nil
	}
	return nil, fmt.Errorf("unknown export driver %q", cfg.Driver)
}

func (e *Exporter) Close() error {
	return e.db.Close()
}

func (e *Exporter) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if e.dialect == Postgres {
			parts[i] = "$" + strconv.Itoa(i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

// Export replaces the database contents with s in one transaction.
func (e *Exporter) Export(ctx context.Context, s *segment.Snapshot) error {
	err := inTx(ctx, e.db, func(tx *sql.Tx) error {
		for _, stmt := range strings.Split(schema, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
		}
		for _, table := range []string{"postings", "terms", "documents", "builds"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO builds (build_id, created_at, term_count, document_count, positions) VALUES ("+e.placeholders(5)+")",
			s.BuildID.String(), s.CreatedAt.UnixNano(), len(s.Dictionary), s.Collection.Distinct(), s.TrackPositions,
		); err != nil {
			return fmt.Errorf("inserting build: %w", err)
		}
		if err := e.insertDocuments(ctx, tx, s.Collection); err != nil {
			return err
		}
		return e.insertTerms(ctx, tx, s)
	})
	if err != nil {
		return fmt.Errorf("exporting snapshot %s: %w", s.BuildID, err)
	}
	e.logger.Info("snapshot exported", "build_id", s.BuildID, "terms", len(s.Dictionary))
	return nil
}

func (e *Exporter) insertDocuments(ctx context.Context, tx *sql.Tx, c *document.Collection) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (doc_id, title, publication_date, authors) VALUES ("+e.placeholders(4)+")")
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer stmt.Close()
	seen := make(map[document.ID]struct{}, c.Distinct())
	for _, d := range c.Documents() {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		latest, _ := c.Get(d.ID)
		if _, err := stmt.ExecContext(ctx, int64(latest.ID), latest.Title, latest.PublicationDate, strings.Join(latest.Authors, "; ")); err != nil {
			return fmt.Errorf("inserting document %d: %w", d.ID, err)
		}
	}
	return nil
}

func (e *Exporter) insertTerms(ctx context.Context, tx *sql.Tx, s *segment.Snapshot) error {
	termStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO terms (term, document_frequency, frequency) VALUES ("+e.placeholders(3)+")")
	if err != nil {
		return fmt.Errorf("preparing term insert: %w", err)
	}
	defer termStmt.Close()
	postingStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO postings (term, doc_id, term_frequency, positions) VALUES ("+e.placeholders(4)+")")
	if err != nil {
		return fmt.Errorf("preparing posting insert: %w", err)
	}
	defer postingStmt.Close()

	for text, term := range s.Index.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := termStmt.ExecContext(ctx, text, term.DocumentFrequency(), term.Frequency()); err != nil {
			return fmt.Errorf("inserting term %q: %w", text, err)
		}
		for p := range term.Postings().All() {
			if _, err := postingStmt.ExecContext(ctx, text, int64(p.DocID), p.Frequency, joinInts(p.Positions)); err != nil {
				return fmt.Errorf("inserting posting %q/%d: %w", text, p.DocID, err)
			}
		}
	}
	return nil
}

// Counts returns the number of exported terms, postings and documents.
func (e *Exporter) Counts(ctx context.Context) (terms, postings, documents int, err error) {
	row := e.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM terms), (SELECT COUNT(*) FROM postings), (SELECT COUNT(*) FROM documents)")
	if err := row.Scan(&terms, &postings, &documents); err != nil {
		return 0, 0, 0, fmt.Errorf("counting exported rows: %w", err)
	}
	return terms, postings, documents, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}
