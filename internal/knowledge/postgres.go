package knowledge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/resilience"
)

// PostgresSource loads the corpus from a table with columns
// (id, title, content, category, keywords text[], position).
type PostgresSource struct {
	db    *sql.DB
	table string
	retry resilience.RetryConfig
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (p *PostgresSource) Name() string { return "postgres:" + p.table }

func (p *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := resilience.Retry(ctx, "load-knowledge", p.retry, func() error {
		var err error
		docs, err = p.query(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	if err := Validate(docs); err != nil {
		return nil, fmt.Errorf("validating %s: %w", p.table, err)
	}
	return docs, nil
}

func (p *PostgresSource) query(ctx context.Context) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx, selectQuery(p.table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", p.table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d        Document
			category sql.NullString
			keywords pq.StringArray
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &category, &keywords); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		d.Category = category.String
		d.Keywords = []string(keywords)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return docs, nil
}

// selectQuery keeps corpus order stable so ranking ties resolve the same way
// on every load.
func selectQuery(table string) string {
	return fmt.Sprintf(
		"SELECT id, title, content, category, keywords FROM %s ORDER BY position, id",
		pq.QuoteIdentifier(table),
	)
}

// Replace swaps the table contents for docs inside a single transaction.
func Replace(ctx context.Context, c *postgres.Client, table string, docs []Document) error {
	if err := Validate(docs); err != nil {
		return err
	}
	return c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
		stmt, err := tx.PrepareContext(ctx, insertQuery(table))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Content, d.Category, pq.Array(d.Keywords), i); err != nil {
				return fmt.Errorf("inserting %q: %w", d.ID, err)
			}
		}
		return nil
	})
}

func insertQuery(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (id, title, content, category, keywords, position) VALUES ($1, $2, $3, $4, $5, $6)",
		pq.QuoteIdentifier(table),
	)
}

// Schema returns the DDL for a knowledge table.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id       TEXT NOT NULL,
	title    TEXT NOT NULL,
	content  TEXT NOT NULL,
	category TEXT,
	keywords TEXT[] NOT NULL DEFAULT '{}',
	position INTEGER NOT NULL
)`, pq.QuoteIdentifier(table))
}
