// Package subscriber reads newsletter recipients from the subscriber database.
package subscriber

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDriver is the database/sql driver name registered by pgx.
const PostgresDriver = "pgx"

// Source lists recipient addresses.
type Source interface {
	Emails(ctx context.Context) ([]string, error)
}

// SQLSource runs a configured query whose first column is an e-mail address.
type SQLSource struct {
	Driver string
	DSN    string
	Query  string
}

// NewPostgres returns a source backed by the pgx driver.
func NewPostgres(dsn, query string) *SQLSource {
	return &SQLSource{Driver: PostgresDriver, DSN: dsn, Query: query}
}

// Emails opens a connection, runs the query and closes the connection again.
// Blank and NULL addresses are skipped.
func (s *SQLSource) Emails(ctx context.Context) ([]string, error) {
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open subscriber db: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read subscriber columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("subscriber query returned no columns")
	}

	var emails []string
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.RawBytes)
	}
	var email sql.NullString
	dest[0] = &email
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if v := strings.TrimSpace(email.String); email.Valid && v != "" {
			emails = append(emails, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return emails, nil
}

// Static is a fixed recipient list.
type Static []string

func (s Static) Emails(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
