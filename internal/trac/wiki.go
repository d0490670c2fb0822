package trac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/tracmark/internal/apperr"
	"github.com/starford/tracmark/internal/models"
)

// Pages returns the latest revision of every page modified after since,
// ordered by name. Trac stores times as microseconds since the epoch.
func (db *DB) Pages(ctx context.Context, since time.Time) ([]models.Page, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT name, MAX(version), text, time
		FROM wiki
		WHERE time > ?
		GROUP BY name
		ORDER BY name
	`, since.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("trac: list pages: %w", err)
	}
	defer rows.Close()

	var out []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Page returns the latest revision of one page.
func (db *DB) Page(ctx context.Context, name string) (*models.Page, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT name, version, text, time
		FROM wiki
		WHERE name = ?
		ORDER BY version DESC
		LIMIT 1
	`, name)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trac: page %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PagesWithPrefix returns the names of all pages starting with prefix.
func (db *DB) PagesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT name FROM wiki
		WHERE name LIKE ? ESCAPE '\'
		ORDER BY name
	`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("trac: pages with prefix: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("trac: scan name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (models.Page, error) {
	var (
		p    models.Page
		text sql.NullString
		usec int64
	)
	if err := s.Scan(&p.Name, &p.Version, &text, &usec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("trac: scan page: %w", err)
	}
	p.Text = text.String
	p.ModifiedAt = time.UnixMicro(usec).UTC()
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
