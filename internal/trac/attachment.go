package trac

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/tracmark/internal/models"
)

const wikiRealm = "wiki"

// Attachments returns every wiki attachment, ordered by page and upload time.
func (db *DB) Attachments(ctx context.Context) ([]models.Attachment, error) {
	return db.queryAttachments(ctx, `
		SELECT id, filename, size FROM attachment
		WHERE type = ?
		ORDER BY id, time, filename
	`, wikiRealm)
}

// PageAttachments returns the attachments of one page.
func (db *DB) PageAttachments(ctx context.Context, page string) ([]models.Attachment, error) {
	return db.queryAttachments(ctx, `
		SELECT id, filename, size FROM attachment
		WHERE type = ? AND id = ?
		ORDER BY time, filename
	`, wikiRealm, page)
}

func (db *DB) queryAttachments(ctx context.Context, query string, args ...any) ([]models.Attachment, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trac: list attachments: %w", err)
	}
	defer rows.Close()

	var out []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.Owner, &a.Filename, &a.Size); err != nil {
			return nil, fmt.Errorf("trac: scan attachment: %w", err)
		}
		a.Path = AttachmentPath(db.envPath, a.Owner, a.Filename)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttachmentPath locates a wiki attachment on disk. Environments created
// before Trac 1.0 keep the quoted layout, which is used when the hashed file
// is absent and the quoted one exists.
func AttachmentPath(envPath, page, filename string) string {
	hashed := filepath.Join(envPath, "files", "attachments", wikiRealm,
		sha1Hex(page)[:3], sha1Hex(page), hashedFilename(filename))
	if _, err := os.Stat(hashed); err == nil {
		return hashed
	}

	legacy := filepath.Join(envPath, "attachments", wikiRealm,
		filepath.FromSlash(quote(page)), quote(filename))
	if _, err := os.Stat(legacy); err == nil {
		return legacy
	}
	return hashed
}

var extension = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

func hashedFilename(filename string) string {
	ext := filepath.Ext(filename)
	if !extension.MatchString(ext) {
		ext = ""
	}
	return sha1Hex(filename) + ext
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// quote percent-encodes everything except ASCII letters, digits, "_.-" and
// "/", the way the legacy layout names its directories.
func quote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '.', c == '-', c == '/':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
