// Package history records resolved share links in a local SQLite database.
package history

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"dyfetch/internal/config"
	"dyfetch/internal/media"
)

//go:embed schema.sql
var schema string

// Entry kinds.
const (
	KindVideo   = "video"
	KindGallery = "gallery"
)

// Entry is one resolved link. Resolving the same content again replaces it.
type Entry struct {
	ContentID  string    `db:"content_id"`
	ShareURL   string    `db:"share_url"`
	Title      string    `db:"title"`
	Kind       string    `db:"kind"`
	Author     string    `db:"author"`
	Descriptor string    `db:"descriptor"`
	ResolvedAt time.Time `db:"-"`
}

// row mirrors the table; time is stored as unix seconds.
type row struct {
	Entry
	ResolvedUnix int64 `db:"resolved_at"`
}

// Decode returns the stored descriptor.
func (e Entry) Decode() (*media.Descriptor, error) {
	var d media.Descriptor
	if err := json.Unmarshal([]byte(e.Descriptor), &d); err != nil {
		return nil, fmt.Errorf("decoding stored descriptor for %s: %w", e.ContentID, err)
	}
	return &d, nil
}

// Store is a history database handle.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// A single connection serializes writers; the CLI never needs more.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// OpenDefault opens the database at config.HistoryPath.
func OpenDefault() (*Store, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records desc as resolved from shareURL, replacing any earlier entry
// for the same content.
func (s *Store) Save(ctx context.Context, shareURL string, desc *media.Descriptor) error {
	if desc == nil || desc.ID == "" {
		return errors.New("history: descriptor has no content ID")
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}

	kind := KindVideo
	if desc.IsGallery() {
		kind = KindGallery
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (content_id, share_url, title, kind, author, descriptor, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			share_url = excluded.share_url,
			title = excluded.title,
			kind = excluded.kind,
			author = excluded.author,
			descriptor = excluded.descriptor,
			resolved_at = excluded.resolved_at`,
		desc.ID, shareURL, desc.Title, kind, desc.Author.Name, string(data), s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving history entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT content_id, share_url, title, kind, author, descriptor, resolved_at
		FROM history
		ORDER BY resolved_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.Entry
		e.ResolvedAt = time.Unix(r.ResolvedUnix, 0)
		entries = append(entries, e)
	}
	return entries, nil
}

// Remove deletes the entry for contentID. Removing a missing entry is not an error.
func (s *Store) Remove(ctx context.Context, contentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE content_id = ?`, contentID); err != nil {
		return fmt.Errorf("removing history entry: %w", err)
	}
	return nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return n, nil
}

// FormatForDisplay renders one line per entry.
func FormatForDisplay(entries []Entry) []string {
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s  %-7s  %s  %s", e.ResolvedAt.Format("2006-01-02 15:04"), e.Kind, e.ContentID, title)
		if e.Author != "" {
			line += " @" + e.Author
		}
		items = append(items, line)
	}
	return items
}
