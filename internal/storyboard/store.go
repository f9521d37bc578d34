package storyboard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store persists frames and their thumbnails in a SQLite database under the
// application data dir.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	sort_key TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS thumbnails (
	frame_id TEXT PRIMARY KEY REFERENCES frames(id) ON DELETE CASCADE,
	png      BLOB NOT NULL
);
`

// OpenStore initializes or connects to the storyboard database.
func OpenStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("storyboard: data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "storyboard.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storyboard: open db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storyboard: apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storyboard: apply schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadFrames returns all frames in ascending sort-key order.
func (s *Store) LoadFrames(ctx context.Context) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sort_key FROM frames ORDER BY sort_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("storyboard: load frames: %w", err)
	}
	defer rows.Close()
	var frames []Frame
	for rows.Next() {
		var f Frame
		if err := rows.Scan(&f.ID, &f.Name, &f.SortKey); err != nil {
			return nil, fmt.Errorf("storyboard: scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// InsertFrame persists a new frame.
func (s *Store) InsertFrame(ctx context.Context, f Frame) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frames (id, name, sort_key) VALUES (?, ?, ?)`,
		f.ID, f.Name, f.SortKey)
	if err != nil {
		return fmt.Errorf("storyboard: insert frame: %w", err)
	}
	return nil
}

// UpdateSortKey rewrites the sort key of one frame.
func (s *Store) UpdateSortKey(ctx context.Context, id, sortKey string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE frames SET sort_key = ? WHERE id = ?`, sortKey, id)
	if err != nil {
		return fmt.Errorf("storyboard: update sort key: %w", err)
	}
	return nil
}

// RenameFrame rewrites the name of one frame.
func (s *Store) RenameFrame(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE frames SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("storyboard: rename frame: %w", err)
	}
	return nil
}

// DeleteFrame removes a frame; its thumbnail goes with it via the cascade.
func (s *Store) DeleteFrame(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM frames WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storyboard: delete frame: %w", err)
	}
	return nil
}

// PutThumbnail stores or replaces the PNG preview for a frame.
func (s *Store) PutThumbnail(ctx context.Context, frameID string, png []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thumbnails (frame_id, png) VALUES (?, ?)
		 ON CONFLICT(frame_id) DO UPDATE SET png = excluded.png`,
		frameID, png)
	if err != nil {
		return fmt.Errorf("storyboard: put thumbnail: %w", err)
	}
	return nil
}

// GetThumbnail returns the stored preview, or nil when absent. Absence is a
// normal state, not an error.
func (s *Store) GetThumbnail(ctx context.Context, frameID string) ([]byte, error) {
	var png []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT png FROM thumbnails WHERE frame_id = ?`, frameID).Scan(&png)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storyboard: get thumbnail: %w", err)
	}
	return png, nil
}
