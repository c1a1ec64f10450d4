// Package catalogdb is the SQLite catalog backend: songs, facet documents,
// playlists and client preferences.
package catalogdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the catalog database.
	DefaultDBPath = "data/catalog.db"
)

var errNotOpen = errors.New("catalogdb: database not open")

// DB represents the SQLite catalog database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new catalog database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{path: path}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open catalog database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Catalog database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// conn returns the open handle.
func (d *DB) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, errNotOpen
	}
	return d.db, nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating catalog schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	-- Songs; rand is the sampling key, title_lower backs prefix search
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		title_lower TEXT NOT NULL,
		audio_ref TEXT NOT NULL,
		cover_ref TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		genre TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		liked INTEGER NOT NULL DEFAULT 0,
		rand REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	-- Facet documents (artistas, albums, years, genres, sources) carry covers
	CREATE TABLE IF NOT EXISTS facets (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		cover_ref TEXT NOT NULL DEFAULT '',
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	-- Playlists store member titles as a JSON array
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cover_ref TEXT NOT NULL DEFAULT '',
		titles TEXT NOT NULL DEFAULT '[]',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_songs_rand ON songs(rand);
	CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title_lower, id);
	CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist);
	CREATE INDEX IF NOT EXISTS idx_songs_album ON songs(album);
	CREATE INDEX IF NOT EXISTS idx_songs_year ON songs(year);
	CREATE INDEX IF NOT EXISTS idx_songs_genre ON songs(genre, source);
	CREATE INDEX IF NOT EXISTS idx_songs_source ON songs(source);
	CREATE INDEX IF NOT EXISTS idx_songs_liked ON songs(liked);
	CREATE INDEX IF NOT EXISTS idx_songs_created ON songs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_facets_name ON facets(collection, name);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Catalog schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM catalog_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO catalog_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM catalog_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Ping checks that the database file is reachable.
func (d *DB) Ping(ctx context.Context) error {
	conn, err := d.conn()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// Stats returns catalog statistics.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errNotOpen
	}

	stats := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM songs", &stats.SongCount},
		{"SELECT COUNT(*) FROM songs WHERE liked = 1", &stats.LikedCount},
		{"SELECT COUNT(*) FROM facets", &stats.FacetCount},
		{"SELECT COUNT(*) FROM playlists", &stats.PlaylistCount},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")
	if lastImport, _ := d.getMeta("last_import"); lastImport != "" {
		stats.LastImport, _ = time.Parse(time.RFC3339, lastImport)
	}

	return stats, nil
}

// MarkImportComplete records the time of the last finished import.
func (d *DB) MarkImportComplete() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return errNotOpen
	}
	return d.setMeta("last_import", time.Now().Format(time.RFC3339))
}
