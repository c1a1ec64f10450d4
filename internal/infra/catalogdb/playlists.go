package catalogdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// Playlists lists all playlists ordered by name, ignoring case.
func (s *Store) Playlists(ctx context.Context) ([]catalog.Playlist, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT id, name, cover_ref, titles FROM playlists ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	var out []catalog.Playlist
	for rows.Next() {
		var (
			p   catalog.Playlist
			raw string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.CoverRef, &raw); err != nil {
			return nil, fmt.Errorf("list playlists: %w", err)
		}
		titles, err := decodeTitles(raw)
		if err != nil {
			log.Warn().Err(err).Str("playlist", p.ID).Msg("Corrupt playlist titles")
		}
		p.SongCount = len(titles)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlaylistTitles returns the member titles of a playlist in stored order.
func (s *Store) PlaylistTitles(ctx context.Context, playlistID string) ([]string, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}
	return readTitles(ctx, db, playlistID)
}

// CreatePlaylist creates an empty playlist.
func (s *Store) CreatePlaylist(ctx context.Context, name string) (catalog.Playlist, error) {
	db, err := s.db.conn()
	if err != nil {
		return catalog.Playlist{}, err
	}

	p := catalog.Playlist{ID: uuid.NewString(), Name: name}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO playlists (id, name, titles) VALUES (?, ?, '[]')", p.ID, p.Name); err != nil {
		return catalog.Playlist{}, fmt.Errorf("create playlist: %w", err)
	}
	return p, nil
}

// DeletePlaylist removes a playlist.
func (s *Store) DeletePlaylist(ctx context.Context, playlistID string) error {
	db, err := s.db.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", playlistID)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete playlist %s: %w", playlistID, catalog.ErrNotFound)
	}
	return nil
}

// AddToPlaylist appends title unless it is already a member.
func (s *Store) AddToPlaylist(ctx context.Context, playlistID, title string) error {
	return s.updateTitles(ctx, playlistID, func(titles []string) []string {
		if lo.Contains(titles, title) {
			return titles
		}
		return append(titles, title)
	})
}

// RemoveFromPlaylist removes every occurrence of title.
func (s *Store) RemoveFromPlaylist(ctx context.Context, playlistID, title string) error {
	return s.updateTitles(ctx, playlistID, func(titles []string) []string {
		return lo.Without(titles, title)
	})
}

func (s *Store) updateTitles(ctx context.Context, playlistID string, update func([]string) []string) error {
	db, err := s.db.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	defer tx.Rollback()

	titles, err := readTitles(ctx, tx, playlistID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(update(titles))
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE playlists SET titles = ? WHERE id = ?", string(data), playlistID); err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	return tx.Commit()
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readTitles(ctx context.Context, q rowQueryer, playlistID string) ([]string, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT titles FROM playlists WHERE id = ?", playlistID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, err)
	}
	return decodeTitles(raw)
}

func decodeTitles(raw string) ([]string, error) {
	titles := []string{}
	if raw == "" {
		return titles, nil
	}
	if err := json.Unmarshal([]byte(raw), &titles); err != nil {
		return []string{}, fmt.Errorf("decode titles: %w", err)
	}
	return titles, nil
}
