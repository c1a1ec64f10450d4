package catalogdb

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// idNamespace derives stable ids for songs and facet documents.
var idNamespace = uuid.MustParse("6f0c1f38-5a3e-4d8e-9a51-3b7c2e7f4a10")

const songColumns = "id, title, audio_ref, cover_ref, artist, album, year, genre, source, liked, created_at"

// Option configures a Store.
type Option func(*Store)

// WithMinFacetCount sets how many songs an artist or album needs to be
// listed as a facet.
func WithMinFacetCount(n int) Option {
	return func(s *Store) {
		s.minFacetCount = n
	}
}

// WithRandom overrides the sampling source, returning values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(s *Store) {
		s.random = f
	}
}

// WithShuffle overrides how a sampled page is shuffled. It has the
// signature of rand.Shuffle.
func WithShuffle(f func(n int, swap func(i, j int))) Option {
	return func(s *Store) {
		s.shuffle = f
	}
}

// WithClock overrides time.Now for song creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store implements catalog.Catalog and catalog.Preferences on a DB.
type Store struct {
	db            *DB
	minFacetCount int
	random        func() float64
	shuffle       func(n int, swap func(i, j int))
	now           func() time.Time
}

// NewStore creates a Store over an opened DB.
func NewStore(db *DB, opts ...Option) *Store {
	s := &Store{
		db:            db,
		minFacetCount: 2,
		random:        rand.Float64,
		shuffle:       rand.Shuffle,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SongID returns the id a song with audioRef is stored under.
func SongID(audioRef string) string {
	return uuid.NewMD5(idNamespace, []byte("song:"+audioRef)).String()
}

// RandomSongs samples up to limit songs: the nearest rand keys at or above
// a random pivot, topped up with the nearest keys below it. The combined
// page is shuffled.
func (s *Store) RandomSongs(ctx context.Context, limit int) ([]catalog.Track, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	pivot := s.random()
	tracks, err := querySongs(ctx, db,
		"SELECT "+songColumns+" FROM songs WHERE rand >= ? ORDER BY rand LIMIT ?", pivot, limit)
	if err != nil {
		return nil, fmt.Errorf("sample songs: %w", err)
	}
	if len(tracks) < limit {
		more, err := querySongs(ctx, db,
			"SELECT "+songColumns+" FROM songs WHERE rand < ? ORDER BY rand DESC LIMIT ?", pivot, limit-len(tracks))
		if err != nil {
			return nil, fmt.Errorf("sample songs: %w", err)
		}
		tracks = append(tracks, more...)
	}
	s.shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })

	log.Debug().Float64("pivot", pivot).Int("count", len(tracks)).Msg("Sampled songs")
	return tracks, nil
}

// pageKey is the decoded form of a catalog.Cursor: the sort key and id of
// the last row on the previous page.
type pageKey struct {
	Title   string `json:"s,omitempty"`
	Created int64  `json:"t,omitempty"`
	ID      string `json:"id"`
}

func encodeCursor(k pageKey) catalog.Cursor {
	data, _ := json.Marshal(k)
	return catalog.Cursor(base64.RawURLEncoding.EncodeToString(data))
}

func decodeCursor(c catalog.Cursor) (pageKey, error) {
	var k pageKey
	data, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return k, fmt.Errorf("invalid cursor: %w", err)
	}
	if err := json.Unmarshal(data, &k); err != nil {
		return k, fmt.Errorf("invalid cursor: %w", err)
	}
	return k, nil
}

// QuerySongs returns one page of songs matching q. Pages are ordered by
// title, except created-since pages which are newest first.
func (s *Store) QuerySongs(ctx context.Context, q catalog.SongQuery) (catalog.Page, error) {
	db, err := s.db.conn()
	if err != nil {
		return catalog.Page{}, err
	}

	var (
		where []string
		args  []any
	)
	switch q.Field {
	case catalog.FieldArtist:
		where, args = append(where, "artist = ?"), append(args, q.Text)
	case catalog.FieldAlbum:
		where, args = append(where, "album = ?"), append(args, q.Text)
	case catalog.FieldGenre:
		where, args = append(where, "genre = ?"), append(args, q.Text)
	case catalog.FieldSource:
		where, args = append(where, "source = ?"), append(args, q.Text)
	case catalog.FieldYear:
		where, args = append(where, "year = ?"), append(args, q.Year)
	case catalog.FieldLiked:
		where = append(where, "liked = 1")
	case catalog.FieldCreatedSince:
		where, args = append(where, "created_at >= ?"), append(args, q.Since.UnixMilli())
	case catalog.FieldTitlePrefix:
		prefix := strings.ToLower(q.Text)
		where = append(where, "title_lower >= ?", "title_lower <= ?")
		args = append(args, prefix, prefix+prefixEnd)
	default:
		return catalog.Page{}, fmt.Errorf("query songs: unsupported field %q", q.Field)
	}

	newest := q.Field == catalog.FieldCreatedSince
	if q.After != "" {
		k, err := decodeCursor(q.After)
		if err != nil {
			return catalog.Page{}, fmt.Errorf("query songs: %w", err)
		}
		if newest {
			where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
			args = append(args, k.Created, k.Created, k.ID)
		} else {
			where = append(where, "(title_lower > ? OR (title_lower = ? AND id > ?))")
			args = append(args, k.Title, k.Title, k.ID)
		}
	}

	order := "title_lower ASC, id ASC"
	if newest {
		order = "created_at DESC, id DESC"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + songColumns + " FROM songs WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + " LIMIT ?"
	tracks, err := querySongs(ctx, db, query, append(args, limit+1)...)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("query songs: %w", err)
	}

	page := catalog.Page{Tracks: tracks}
	if len(tracks) > limit {
		page.Tracks = tracks[:limit]
		last := page.Tracks[limit-1]
		if newest {
			page.Next = encodeCursor(pageKey{Created: last.CreatedAt.UnixMilli(), ID: last.ID})
		} else {
			page.Next = encodeCursor(pageKey{Title: strings.ToLower(last.Title), ID: last.ID})
		}
	}
	return page, nil
}

// SongsByTitles matches titles in batches of titleBatchSize.
func (s *Store) SongsByTitles(ctx context.Context, titles []string) ([]catalog.Track, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}

	var out []catalog.Track
	for _, batch := range lo.Chunk(lo.Uniq(titles), titleBatchSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := lo.Map(batch, func(t string, _ int) any { return t })
		tracks, err := querySongs(ctx, db,
			"SELECT "+songColumns+" FROM songs WHERE title IN ("+placeholders+") ORDER BY title_lower, id", args...)
		if err != nil {
			return nil, fmt.Errorf("songs by titles: %w", err)
		}
		out = append(out, tracks...)
	}
	return out, nil
}

// SetLiked updates a song's liked flag.
func (s *Store) SetLiked(ctx context.Context, songID string, liked bool) error {
	db, err := s.db.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "UPDATE songs SET liked = ? WHERE id = ?", liked, songID)
	if err != nil {
		return fmt.Errorf("set liked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set liked %s: %w", songID, catalog.ErrNotFound)
	}
	return nil
}

// UpsertSong inserts or updates a song and returns its id. New songs get a
// sampling key and a creation time; liked, rand and created_at of existing
// songs are kept.
func (s *Store) UpsertSong(ctx context.Context, t catalog.Track) (string, error) {
	db, err := s.db.conn()
	if err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = SongID(t.AudioRef)
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO songs (id, title, title_lower, audio_ref, cover_ref, artist, album, year,
			genre, source, liked, rand, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, title_lower = excluded.title_lower,
			audio_ref = excluded.audio_ref,
			cover_ref = CASE WHEN excluded.cover_ref != '' THEN excluded.cover_ref ELSE songs.cover_ref END,
			artist = excluded.artist, album = excluded.album, year = excluded.year,
			genre = excluded.genre, source = excluded.source
	`,
		t.ID, t.Title, strings.ToLower(t.Title), t.AudioRef, t.CoverRef, t.Artist, t.Album, t.Year,
		t.Genre, t.Source, t.Liked, s.random(), created.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("upsert song %q: %w", t.Title, err)
	}
	return t.ID, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySongs(ctx context.Context, q queryer, query string, args ...any) ([]catalog.Track, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []catalog.Track
	for rows.Next() {
		var (
			t       catalog.Track
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.AudioRef, &t.CoverRef, &t.Artist, &t.Album,
			&t.Year, &t.Genre, &t.Source, &t.Liked, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = time.UnixMilli(created)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// String reads a preference.
func (s *Store) String(ctx context.Context, key string) (string, bool, error) {
	db, err := s.db.conn()
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetString writes a preference.
func (s *Store) SetString(ctx context.Context, key, value string) error {
	db, err := s.db.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}
