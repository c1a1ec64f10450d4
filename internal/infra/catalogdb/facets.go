package catalogdb

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// FacetID returns the id a facet document without a stored row is listed
// under.
func FacetID(collection catalog.CoverCollection, name string) string {
	return uuid.NewMD5(idNamespace, []byte(string(collection)+":"+name)).String()
}

type facetRow struct {
	id       string
	coverRef string
}

// facetColumn is the songs column counted for a facet kind.
func facetColumn(kind catalog.FilterKind) (string, bool) {
	switch kind {
	case catalog.FilterArtist:
		return "artist", true
	case catalog.FilterAlbum:
		return "album", true
	case catalog.FilterYear:
		return "year", true
	case catalog.FilterGenre:
		return "genre", true
	case catalog.FilterSource:
		return "source", true
	}
	return "", false
}

// Facets counts songs per facet value. Artists and albums need at least
// the configured minimum count; years list only positive years, newest
// first; albums without a cover document use the first song cover.
func (s *Store) Facets(ctx context.Context, kind catalog.FilterKind) ([]catalog.CountItem, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}
	col, ok := facetColumn(kind)
	if !ok {
		return nil, fmt.Errorf("facets: %q is not a facet", kind)
	}
	collection, _ := catalog.CollectionFor(kind)

	minCount := 1
	if kind == catalog.FilterArtist || kind == catalog.FilterAlbum {
		minCount = max(s.minFacetCount, 1)
	}
	filter := col + " != ''"
	if kind == catalog.FilterYear {
		filter = "year > 0"
	}

	items, err := s.countFacet(ctx, db, collection, col, filter, nil, minCount, kind == catalog.FilterAlbum)
	if err != nil {
		return nil, fmt.Errorf("facets %s: %w", kind, err)
	}

	switch kind {
	case catalog.FilterYear:
		slices.SortStableFunc(items, func(a, b catalog.CountItem) int {
			ya, _ := strconv.Atoi(a.Key)
			yb, _ := strconv.Atoi(b.Key)
			return cmp.Compare(yb, ya)
		})
	case catalog.FilterAlbum:
		slices.SortStableFunc(items, func(a, b catalog.CountItem) int {
			return cmp.Compare(b.Count, a.Count)
		})
	default:
		sortByCountThenKey(items)
	}
	return items, nil
}

// countFacet groups songs by col. Rows are returned in key order so the
// stable sorts above have a deterministic tie order.
func (s *Store) countFacet(ctx context.Context, db *sql.DB, collection catalog.CoverCollection,
	col, filter string, args []any, minCount int, songCoverFallback bool) ([]catalog.CountItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT CAST(`+col+` AS TEXT), COUNT(*), COALESCE(MIN(NULLIF(cover_ref, '')), '')
		FROM songs WHERE `+filter+`
		GROUP BY `+col+` HAVING COUNT(*) >= ?
		ORDER BY `+col,
		append(args, minCount)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		items      []catalog.CountItem
		songCovers []string
	)
	for rows.Next() {
		var (
			it    catalog.CountItem
			cover string
		)
		if err := rows.Scan(&it.Key, &it.Count, &cover); err != nil {
			return nil, err
		}
		items = append(items, it)
		songCovers = append(songCovers, cover)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docs, err := s.facetRows(ctx, db, collection)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if doc, ok := docs[items[i].Key]; ok {
			items[i].ID = doc.id
			items[i].CoverRef = doc.coverRef
		} else {
			items[i].ID = FacetID(collection, items[i].Key)
		}
		if items[i].CoverRef == "" && songCoverFallback {
			items[i].CoverRef = songCovers[i]
		}
	}
	return items, nil
}

func (s *Store) facetRows(ctx context.Context, db *sql.DB, collection catalog.CoverCollection) (map[string]facetRow, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, cover_ref FROM facets WHERE collection = ? ORDER BY updated_at", string(collection))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]facetRow)
	for rows.Next() {
		var (
			name string
			row  facetRow
		)
		if err := rows.Scan(&row.id, &name, &row.coverRef); err != nil {
			return nil, err
		}
		out[name] = row
	}
	return out, rows.Err()
}

func sortByCountThenKey(items []catalog.CountItem) {
	slices.SortStableFunc(items, func(a, b catalog.CountItem) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Key), strings.ToLower(b.Key))
	})
}

// GenreIDByName resolves the id a genre is listed under.
func (s *Store) GenreIDByName(ctx context.Context, name string) (string, bool, error) {
	db, err := s.db.conn()
	if err != nil {
		return "", false, err
	}

	var id string
	err = db.QueryRowContext(ctx,
		"SELECT id FROM facets WHERE collection = ? AND name = ? LIMIT 1",
		string(catalog.CollectionGenres), name).Scan(&id)
	switch {
	case err == nil:
		return id, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("genre id %q: %w", name, err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs WHERE genre = ?", name).Scan(&n); err != nil {
		return "", false, fmt.Errorf("genre id %q: %w", name, err)
	}
	if n == 0 {
		return "", false, nil
	}
	return FacetID(catalog.CollectionGenres, name), true, nil
}

// SourcesByGenre counts the sources of songs in a genre. genreID is a
// genre document id, a derived facet id, or the genre name itself.
func (s *Store) SourcesByGenre(ctx context.Context, genreID string) ([]catalog.CountItem, error) {
	db, err := s.db.conn()
	if err != nil {
		return nil, err
	}

	genre, err := s.genreName(ctx, db, genreID)
	if err != nil {
		return nil, fmt.Errorf("sources by genre: %w", err)
	}
	items, err := s.countFacet(ctx, db, catalog.CollectionSources, "source",
		"source != '' AND genre = ?", []any{genre}, 1, false)
	if err != nil {
		return nil, fmt.Errorf("sources by genre: %w", err)
	}
	sortByCountThenKey(items)
	return items, nil
}

func (s *Store) genreName(ctx context.Context, db *sql.DB, genreID string) (string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM facets WHERE collection = ? AND id = ? LIMIT 1",
		string(catalog.CollectionGenres), genreID).Scan(&name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	rows, err := db.QueryContext(ctx, "SELECT DISTINCT genre FROM songs WHERE genre != ''")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var genres []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return "", err
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if g, ok := lo.Find(genres, func(g string) bool {
		return FacetID(catalog.CollectionGenres, g) == genreID
	}); ok {
		return g, nil
	}
	return genreID, nil
}

// UpsertFacet makes sure a facet document exists for name and returns its
// id. An existing cover is kept; coverRef only fills an empty one.
func (s *Store) UpsertFacet(ctx context.Context, collection catalog.CoverCollection, name, coverRef string) (string, error) {
	db, err := s.db.conn()
	if err != nil {
		return "", err
	}

	docs, err := s.facetRows(ctx, db, collection)
	if err != nil {
		return "", fmt.Errorf("upsert facet: %w", err)
	}
	id := FacetID(collection, name)
	if doc, ok := docs[name]; ok {
		id = doc.id
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO facets (collection, id, name, cover_ref, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			cover_ref = CASE WHEN facets.cover_ref = '' THEN excluded.cover_ref ELSE facets.cover_ref END
	`, string(collection), id, name, coverRef)
	if err != nil {
		return "", fmt.Errorf("upsert facet %s/%s: %w", collection, name, err)
	}
	return id, nil
}

// SetCoverPath stores path as the cover of a playlist or facet document.
// Facet documents are created when missing.
func (s *Store) SetCoverPath(ctx context.Context, collection catalog.CoverCollection, id, name, path string) error {
	db, err := s.db.conn()
	if err != nil {
		return err
	}

	if collection == catalog.CollectionPlaylists {
		res, err := db.ExecContext(ctx, "UPDATE playlists SET cover_ref = ? WHERE id = ?", path, id)
		if err != nil {
			return fmt.Errorf("set playlist cover: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("set playlist cover %s: %w", id, catalog.ErrNotFound)
		}
		return nil
	}

	if id == "" {
		id = FacetID(collection, name)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO facets (collection, id, name, cover_ref, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			cover_ref = excluded.cover_ref, name = excluded.name, updated_at = excluded.updated_at
	`, string(collection), id, name, path)
	if err != nil {
		return fmt.Errorf("set %s cover: %w", collection, err)
	}
	return nil
}
