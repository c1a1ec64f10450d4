package metrics

import (
	"context"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// InstrumentCatalog wraps c so every call is counted and timed by
// operation name.
func (m *Metrics) InstrumentCatalog(c catalog.Catalog) catalog.Catalog {
	return &instrumentedCatalog{next: c, m: m}
}

type instrumentedCatalog struct {
	next catalog.Catalog
	m    *Metrics
}

func (c *instrumentedCatalog) RandomSongs(ctx context.Context, limit int) ([]catalog.Track, error) {
	done := c.m.timer("random_songs")
	tracks, err := c.next.RandomSongs(ctx, limit)
	done(err)
	return tracks, err
}

func (c *instrumentedCatalog) QuerySongs(ctx context.Context, q catalog.SongQuery) (catalog.Page, error) {
	done := c.m.timer("query_songs")
	page, err := c.next.QuerySongs(ctx, q)
	done(err)
	return page, err
}

func (c *instrumentedCatalog) Facets(ctx context.Context, kind catalog.FilterKind) ([]catalog.CountItem, error) {
	done := c.m.timer("facets")
	items, err := c.next.Facets(ctx, kind)
	done(err)
	return items, err
}

func (c *instrumentedCatalog) SourcesByGenre(ctx context.Context, genreID string) ([]catalog.CountItem, error) {
	done := c.m.timer("sources_by_genre")
	items, err := c.next.SourcesByGenre(ctx, genreID)
	done(err)
	return items, err
}

func (c *instrumentedCatalog) GenreIDByName(ctx context.Context, name string) (string, bool, error) {
	done := c.m.timer("genre_id_by_name")
	id, found, err := c.next.GenreIDByName(ctx, name)
	done(err)
	return id, found, err
}

func (c *instrumentedCatalog) Playlists(ctx context.Context) ([]catalog.Playlist, error) {
	done := c.m.timer("playlists")
	pls, err := c.next.Playlists(ctx)
	done(err)
	return pls, err
}

func (c *instrumentedCatalog) PlaylistTitles(ctx context.Context, playlistID string) ([]string, error) {
	done := c.m.timer("playlist_titles")
	titles, err := c.next.PlaylistTitles(ctx, playlistID)
	done(err)
	return titles, err
}

func (c *instrumentedCatalog) SongsByTitles(ctx context.Context, titles []string) ([]catalog.Track, error) {
	done := c.m.timer("songs_by_titles")
	tracks, err := c.next.SongsByTitles(ctx, titles)
	done(err)
	return tracks, err
}

func (c *instrumentedCatalog) CreatePlaylist(ctx context.Context, name string) (catalog.Playlist, error) {
	done := c.m.timer("create_playlist")
	p, err := c.next.CreatePlaylist(ctx, name)
	done(err)
	return p, err
}

func (c *instrumentedCatalog) DeletePlaylist(ctx context.Context, playlistID string) error {
	done := c.m.timer("delete_playlist")
	err := c.next.DeletePlaylist(ctx, playlistID)
	done(err)
	return err
}

func (c *instrumentedCatalog) AddToPlaylist(ctx context.Context, playlistID, title string) error {
	done := c.m.timer("add_to_playlist")
	err := c.next.AddToPlaylist(ctx, playlistID, title)
	done(err)
	return err
}

func (c *instrumentedCatalog) RemoveFromPlaylist(ctx context.Context, playlistID, title string) error {
	done := c.m.timer("remove_from_playlist")
	err := c.next.RemoveFromPlaylist(ctx, playlistID, title)
	done(err)
	return err
}

func (c *instrumentedCatalog) SetLiked(ctx context.Context, songID string, liked bool) error {
	done := c.m.timer("set_liked")
	err := c.next.SetLiked(ctx, songID, liked)
	done(err)
	return err
}

func (c *instrumentedCatalog) SetCoverPath(ctx context.Context, collection catalog.CoverCollection, id, name, path string) error {
	done := c.m.timer("set_cover_path")
	err := c.next.SetCoverPath(ctx, collection, id, name, path)
	done(err)
	return err
}
