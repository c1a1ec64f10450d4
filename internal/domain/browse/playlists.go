package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// ErrEmptyName is returned when a playlist name is blank.
var ErrEmptyName = errors.New("browse: playlist name is empty")

// LoadPlaylists shows all playlists.
func (n *Navigator) LoadPlaylists(ctx context.Context) error {
	n.mu.Lock()
	n.pushLocked()
	gen := n.navigateLocked(ScreenPlaylists, catalog.FilterNone, "")
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	playlists, err := n.catalog.Playlists(ctx)
	applied, err := n.complete(gen, "load playlists", err, func() {
		n.playlists = playlists
		n.playlistCache = cloneSlice(playlists)
	})
	if applied {
		log.Info().Int("count", len(playlists)).Msg("Loaded playlists")
		n.replaceCovers(listPlaylists)
	}
	return err
}

// LoadPlaylistSongs shows the songs of p in the playlist's stored order.
// Titles with no matching song are skipped.
func (n *Navigator) LoadPlaylistSongs(ctx context.Context, p catalog.Playlist) error {
	n.mu.Lock()
	n.pushLocked()
	gen := n.navigateLocked(ScreenFilterResults, catalog.FilterNone, p.Name)
	n.activePlaylist = p.ID
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	var ordered []catalog.Track
	titles, err := n.catalog.PlaylistTitles(ctx, p.ID)
	if err == nil && len(titles) > 0 {
		var found []catalog.Track
		found, err = n.catalog.SongsByTitles(ctx, lo.Uniq(titles))
		ordered = orderByTitles(found, titles)
	}
	applied, err := n.complete(gen, "load playlist songs", err, func() {
		n.songs = ordered
		n.songCache = cloneSlice(ordered)
	})
	if applied {
		log.Info().Str("playlist", p.ID).Int("count", len(ordered)).Msg("Loaded playlist songs")
		n.replaceCovers(listSongs)
	}
	return err
}

// orderByTitles returns, for each title in order, the first track with
// that title.
func orderByTitles(tracks []catalog.Track, titles []string) []catalog.Track {
	byTitle := make(map[string]catalog.Track, len(tracks))
	for _, t := range tracks {
		if _, ok := byTitle[t.Title]; !ok {
			byTitle[t.Title] = t
		}
	}
	out := make([]catalog.Track, 0, len(titles))
	for _, title := range titles {
		if t, ok := byTitle[title]; ok {
			out = append(out, t)
		}
	}
	return out
}

// CreatePlaylist creates an empty playlist and inserts it at the front of
// the playlist list.
func (n *Navigator) CreatePlaylist(ctx context.Context, name string) (catalog.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return catalog.Playlist{}, ErrEmptyName
	}

	p, err := n.catalog.CreatePlaylist(ctx, name)
	if err != nil {
		n.fail("create playlist", err)
		return catalog.Playlist{}, fmt.Errorf("create playlist: %w", err)
	}

	n.mu.Lock()
	n.playlists = append([]catalog.Playlist{p}, n.playlists...)
	n.playlistCache = append([]catalog.Playlist{p}, n.playlistCache...)
	n.mu.Unlock()

	log.Info().Str("playlist", p.ID).Str("name", name).Msg("Created playlist")
	n.emit(Event{Kind: EventChanged})
	return p, nil
}

// DeletePlaylist removes a playlist from the catalog and the list.
func (n *Navigator) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := n.catalog.DeletePlaylist(ctx, playlistID); err != nil {
		n.fail("delete playlist", err)
		return fmt.Errorf("delete playlist: %w", err)
	}

	keep := func(p catalog.Playlist, _ int) bool { return p.ID != playlistID }
	n.mu.Lock()
	n.playlists = lo.Filter(n.playlists, keep)
	n.playlistCache = lo.Filter(n.playlistCache, keep)
	n.mu.Unlock()

	log.Info().Str("playlist", playlistID).Msg("Deleted playlist")
	n.emit(Event{Kind: EventChanged})
	return nil
}

// AddToPlaylist appends track to a playlist by title. A title already in
// the playlist is not added twice.
func (n *Navigator) AddToPlaylist(ctx context.Context, playlistID string, track catalog.Track) error {
	if err := n.catalog.AddToPlaylist(ctx, playlistID, track.Title); err != nil {
		n.fail("add to playlist", err)
		return fmt.Errorf("add to playlist: %w", err)
	}
	log.Info().Str("playlist", playlistID).Str("title", track.Title).Msg("Added to playlist")
	n.refreshPlaylistCount(ctx, playlistID)
	return nil
}

// RemoveFromPlaylist removes track's title from a playlist. When that
// playlist is on screen its songs with the title disappear too.
func (n *Navigator) RemoveFromPlaylist(ctx context.Context, playlistID string, track catalog.Track) error {
	if err := n.catalog.RemoveFromPlaylist(ctx, playlistID, track.Title); err != nil {
		n.fail("remove from playlist", err)
		return fmt.Errorf("remove from playlist: %w", err)
	}

	drop := func(t catalog.Track, _ int) bool { return t.Title != track.Title }
	n.mu.Lock()
	if n.activePlaylist == playlistID {
		n.songs = lo.Filter(n.songs, drop)
		n.songCache = lo.Filter(n.songCache, drop)
	}
	n.mu.Unlock()

	log.Info().Str("playlist", playlistID).Str("title", track.Title).Msg("Removed from playlist")
	n.refreshPlaylistCount(ctx, playlistID)
	return nil
}

// refreshPlaylistCount re-reads the playlist's title count. Failures only
// leave the count stale.
func (n *Navigator) refreshPlaylistCount(ctx context.Context, playlistID string) {
	titles, err := n.catalog.PlaylistTitles(ctx, playlistID)
	if err != nil {
		log.Warn().Err(err).Str("playlist", playlistID).Msg("Failed to refresh playlist count")
		n.emit(Event{Kind: EventChanged})
		return
	}

	n.mu.Lock()
	for _, ps := range [][]catalog.Playlist{n.playlists, n.playlistCache} {
		for i := range ps {
			if ps[i].ID == playlistID {
				ps[i].SongCount = len(titles)
			}
		}
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})
}
