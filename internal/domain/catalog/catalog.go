package catalog

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a referenced catalog document does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is the remote song catalog.
type Catalog interface {
	// RandomSongs samples up to limit songs in random order.
	RandomSongs(ctx context.Context, limit int) ([]Track, error)
	QuerySongs(ctx context.Context, q SongQuery) (Page, error)

	// Facets lists facet values with counts for artist, album, year, genre or source.
	Facets(ctx context.Context, kind FilterKind) ([]CountItem, error)
	SourcesByGenre(ctx context.Context, genreID string) ([]CountItem, error)
	// GenreIDByName resolves a genre document id. found is false when no
	// genre has that name.
	GenreIDByName(ctx context.Context, name string) (id string, found bool, err error)

	Playlists(ctx context.Context) ([]Playlist, error)
	PlaylistTitles(ctx context.Context, playlistID string) ([]string, error)
	// SongsByTitles returns songs whose title is in titles, in no particular order.
	SongsByTitles(ctx context.Context, titles []string) ([]Track, error)
	CreatePlaylist(ctx context.Context, name string) (Playlist, error)
	DeletePlaylist(ctx context.Context, playlistID string) error
	AddToPlaylist(ctx context.Context, playlistID, title string) error
	RemoveFromPlaylist(ctx context.Context, playlistID, title string) error

	SetLiked(ctx context.Context, songID string, liked bool) error
	// SetCoverPath records a cover path on a facet or playlist document,
	// addressed by id, or by name when id is empty.
	SetCoverPath(ctx context.Context, collection CoverCollection, id, name, path string) error
}

// BlobStore holds audio files and cover images.
type BlobStore interface {
	// URL returns a time-limited download URL for path.
	URL(ctx context.Context, path string) (string, error)
	Put(ctx context.Context, path string, body io.ReadSeeker, contentType string) error
}

// Preferences is a small string key/value store for client settings.
type Preferences interface {
	String(ctx context.Context, key string) (value string, ok bool, err error)
	SetString(ctx context.Context, key, value string) error
}
