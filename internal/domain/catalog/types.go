// Package catalog defines the song catalog model shared by the player,
// browse navigation and the storage backends.
package catalog

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Track is a playable song from the remote catalog.
// Identity is ID only; Cover is attached lazily after a list loads.
type Track struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	AudioRef  string      `json:"audioRef"`
	CoverRef  string      `json:"coverRef,omitempty"`
	Artist    string      `json:"artist,omitempty"`
	Album     string      `json:"album,omitempty"`
	Year      int         `json:"year,omitempty"`
	Genre     string      `json:"genre,omitempty"`
	Source    string      `json:"source,omitempty"`
	Liked     bool        `json:"liked"`
	CreatedAt time.Time   `json:"createdAt,omitzero"`
	Cover     image.Image `json:"-"`
}

// Same reports whether t and o are the same catalog entry.
func (t Track) Same(o Track) bool {
	return t.ID == o.ID
}

// HasCover reports whether an image has been attached.
func (t Track) HasCover() bool {
	return t.Cover != nil
}

// CountItem is one facet value (an artist, album, year, genre or source)
// with the number of songs carrying it.
type CountItem struct {
	ID       string      `json:"id"`
	Key      string      `json:"key"`
	Count    int         `json:"count"`
	CoverRef string      `json:"coverRef,omitempty"`
	Cover    image.Image `json:"-"`
}

// Same compares by (ID, Key).
func (c CountItem) Same(o CountItem) bool {
	return c.ID == o.ID && c.Key == o.Key
}

// Label renders the item as shown in lists, e.g. "Rock (12)".
func (c CountItem) Label() string {
	return fmt.Sprintf("%s (%d)", c.Key, c.Count)
}

// Playlist is a user playlist. Song membership is stored by title.
type Playlist struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CoverRef  string      `json:"coverRef,omitempty"`
	SongCount int         `json:"songCount"`
	Cover     image.Image `json:"-"`
}

// FilterKind selects the catalog attribute a browse screen filters on.
type FilterKind string

const (
	FilterNone   FilterKind = ""
	FilterArtist FilterKind = "artist"
	FilterAlbum  FilterKind = "album"
	FilterYear   FilterKind = "year"
	FilterGenre  FilterKind = "genre"
	FilterSource FilterKind = "source"
	FilterLiked  FilterKind = "liked"
	FilterNew    FilterKind = "new"
)

// ParseFilterKind maps a user supplied name to a FilterKind.
// Unknown names return false.
func ParseFilterKind(s string) (FilterKind, bool) {
	switch k := FilterKind(strings.ToLower(strings.TrimSpace(s))); k {
	case FilterArtist, FilterAlbum, FilterYear, FilterGenre, FilterSource, FilterLiked, FilterNew:
		return k, true
	case "none", "":
		return FilterNone, true
	}
	return FilterNone, false
}

// IsFacet reports whether the kind has a facet list (pick-filter screen).
func (k FilterKind) IsFacet() bool {
	switch k {
	case FilterArtist, FilterAlbum, FilterYear, FilterGenre, FilterSource:
		return true
	}
	return false
}

// Field is the song attribute a SongQuery matches on.
type Field string

const (
	FieldArtist       Field = "artist"
	FieldAlbum        Field = "album"
	FieldYear         Field = "year"
	FieldGenre        Field = "genre"
	FieldSource       Field = "source"
	FieldLiked        Field = "liked"
	FieldCreatedSince Field = "created_since"
	FieldTitlePrefix  Field = "title_prefix"
)

// Cursor is an opaque continuation token returned by QuerySongs.
// The empty cursor means "no further pages".
type Cursor string

// SongQuery describes one page of a filtered song listing.
type SongQuery struct {
	Field Field
	Text  string    // artist, album, genre, source or title prefix
	Year  int       // FieldYear
	Since time.Time // FieldCreatedSince
	Limit int
	After Cursor
}

// Page is one page of query results.
type Page struct {
	Tracks []Track
	Next   Cursor
}

// CoverCollection names the catalog collection a cover belongs to.
type CoverCollection string

const (
	CollectionArtists   CoverCollection = "artistas"
	CollectionAlbums    CoverCollection = "albums"
	CollectionYears     CoverCollection = "years"
	CollectionGenres    CoverCollection = "genres"
	CollectionSources   CoverCollection = "sources"
	CollectionPlaylists CoverCollection = "playlists"
)

// StorageFolder is the blob folder cover uploads for the collection go to.
func (c CoverCollection) StorageFolder() string {
	switch c {
	case CollectionArtists:
		return "CoverArtistas"
	case CollectionAlbums:
		return "CoverAlbums"
	case CollectionYears:
		return "CoverAños"
	case CollectionGenres:
		return "CoverGenres"
	case CollectionSources:
		return "CoverSources"
	case CollectionPlaylists:
		return "CoverPlaylists"
	}
	return "Covers"
}

// CollectionFor returns the cover collection of a facet kind.
func CollectionFor(kind FilterKind) (CoverCollection, bool) {
	switch kind {
	case FilterArtist:
		return CollectionArtists, true
	case FilterAlbum:
		return CollectionAlbums, true
	case FilterYear:
		return CollectionYears, true
	case FilterGenre:
		return CollectionGenres, true
	case FilterSource:
		return CollectionSources, true
	}
	return "", false
}
