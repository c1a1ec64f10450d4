// Package browse implements catalog navigation: the screen stack, paged
// song lists, facet drill-downs, playlists and debounced search.
package browse

import (
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// ScreenMode is the kind of list a screen shows.
type ScreenMode string

const (
	ScreenRandom        ScreenMode = "random"
	ScreenPickFilter    ScreenMode = "pick_filter"
	ScreenFilterResults ScreenMode = "filter_results"
	ScreenPlaylists     ScreenMode = "playlists"
)

// ViewMode is the persisted list layout preference.
type ViewMode string

const (
	ViewGrid2 ViewMode = "grid2"
	ViewGrid4 ViewMode = "grid4"
	ViewGrid6 ViewMode = "grid6"
	ViewList  ViewMode = "list"
)

// DefaultViewMode is used until the user picks one.
const DefaultViewMode = ViewGrid4

const viewModeKey = "viewMode"

// ParseViewMode validates a stored or user supplied view mode.
func ParseViewMode(s string) (ViewMode, bool) {
	switch m := ViewMode(s); m {
	case ViewGrid2, ViewGrid4, ViewGrid6, ViewList:
		return m, true
	}
	return "", false
}

// Labels shown as the filter value of the liked and new song screens.
const (
	LikedLabel = "LIKED"
	NewLabel   = "NEW"
)

// Config tunes page sizes and timings.
type Config struct {
	PageSize       int
	LikedPageSize  int
	NewSongsWindow time.Duration
	SearchDelay    time.Duration
}

// DefaultConfig returns the stock page sizes and a 500ms search debounce.
func DefaultConfig() Config {
	return Config{
		PageSize:       50,
		LikedPageSize:  100,
		NewSongsWindow: 7 * 24 * time.Hour,
		SearchDelay:    500 * time.Millisecond,
	}
}

// Snapshot is a saved screen on the navigation stack.
// Slices are private copies; a pushed snapshot never changes.
type Snapshot struct {
	Mode           ScreenMode
	Filter         catalog.FilterKind
	FilterValue    string
	Items          []catalog.CountItem
	Songs          []catalog.Track
	ScrollPosition float64

	songCache      []catalog.Track
	itemCache      []catalog.CountItem
	playlists      []catalog.Playlist
	playlistCache  []catalog.Playlist
	pickingGenre   bool
	cursor         Cursor
	activeQuery    *catalog.SongQuery
	activePlaylist string
}

// EventKind classifies navigator notifications.
type EventKind string

const (
	EventChanged EventKind = "changed"
	EventCovers  EventKind = "covers"
	EventError   EventKind = "error"
)

// Event is published to subscribers after state changes.
type Event struct {
	Kind EventKind
	Err  error
}

// View is a read-only copy of what the current screen shows.
type View struct {
	Screen       ScreenMode          `json:"screen"`
	Filter       catalog.FilterKind  `json:"filter"`
	FilterValue  string              `json:"filterValue"`
	PickingGenre bool                `json:"pickingGenre"`
	Songs        []catalog.Track     `json:"songs"`
	Items        []catalog.CountItem `json:"items"`
	Playlists    []catalog.Playlist  `json:"playlists"`
	Query        string              `json:"query"`
	CanGoBack    bool                `json:"canGoBack"`
	CanLoadMore  bool                `json:"canLoadMore"`
	Loading      bool                `json:"loading"`
	ViewMode     ViewMode            `json:"viewMode"`
	Error        string              `json:"error,omitempty"`
}
