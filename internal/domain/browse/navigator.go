package browse

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/observe"
)

// LikeListener receives optimistic like changes, typically the player
// engine so the now-playing track stays in sync.
type LikeListener interface {
	UpdateLiked(songID string, liked bool)
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(n *Navigator) {
		n.cfg = cfg
	}
}

// WithCovers enables background cover loading.
func WithCovers(l *CoverLoader) Option {
	return func(n *Navigator) {
		n.covers = l
	}
}

// WithPreferences sets the store the view mode is persisted in.
func WithPreferences(p catalog.Preferences) Option {
	return func(n *Navigator) {
		n.prefs = p
	}
}

// WithBlobs sets the store cover uploads are written to.
func WithBlobs(b catalog.BlobStore) Option {
	return func(n *Navigator) {
		n.blobs = b
	}
}

// WithLikeListener registers a listener for ToggleLike.
func WithLikeListener(l LikeListener) Option {
	return func(n *Navigator) {
		n.likes = l
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) {
		n.now = now
	}
}

// Navigator holds the browse screen state and the navigation stack.
// Every mutation happens under mu; catalog calls run with mu released and
// their results are applied only if the screen generation is unchanged.
type Navigator struct {
	catalog catalog.Catalog
	covers  *CoverLoader
	prefs   catalog.Preferences
	blobs   catalog.BlobStore
	likes   LikeListener
	cfg     Config
	now     func() time.Time

	mu sync.Mutex

	screen       ScreenMode
	filter       catalog.FilterKind
	filterValue  string
	pickingGenre bool

	songs         []catalog.Track
	items         []catalog.CountItem
	playlists     []catalog.Playlist
	songCache     []catalog.Track
	itemCache     []catalog.CountItem
	playlistCache []catalog.Playlist

	stack  []Snapshot
	cursor Cursor
	// activeQuery is the query behind a filter-results screen, used to
	// page further with the cursor token.
	activeQuery    *catalog.SongQuery
	activePlaylist string

	inflight int
	gen      uint64
	lastErr  error
	viewMode ViewMode

	query  string
	search searchState

	hub observe.Hub[Event]
}

// NewNavigator creates a navigator on the random screen. The view mode
// preference is read once here.
func NewNavigator(cat catalog.Catalog, opts ...Option) *Navigator {
	n := &Navigator{
		catalog:  cat,
		cfg:      DefaultConfig(),
		now:      time.Now,
		screen:   ScreenRandom,
		viewMode: DefaultViewMode,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.loadViewMode()
	return n
}

// Subscribe registers fn for navigator events.
func (n *Navigator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return n.hub.Subscribe(fn)
}

// Close stops pending search and cover work.
func (n *Navigator) Close() {
	n.mu.Lock()
	n.search.cancelLocked()
	n.mu.Unlock()
	n.covers.CancelAll()
}

// LastError returns the error of the most recent failed operation, or nil
// once a later operation succeeds.
func (n *Navigator) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr
}

// CanGoBack reports whether the navigation stack is non-empty.
func (n *Navigator) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack) > 0
}

// View returns a copy of the current screen.
func (n *Navigator) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()

	v := View{
		Screen:       n.screen,
		Filter:       n.filter,
		FilterValue:  n.filterValue,
		PickingGenre: n.pickingGenre,
		Songs:        cloneSlice(n.songs),
		Items:        cloneSlice(n.items),
		Playlists:    cloneSlice(n.playlists),
		Query:        n.query,
		CanGoBack:    len(n.stack) > 0,
		CanLoadMore:  n.cursor.CanLoadMore,
		Loading:      n.inflight > 0,
		ViewMode:     n.viewMode,
	}
	if n.lastErr != nil {
		v.Error = n.lastErr.Error()
	}
	return v
}

// QueueFor returns a copy of the visible songs and the index of songID in
// it, for starting playback from the current list.
func (n *Navigator) QueueFor(songID string) ([]catalog.Track, int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, t := range n.songs {
		if t.ID == songID {
			return cloneSlice(n.songs), i, true
		}
	}
	return nil, -1, false
}

// PushNavigationState saves the current screen on the stack.
func (n *Navigator) PushNavigationState() {
	n.mu.Lock()
	n.pushLocked()
	n.mu.Unlock()
}

func (n *Navigator) pushLocked() {
	n.stack = append(n.stack, Snapshot{
		Mode:           n.screen,
		Filter:         n.filter,
		FilterValue:    n.filterValue,
		Items:          cloneSlice(n.items),
		Songs:          cloneSlice(n.songs),
		songCache:      cloneSlice(n.songCache),
		itemCache:      cloneSlice(n.itemCache),
		playlists:      cloneSlice(n.playlists),
		playlistCache:  cloneSlice(n.playlistCache),
		pickingGenre:   n.pickingGenre,
		cursor:         n.cursor.clone(),
		activeQuery:    n.activeQuery,
		activePlaylist: n.activePlaylist,
	})
}

// PopNavigationState restores the most recently pushed screen and clears
// the search text. It returns false when the stack is empty.
func (n *Navigator) PopNavigationState() bool {
	n.mu.Lock()
	if len(n.stack) == 0 {
		n.mu.Unlock()
		return false
	}
	s := n.stack[len(n.stack)-1]
	n.stack = n.stack[:len(n.stack)-1]

	n.gen++
	n.search.cancelLocked()
	n.query = ""
	n.screen = s.Mode
	n.filter = s.Filter
	n.filterValue = s.FilterValue
	n.items = cloneSlice(s.Items)
	n.songs = cloneSlice(s.Songs)
	n.songCache = cloneSlice(s.songCache)
	n.itemCache = cloneSlice(s.itemCache)
	n.playlists = cloneSlice(s.playlists)
	n.playlistCache = cloneSlice(s.playlistCache)
	n.pickingGenre = s.pickingGenre
	n.cursor = s.cursor.clone()
	n.activeQuery = s.activeQuery
	n.activePlaylist = s.activePlaylist
	mode := n.screen
	n.mu.Unlock()

	log.Info().Str("screen", string(mode)).Msg("Navigate back")
	n.covers.CancelAll()
	n.loadAllCovers()
	n.emit(Event{Kind: EventChanged})
	return true
}

// GoBack is PopNavigationState.
func (n *Navigator) GoBack() bool {
	return n.PopNavigationState()
}

// GoHome clears the stack and reloads random songs.
func (n *Navigator) GoHome(ctx context.Context) error {
	n.mu.Lock()
	n.stack = nil
	n.mu.Unlock()

	log.Info().Msg("Navigate home")
	return n.LoadRandomSongs(ctx)
}

// navigateLocked switches to a new screen. In-flight loads for the old
// screen are invalidated; the visible lists stay until the new load
// succeeds.
func (n *Navigator) navigateLocked(mode ScreenMode, kind catalog.FilterKind, value string) uint64 {
	n.gen++
	n.screen = mode
	n.filter = kind
	n.filterValue = value
	n.pickingGenre = false
	n.cursor.Reset()
	n.activeQuery = nil
	n.activePlaylist = ""
	n.search.cancelLocked()
	n.query = ""
	n.inflight++
	return n.gen
}

// complete finishes a load counted in inflight.
// apply runs under mu only when gen is still current and err is nil.
func (n *Navigator) complete(gen uint64, op string, err error, apply func()) (bool, error) {
	n.mu.Lock()
	n.inflight--
	current := gen == n.gen
	if current {
		if err != nil {
			n.lastErr = fmt.Errorf("%s: %w", op, err)
		} else {
			n.lastErr = nil
			apply()
		}
	}
	n.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("Browse operation failed")
		if current {
			n.emit(Event{Kind: EventError, Err: err})
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if current {
		n.emit(Event{Kind: EventChanged})
	}
	return current, nil
}

func (n *Navigator) emit(ev Event) {
	n.hub.Notify(ev)
}

// LoadRandomSongs replaces the song list with a fresh random sample on the
// random screen.
func (n *Navigator) LoadRandomSongs(ctx context.Context) error {
	n.mu.Lock()
	gen := n.navigateLocked(ScreenRandom, catalog.FilterNone, "")
	size := n.cfg.PageSize
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	tracks, err := n.catalog.RandomSongs(ctx, size)
	applied, err := n.complete(gen, "load random songs", err, func() {
		n.songs = tracks
		n.songCache = cloneSlice(tracks)
		n.cursor = newCursor("", len(tracks) > 0, tracks)
	})
	if applied {
		log.Info().Int("count", len(tracks)).Msg("Loaded random songs")
		n.replaceCovers(listSongs)
	}
	return err
}

// LoadMoreSongs appends the next page to the visible list: another random
// sample on the random screen, or the next page of a filtered query.
// It is a no-op while a load is in flight or when the cursor is exhausted.
func (n *Navigator) LoadMoreSongs(ctx context.Context) error {
	n.mu.Lock()
	if n.inflight > 0 || !n.cursor.CanLoadMore {
		n.mu.Unlock()
		return nil
	}
	var fetch func() (catalog.Page, error)
	switch {
	case n.screen == ScreenRandom:
		size := n.cfg.PageSize
		fetch = func() (catalog.Page, error) {
			tracks, err := n.catalog.RandomSongs(ctx, size)
			return catalog.Page{Tracks: tracks}, err
		}
	case n.screen == ScreenFilterResults && n.activeQuery != nil && n.cursor.Token != "":
		q := *n.activeQuery
		q.After = n.cursor.Token
		fetch = func() (catalog.Page, error) {
			return n.catalog.QuerySongs(ctx, q)
		}
	default:
		n.mu.Unlock()
		return nil
	}
	n.inflight++
	gen := n.gen
	paged := n.screen == ScreenFilterResults
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	page, err := fetch()
	var added []catalog.Track
	applied, err := n.complete(gen, "load more songs", err, func() {
		added = n.cursor.admit(page.Tracks)
		if len(added) == 0 {
			n.cursor.CanLoadMore = false
		} else {
			n.songCache = append(n.songCache, added...)
			n.songs, _ = appendUnique(n.songs, added)
		}
		if paged {
			n.cursor.Token = page.Next
			if page.Next == "" {
				n.cursor.CanLoadMore = false
			}
		}
	})
	if applied {
		log.Info().Int("added", len(added)).Msg("Loaded more songs")
		n.startSongCovers(added)
	}
	return err
}

// LoadBrowseItems shows the facet list for kind. The source facet starts
// with a genre list; picking a genre continues with LoadSourcesByGenre.
func (n *Navigator) LoadBrowseItems(ctx context.Context, kind catalog.FilterKind) error {
	if !kind.IsFacet() {
		return nil
	}

	n.mu.Lock()
	n.pushLocked()
	gen := n.navigateLocked(ScreenPickFilter, kind, "")
	fetchKind := kind
	if kind == catalog.FilterSource {
		n.pickingGenre = true
		fetchKind = catalog.FilterGenre
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	items, err := n.catalog.Facets(ctx, fetchKind)
	applied, err := n.complete(gen, "load "+string(kind)+" list", err, func() {
		n.items = items
		n.itemCache = cloneSlice(items)
	})
	if applied {
		log.Info().Str("filter", string(kind)).Int("count", len(items)).Msg("Loaded browse items")
		n.replaceCovers(listItems)
	}
	return err
}

// LoadSourcesByGenre shows the sources belonging to genreName. An unknown
// genre name is used as the genre id.
func (n *Navigator) LoadSourcesByGenre(ctx context.Context, genreName string) error {
	n.mu.Lock()
	n.pushLocked()
	gen := n.navigateLocked(ScreenPickFilter, catalog.FilterSource, genreName)
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	var items []catalog.CountItem
	genreID, found, err := n.catalog.GenreIDByName(ctx, genreName)
	if err == nil {
		if !found {
			genreID = genreName
		}
		items, err = n.catalog.SourcesByGenre(ctx, genreID)
	}
	applied, err := n.complete(gen, "load sources by genre", err, func() {
		n.items = items
		n.itemCache = cloneSlice(items)
	})
	if applied {
		log.Info().Str("genre", genreName).Int("count", len(items)).Msg("Loaded sources")
		n.replaceCovers(listItems)
	}
	return err
}

// LoadFilteredSongs shows the songs matching kind = value. Unknown kinds
// and unparsable years give an empty list.
func (n *Navigator) LoadFilteredSongs(ctx context.Context, kind catalog.FilterKind, value string) error {
	n.mu.Lock()
	n.pushLocked()
	gen := n.navigateLocked(ScreenFilterResults, kind, value)
	q, ok := n.queryFor(kind, value)
	if ok {
		n.activeQuery = &q
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	var page catalog.Page
	var err error
	if ok {
		page, err = n.catalog.QuerySongs(ctx, q)
	}
	applied, err := n.complete(gen, "load "+string(kind)+" songs", err, func() {
		n.songs = page.Tracks
		n.songCache = cloneSlice(page.Tracks)
		n.cursor = newCursor(page.Next, page.Next != "", page.Tracks)
	})
	if applied {
		log.Info().Str("filter", string(kind)).Str("value", value).Int("count", len(page.Tracks)).Msg("Loaded filtered songs")
		n.replaceCovers(listSongs)
	}
	return err
}

func (n *Navigator) queryFor(kind catalog.FilterKind, value string) (catalog.SongQuery, bool) {
	q := catalog.SongQuery{Text: value, Limit: n.cfg.PageSize}
	switch kind {
	case catalog.FilterArtist:
		q.Field = catalog.FieldArtist
	case catalog.FilterAlbum:
		q.Field = catalog.FieldAlbum
	case catalog.FilterGenre:
		q.Field = catalog.FieldGenre
	case catalog.FilterSource:
		q.Field = catalog.FieldSource
	case catalog.FilterYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return q, false
		}
		q.Field = catalog.FieldYear
		q.Text = ""
		q.Year = year
	case catalog.FilterLiked:
		q.Field = catalog.FieldLiked
		q.Text = ""
		q.Limit = n.cfg.LikedPageSize
	case catalog.FilterNew:
		q.Field = catalog.FieldCreatedSince
		q.Text = ""
		q.Since = n.now().Add(-n.cfg.NewSongsWindow)
	default:
		return q, false
	}
	return q, true
}

// LoadLikedSongs shows the liked songs.
func (n *Navigator) LoadLikedSongs(ctx context.Context) error {
	return n.LoadFilteredSongs(ctx, catalog.FilterLiked, LikedLabel)
}

// LoadNewSongs shows songs added within the configured window, newest first.
func (n *Navigator) LoadNewSongs(ctx context.Context) error {
	return n.LoadFilteredSongs(ctx, catalog.FilterNew, NewLabel)
}

// ToggleLike flips the liked flag of track locally and then persists it.
// A failed write is reported but not rolled back.
func (n *Navigator) ToggleLike(ctx context.Context, track catalog.Track) (bool, error) {
	liked := !track.Liked

	n.mu.Lock()
	for _, ts := range [][]catalog.Track{n.songs, n.songCache} {
		for i := range ts {
			if ts[i].ID == track.ID {
				ts[i].Liked = liked
			}
		}
	}
	n.mu.Unlock()
	if n.likes != nil {
		n.likes.UpdateLiked(track.ID, liked)
	}
	n.emit(Event{Kind: EventChanged})

	log.Info().Str("song", track.ID).Bool("liked", liked).Msg("Toggle like")
	if err := n.catalog.SetLiked(ctx, track.ID, liked); err != nil {
		n.fail("toggle like", err)
		return liked, fmt.Errorf("toggle like: %w", err)
	}
	return liked, nil
}

// fail records err outside the screen load path.
func (n *Navigator) fail(op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Browse operation failed")
	n.mu.Lock()
	n.lastErr = fmt.Errorf("%s: %w", op, err)
	n.mu.Unlock()
	n.emit(Event{Kind: EventError, Err: err})
}

// ViewMode returns the current layout preference.
func (n *Navigator) ViewMode() ViewMode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.viewMode
}

// SetViewMode changes and persists the layout preference.
func (n *Navigator) SetViewMode(ctx context.Context, m ViewMode) error {
	if _, ok := ParseViewMode(string(m)); !ok {
		return fmt.Errorf("unknown view mode %q", m)
	}
	n.mu.Lock()
	n.viewMode = m
	n.mu.Unlock()
	n.emit(Event{Kind: EventChanged})

	if n.prefs == nil {
		return nil
	}
	if err := n.prefs.SetString(ctx, viewModeKey, string(m)); err != nil {
		n.fail("save view mode", err)
		return fmt.Errorf("save view mode: %w", err)
	}
	return nil
}

func (n *Navigator) loadViewMode() {
	if n.prefs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, ok, err := n.prefs.String(ctx, viewModeKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read view mode preference")
		return
	}
	if !ok {
		return
	}
	if m, valid := ParseViewMode(s); valid {
		n.viewMode = m
	}
}

// replaceCovers cancels the covers of a replaced list and starts loading
// the new one.
func (n *Navigator) replaceCovers(list coverList) {
	if n.covers == nil {
		return
	}
	n.covers.cancel(list)
	switch list {
	case listSongs:
		n.mu.Lock()
		songs := cloneSlice(n.songs)
		n.mu.Unlock()
		n.startSongCovers(songs)
	case listItems:
		n.startItemCovers()
	case listPlaylists:
		n.startPlaylistCovers()
	}
}

func (n *Navigator) loadAllCovers() {
	if n.covers == nil {
		return
	}
	n.mu.Lock()
	songs := cloneSlice(n.songs)
	n.mu.Unlock()
	n.startSongCovers(songs)
	n.startItemCovers()
	n.startPlaylistCovers()
}

func (n *Navigator) startSongCovers(songs []catalog.Track) {
	if n.covers == nil {
		return
	}
	jobs := make([]coverJob, 0, len(songs))
	for _, t := range songs {
		if t.Cover != nil {
			continue
		}
		id := t.ID
		jobs = append(jobs, coverJob{id: id, ref: t.CoverRef, apply: func(img image.Image) {
			n.attachSongCover(id, img)
		}})
	}
	n.covers.start(listSongs, jobs)
}

func (n *Navigator) startItemCovers() {
	n.mu.Lock()
	var jobs []coverJob
	for _, it := range n.items {
		if it.Cover != nil {
			continue
		}
		id, key := it.ID, it.Key
		jobs = append(jobs, coverJob{id: id + "\x00" + key, ref: it.CoverRef, apply: func(img image.Image) {
			n.attachItemCover(id, key, img)
		}})
	}
	n.mu.Unlock()
	n.covers.start(listItems, jobs)
}

func (n *Navigator) startPlaylistCovers() {
	n.mu.Lock()
	var jobs []coverJob
	for _, p := range n.playlists {
		if p.Cover != nil {
			continue
		}
		id := p.ID
		jobs = append(jobs, coverJob{id: id, ref: p.CoverRef, apply: func(img image.Image) {
			n.attachPlaylistCover(id, img)
		}})
	}
	n.mu.Unlock()
	n.covers.start(listPlaylists, jobs)
}

func (n *Navigator) attachSongCover(id string, img image.Image) {
	n.mu.Lock()
	for _, ts := range [][]catalog.Track{n.songs, n.songCache} {
		for i := range ts {
			if ts[i].ID == id {
				ts[i].Cover = img
			}
		}
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventCovers})
}

func (n *Navigator) attachItemCover(id, key string, img image.Image) {
	n.mu.Lock()
	for _, its := range [][]catalog.CountItem{n.items, n.itemCache} {
		for i := range its {
			if its[i].ID == id && its[i].Key == key {
				its[i].Cover = img
			}
		}
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventCovers})
}

func (n *Navigator) attachPlaylistCover(id string, img image.Image) {
	n.mu.Lock()
	for _, ps := range [][]catalog.Playlist{n.playlists, n.playlistCache} {
		for i := range ps {
			if ps[i].ID == id {
				ps[i].Cover = img
			}
		}
	}
	n.mu.Unlock()
	n.emit(Event{Kind: EventCovers})
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
