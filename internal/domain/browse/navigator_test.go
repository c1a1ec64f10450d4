package browse_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

func testConfig() browse.Config {
	cfg := browse.DefaultConfig()
	cfg.SearchDelay = 20 * time.Millisecond
	return cfg
}

func newNavigator(cat catalog.Catalog, opts ...browse.Option) *browse.Navigator {
	opts = append([]browse.Option{browse.WithConfig(testConfig())}, opts...)
	return browse.NewNavigator(cat, opts...)
}

func TestNavigator_LoadRandomSongs(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b", "c")}}
	nav := newNavigator(cat)

	if err := nav.LoadRandomSongs(context.Background()); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}

	v := nav.View()
	if v.Screen != browse.ScreenRandom {
		t.Errorf("expected random screen, got %s", v.Screen)
	}
	if !equalIDs(v.Songs, "a", "b", "c") {
		t.Errorf("unexpected songs %v", songIDs(v.Songs))
	}
	if !v.CanLoadMore {
		t.Error("expected more pages after a non-empty page")
	}
	if v.Loading {
		t.Error("loading flag not cleared")
	}
}

func TestNavigator_LoadMoreSongsDeduplicates(t *testing.T) {
	tests := []struct {
		name         string
		second       []catalog.Track
		want         []string
		wantLoadMore bool
	}{
		{"appends only new songs", songs("b", "c", "d"), []string{"a", "b", "c", "d"}, true},
		{"subset exhausts cursor", songs("a", "c"), []string{"a", "b", "c"}, false},
		{"empty page exhausts cursor", nil, []string{"a", "b", "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b", "c"), tt.second}}
			nav := newNavigator(cat)
			ctx := context.Background()

			if err := nav.LoadRandomSongs(ctx); err != nil {
				t.Fatalf("LoadRandomSongs failed: %v", err)
			}
			if err := nav.LoadMoreSongs(ctx); err != nil {
				t.Fatalf("LoadMoreSongs failed: %v", err)
			}

			v := nav.View()
			if !equalIDs(v.Songs, tt.want...) {
				t.Errorf("expected %v, got %v", tt.want, songIDs(v.Songs))
			}
			if v.CanLoadMore != tt.wantLoadMore {
				t.Errorf("expected canLoadMore=%v, got %v", tt.wantLoadMore, v.CanLoadMore)
			}
		})
	}
}

func TestNavigator_LoadMoreNoOpWhenExhausted(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{nil, songs("x")}}
	nav := newNavigator(cat)
	ctx := context.Background()

	if err := nav.LoadRandomSongs(ctx); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}
	if err := nav.LoadMoreSongs(ctx); err != nil {
		t.Fatalf("LoadMoreSongs failed: %v", err)
	}
	if len(nav.View().Songs) != 0 {
		t.Error("load more must not run after an empty first page")
	}
}

func TestNavigator_LoadMoreFilterResultsUsesCursor(t *testing.T) {
	cat := &MockCatalog{
		QueryResponse: map[catalog.Field]catalog.Page{
			catalog.FieldArtist: {Tracks: songs("a", "b"), Next: "tok1"},
		},
		QueryPages: map[catalog.Cursor]catalog.Page{
			"tok1": {Tracks: songs("b", "c")},
		},
	}
	nav := newNavigator(cat)
	ctx := context.Background()

	if err := nav.LoadFilteredSongs(ctx, catalog.FilterArtist, "Artist"); err != nil {
		t.Fatalf("LoadFilteredSongs failed: %v", err)
	}
	if !nav.View().CanLoadMore {
		t.Fatal("expected a continuation token to allow loading more")
	}
	if err := nav.LoadMoreSongs(ctx); err != nil {
		t.Fatalf("LoadMoreSongs failed: %v", err)
	}

	v := nav.View()
	if !equalIDs(v.Songs, "a", "b", "c") {
		t.Errorf("unexpected songs %v", songIDs(v.Songs))
	}
	if v.CanLoadMore {
		t.Error("expected cursor exhausted after last page")
	}
	calls := cat.queryCalls()
	if len(calls) != 2 || calls[1].After != "tok1" || calls[1].Text != "Artist" {
		t.Errorf("unexpected query calls %+v", calls)
	}
}

func TestNavigator_LoadMoreDuringSearchSkipsHiddenSongs(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		visible []string
		page    []string
		shown   []string
		all     []string
	}{
		{
			name:    "filtered out songs are not loaded twice",
			query:   "title a",
			visible: []string{"a"},
			page:    []string{"b", "d"},
			shown:   []string{"a", "d"},
			all:     []string{"a", "b", "c", "d"},
		},
		{
			name:    "page of hidden songs exhausts the cursor",
			query:   "title c",
			visible: []string{"c"},
			page:    []string{"a", "b"},
			shown:   []string{"c"},
			all:     []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &MockCatalog{
				QueryResponse: map[catalog.Field]catalog.Page{
					catalog.FieldArtist: {Tracks: songs("a", "b", "c"), Next: "tok1"},
				},
				QueryPages: map[catalog.Cursor]catalog.Page{
					"tok1": {Tracks: songs(tt.page...), Next: "tok2"},
				},
			}
			nav := newNavigator(cat)
			ctx := context.Background()

			if err := nav.LoadFilteredSongs(ctx, catalog.FilterArtist, "Artist"); err != nil {
				t.Fatalf("LoadFilteredSongs failed: %v", err)
			}
			nav.Search(tt.query)
			if !waitFor(func() bool { return equalIDs(nav.View().Songs, tt.visible...) }) {
				t.Fatalf("search did not narrow the list: %v", songIDs(nav.View().Songs))
			}
			if err := nav.LoadMoreSongs(ctx); err != nil {
				t.Fatalf("LoadMoreSongs failed: %v", err)
			}
			if got := nav.View().Songs; !equalIDs(got, tt.shown...) {
				t.Errorf("visible songs = %v, want %v", songIDs(got), tt.shown)
			}

			nav.Search("")
			if got := nav.View().Songs; !equalIDs(got, tt.all...) {
				t.Errorf("restored songs = %v, want %v", songIDs(got), tt.all)
			}
		})
	}
}

func TestNavigator_LoadMoreAfterPopSkipsLoadedSongs(t *testing.T) {
	cat := &MockCatalog{
		RandomPages: [][]catalog.Track{songs("a", "b"), songs("b", "c")},
		QueryResponse: map[catalog.Field]catalog.Page{
			catalog.FieldArtist: {Tracks: songs("x")},
		},
	}
	nav := newNavigator(cat)
	ctx := context.Background()

	if err := nav.LoadRandomSongs(ctx); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}
	if err := nav.LoadFilteredSongs(ctx, catalog.FilterArtist, "Artist"); err != nil {
		t.Fatalf("LoadFilteredSongs failed: %v", err)
	}
	if !nav.PopNavigationState() {
		t.Fatal("expected a pushed screen")
	}
	if err := nav.LoadMoreSongs(ctx); err != nil {
		t.Fatalf("LoadMoreSongs failed: %v", err)
	}
	if got := nav.View().Songs; !equalIDs(got, "a", "b", "c") {
		t.Errorf("unexpected songs %v", songIDs(got))
	}
}

func TestNavigator_LoadMoreInFlightGuard(t *testing.T) {
	block := make(chan struct{})
	cat := &MockCatalog{
		QueryResponse: map[catalog.Field]catalog.Page{
			catalog.FieldGenre: {Tracks: songs("a"), Next: "t"},
		},
		QueryPages: map[catalog.Cursor]catalog.Page{"t": {Tracks: songs("b"), Next: "t2"}},
	}
	nav := newNavigator(cat)
	ctx := context.Background()
	if err := nav.LoadFilteredSongs(ctx, catalog.FilterGenre, "Rock"); err != nil {
		t.Fatalf("LoadFilteredSongs failed: %v", err)
	}

	cat.mu.Lock()
	cat.QueryBlock = block
	cat.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- nav.LoadMoreSongs(ctx) }()
	if !waitFor(func() bool { return len(cat.queryCalls()) == 2 }) {
		t.Fatal("first load more never started")
	}

	if err := nav.LoadMoreSongs(ctx); err != nil {
		t.Fatalf("guarded LoadMoreSongs failed: %v", err)
	}
	if n := len(cat.queryCalls()); n != 2 {
		t.Errorf("expected guarded call to be a no-op, got %d queries", n)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("LoadMoreSongs failed: %v", err)
	}
	if !equalIDs(nav.View().Songs, "a", "b") {
		t.Errorf("unexpected songs %v", songIDs(nav.View().Songs))
	}
}

func TestNavigator_NavigationRoundTrip(t *testing.T) {
	cat := &MockCatalog{
		RandomPages: [][]catalog.Track{songs("a", "b")},
		FacetsResponse: map[catalog.FilterKind][]catalog.CountItem{
			catalog.FilterArtist: {{ID: "ar1", Key: "Nina", Count: 3}},
		},
		QueryResponse: map[catalog.Field]catalog.Page{
			catalog.FieldArtist: {Tracks: songs("n1", "n2")},
		},
	}
	nav := newNavigator(cat)
	ctx := context.Background()

	if err := nav.LoadRandomSongs(ctx); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}
	home := nav.View()

	if err := nav.LoadBrowseItems(ctx, catalog.FilterArtist); err != nil {
		t.Fatalf("LoadBrowseItems failed: %v", err)
	}
	picking := nav.View()
	if picking.Screen != browse.ScreenPickFilter || len(picking.Items) != 1 {
		t.Fatalf("unexpected pick-filter view %+v", picking)
	}

	if err := nav.LoadFilteredSongs(ctx, catalog.FilterArtist, "Nina"); err != nil {
		t.Fatalf("LoadFilteredSongs failed: %v", err)
	}
	nav.Search("n")

	if !nav.PopNavigationState() {
		t.Fatal("expected pop to succeed")
	}
	v := nav.View()
	if v.Screen != browse.ScreenPickFilter || v.Filter != catalog.FilterArtist {
		t.Errorf("expected pick-filter artist, got %s %s", v.Screen, v.Filter)
	}
	if len(v.Items) != 1 || !v.Items[0].Same(picking.Items[0]) {
		t.Errorf("items not restored: %+v", v.Items)
	}
	if v.Query != "" {
		t.Errorf("expected search cleared, got %q", v.Query)
	}

	if !nav.GoBack() {
		t.Fatal("expected second pop to succeed")
	}
	v = nav.View()
	if v.Screen != browse.ScreenRandom || !equalIDs(v.Songs, songIDs(home.Songs)...) {
		t.Errorf("home not restored: %s %v", v.Screen, songIDs(v.Songs))
	}
	if v.CanGoBack {
		t.Error("stack should be empty")
	}
	if nav.PopNavigationState() {
		t.Error("pop on empty stack must return false")
	}
}

func TestNavigator_PushedSnapshotIsImmutable(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b"), songs("c")}}
	nav := newNavigator(cat)
	ctx := context.Background()
	if err := nav.LoadRandomSongs(ctx); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}

	nav.PushNavigationState()
	if err := nav.LoadMoreSongs(ctx); err != nil {
		t.Fatalf("LoadMoreSongs failed: %v", err)
	}
	if _, err := nav.ToggleLike(ctx, catalog.Track{ID: "a"}); err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}

	nav.PopNavigationState()
	v := nav.View()
	if !equalIDs(v.Songs, "a", "b") {
		t.Errorf("expected pre-push songs, got %v", songIDs(v.Songs))
	}
	if v.Songs[0].Liked {
		t.Error("pushed snapshot was mutated by a later like")
	}
}

func TestNavigator_GoHome(t *testing.T) {
	cat := &MockCatalog{
		RandomPages:    [][]catalog.Track{songs("a"), songs("z")},
		FacetsResponse: map[catalog.FilterKind][]catalog.CountItem{},
	}
	nav := newNavigator(cat)
	ctx := context.Background()
	_ = nav.LoadRandomSongs(ctx)
	_ = nav.LoadBrowseItems(ctx, catalog.FilterGenre)
	_ = nav.LoadBrowseItems(ctx, catalog.FilterYear)

	if err := nav.GoHome(ctx); err != nil {
		t.Fatalf("GoHome failed: %v", err)
	}

	v := nav.View()
	if v.CanGoBack || v.Screen != browse.ScreenRandom || !equalIDs(v.Songs, "z") {
		t.Errorf("unexpected home view %+v", v)
	}
}

func TestNavigator_SourceFacetStartsWithGenres(t *testing.T) {
	cat := &MockCatalog{
		FacetsResponse: map[catalog.FilterKind][]catalog.CountItem{
			catalog.FilterGenre: {{ID: "g1", Key: "Jazz", Count: 4}},
		},
		Genres: map[string]string{"Jazz": "g1"},
		SourcesResponse: map[string][]catalog.CountItem{
			"g1":   {{ID: "s1", Key: "Vinyl", Count: 2}},
			"Folk": {{ID: "s2", Key: "Tape", Count: 1}},
		},
	}
	nav := newNavigator(cat)
	ctx := context.Background()

	if err := nav.LoadBrowseItems(ctx, catalog.FilterSource); err != nil {
		t.Fatalf("LoadBrowseItems failed: %v", err)
	}
	v := nav.View()
	if !v.PickingGenre || v.Filter != catalog.FilterSource || len(v.Items) != 1 || v.Items[0].Key != "Jazz" {
		t.Fatalf("expected genre list for source facet, got %+v", v)
	}

	if err := nav.LoadSourcesByGenre(ctx, "Jazz"); err != nil {
		t.Fatalf("LoadSourcesByGenre failed: %v", err)
	}
	v = nav.View()
	if v.PickingGenre || len(v.Items) != 1 || v.Items[0].Key != "Vinyl" || v.FilterValue != "Jazz" {
		t.Errorf("unexpected sources view %+v", v)
	}

	if err := nav.LoadSourcesByGenre(ctx, "Folk"); err != nil {
		t.Fatalf("LoadSourcesByGenre failed: %v", err)
	}
	if got := cat.SourcesCalledWith; len(got) != 2 || got[0] != "g1" || got[1] != "Folk" {
		t.Errorf("expected genre name fallback, got %v", got)
	}
}

func TestNavigator_LoadBrowseItemsIgnoresNonFacet(t *testing.T) {
	cat := &MockCatalog{}
	nav := newNavigator(cat)
	if err := nav.LoadBrowseItems(context.Background(), catalog.FilterLiked); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(cat.FacetsCalls) != 0 || nav.CanGoBack() {
		t.Error("non-facet kinds must not navigate")
	}
}

func TestNavigator_LoadFilteredSongsDispatch(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		kind      catalog.FilterKind
		value     string
		wantField catalog.Field
		wantQuery bool
		check     func(t *testing.T, q catalog.SongQuery)
	}{
		{"artist", catalog.FilterArtist, "Nina", catalog.FieldArtist, true, func(t *testing.T, q catalog.SongQuery) {
			if q.Text != "Nina" || q.Limit != 50 {
				t.Errorf("unexpected query %+v", q)
			}
		}},
		{"album", catalog.FilterAlbum, "Blue", catalog.FieldAlbum, true, nil},
		{"genre", catalog.FilterGenre, "Jazz", catalog.FieldGenre, true, nil},
		{"source", catalog.FilterSource, "Vinyl", catalog.FieldSource, true, nil},
		{"year", catalog.FilterYear, "1971", catalog.FieldYear, true, func(t *testing.T, q catalog.SongQuery) {
			if q.Year != 1971 {
				t.Errorf("expected year 1971, got %d", q.Year)
			}
		}},
		{"bad year", catalog.FilterYear, "seventies", "", false, nil},
		{"liked", catalog.FilterLiked, browse.LikedLabel, catalog.FieldLiked, true, func(t *testing.T, q catalog.SongQuery) {
			if q.Limit != 100 {
				t.Errorf("expected liked limit 100, got %d", q.Limit)
			}
		}},
		{"new", catalog.FilterNew, browse.NewLabel, catalog.FieldCreatedSince, true, func(t *testing.T, q catalog.SongQuery) {
			if !q.Since.Equal(now.Add(-7 * 24 * time.Hour)) {
				t.Errorf("unexpected since %v", q.Since)
			}
		}},
		{"unknown", catalog.FilterKind("composer"), "Bach", "", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &MockCatalog{QueryResponse: map[catalog.Field]catalog.Page{
				tt.wantField: {Tracks: songs("x")},
			}}
			nav := newNavigator(cat, browse.WithClock(func() time.Time { return now }))

			if err := nav.LoadFilteredSongs(context.Background(), tt.kind, tt.value); err != nil {
				t.Fatalf("LoadFilteredSongs failed: %v", err)
			}

			v := nav.View()
			if v.Screen != browse.ScreenFilterResults || v.FilterValue != tt.value {
				t.Errorf("unexpected view %s %q", v.Screen, v.FilterValue)
			}
			calls := cat.queryCalls()
			if !tt.wantQuery {
				if len(calls) != 0 || len(v.Songs) != 0 {
					t.Errorf("expected empty result without query, got %d calls", len(calls))
				}
				return
			}
			if len(calls) != 1 || calls[0].Field != tt.wantField {
				t.Fatalf("expected one %s query, got %+v", tt.wantField, calls)
			}
			if !equalIDs(v.Songs, "x") {
				t.Errorf("unexpected songs %v", songIDs(v.Songs))
			}
			if tt.check != nil {
				tt.check(t, calls[0])
			}
		})
	}
}

func TestNavigator_LikedAndNewLabels(t *testing.T) {
	cat := &MockCatalog{}
	nav := newNavigator(cat)
	ctx := context.Background()

	_ = nav.LoadLikedSongs(ctx)
	if v := nav.View(); v.Filter != catalog.FilterLiked || v.FilterValue != "LIKED" {
		t.Errorf("unexpected liked view %s %q", v.Filter, v.FilterValue)
	}
	_ = nav.LoadNewSongs(ctx)
	if v := nav.View(); v.Filter != catalog.FilterNew || v.FilterValue != "NEW" {
		t.Errorf("unexpected new view %s %q", v.Filter, v.FilterValue)
	}
}

func TestNavigator_FailureKeepsPriorList(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b")}}
	nav := newNavigator(cat)
	ctx := context.Background()
	if err := nav.LoadRandomSongs(ctx); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}

	var errorEvents atomic.Int32
	nav.Subscribe(func(ev browse.Event) {
		if ev.Kind == browse.EventError {
			errorEvents.Add(1)
		}
	})

	cat.mu.Lock()
	cat.RandomError = errBackend
	cat.mu.Unlock()

	err := nav.LoadRandomSongs(ctx)
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	v := nav.View()
	if !equalIDs(v.Songs, "a", "b") {
		t.Errorf("prior list lost: %v", songIDs(v.Songs))
	}
	if v.Loading {
		t.Error("loading flag not cleared after failure")
	}
	if !errors.Is(nav.LastError(), errBackend) || v.Error == "" {
		t.Errorf("expected last error recorded, got %v", nav.LastError())
	}
	if errorEvents.Load() != 1 {
		t.Errorf("expected 1 error event, got %d", errorEvents.Load())
	}
}

func TestNavigator_StaleResultDropped(t *testing.T) {
	block := make(chan struct{})
	cat := &MockCatalog{
		QueryBlock: block,
		QueryResponse: map[catalog.Field]catalog.Page{
			catalog.FieldArtist: {Tracks: songs("late")},
		},
		PlaylistsResponse: []catalog.Playlist{{ID: "p1", Name: "Mix"}},
	}
	nav := newNavigator(cat)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- nav.LoadFilteredSongs(ctx, catalog.FilterArtist, "Nina") }()
	if !waitFor(func() bool { return len(cat.queryCalls()) == 1 }) {
		t.Fatal("query never started")
	}

	if err := nav.LoadPlaylists(ctx); err != nil {
		t.Fatalf("LoadPlaylists failed: %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("LoadFilteredSongs failed: %v", err)
	}

	v := nav.View()
	if v.Screen != browse.ScreenPlaylists {
		t.Errorf("expected playlists screen, got %s", v.Screen)
	}
	if len(v.Songs) != 0 {
		t.Errorf("stale result applied: %v", songIDs(v.Songs))
	}
}

func TestNavigator_ToggleLike(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b")}, SetLikedError: errBackend}
	likes := &MockLikes{}
	nav := newNavigator(cat, browse.WithLikeListener(likes))
	ctx := context.Background()
	_ = nav.LoadRandomSongs(ctx)

	liked, err := nav.ToggleLike(ctx, nav.View().Songs[1])
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !liked {
		t.Error("expected liked=true")
	}

	v := nav.View()
	if !v.Songs[1].Liked {
		t.Error("optimistic like rolled back")
	}
	if !likes.Calls["b"] {
		t.Error("like listener not notified")
	}
	if !cat.LikedCalls["b"] {
		t.Error("remote write not attempted")
	}
}

func TestNavigator_ViewModePreference(t *testing.T) {
	t.Run("defaults to grid4", func(t *testing.T) {
		nav := newNavigator(&MockCatalog{}, browse.WithPreferences(&MockPrefs{}))
		if nav.ViewMode() != browse.ViewGrid4 {
			t.Errorf("expected grid4, got %s", nav.ViewMode())
		}
	})

	t.Run("reads stored value", func(t *testing.T) {
		prefs := &MockPrefs{Values: map[string]string{"viewMode": "list"}}
		nav := newNavigator(&MockCatalog{}, browse.WithPreferences(prefs))
		if nav.ViewMode() != browse.ViewList {
			t.Errorf("expected list, got %s", nav.ViewMode())
		}
	})

	t.Run("ignores invalid stored value", func(t *testing.T) {
		prefs := &MockPrefs{Values: map[string]string{"viewMode": "mosaic"}}
		nav := newNavigator(&MockCatalog{}, browse.WithPreferences(prefs))
		if nav.ViewMode() != browse.ViewGrid4 {
			t.Errorf("expected grid4, got %s", nav.ViewMode())
		}
	})

	t.Run("persists changes", func(t *testing.T) {
		prefs := &MockPrefs{}
		nav := newNavigator(&MockCatalog{}, browse.WithPreferences(prefs))
		if err := nav.SetViewMode(context.Background(), browse.ViewGrid6); err != nil {
			t.Fatalf("SetViewMode failed: %v", err)
		}
		if prefs.Values["viewMode"] != "grid6" {
			t.Errorf("expected stored grid6, got %q", prefs.Values["viewMode"])
		}
		if err := nav.SetViewMode(context.Background(), "mosaic"); err == nil {
			t.Error("expected error for unknown mode")
		}
	})
}

func TestNavigator_QueueFor(t *testing.T) {
	cat := &MockCatalog{RandomPages: [][]catalog.Track{songs("a", "b", "c")}}
	nav := newNavigator(cat)
	_ = nav.LoadRandomSongs(context.Background())

	queue, idx, ok := nav.QueueFor("b")
	if !ok || idx != 1 || len(queue) != 3 {
		t.Errorf("unexpected queue %v idx %d ok %v", songIDs(queue), idx, ok)
	}
	if _, _, ok := nav.QueueFor("zz"); ok {
		t.Error("expected unknown song to be missing")
	}
}

func TestNavigator_CoversAttachedByID(t *testing.T) {
	tracks := songs("a", "b", "c")
	tracks[0].CoverRef = "covers/a.jpg"
	tracks[1].CoverRef = "covers/missing.jpg"
	cat := &MockCatalog{RandomPages: [][]catalog.Track{tracks}}
	loader := browse.NewCoverLoader(&MockFetcher{Known: map[string]bool{"covers/a.jpg": true}}, 2)
	nav := newNavigator(cat, browse.WithCovers(loader))

	if err := nav.LoadRandomSongs(context.Background()); err != nil {
		t.Fatalf("LoadRandomSongs failed: %v", err)
	}
	loader.Wait()

	v := nav.View()
	if v.Songs[0].Cover == nil {
		t.Error("expected cover attached to a")
	}
	if v.Songs[1].Cover != nil || v.Songs[2].Cover != nil {
		t.Error("failed or missing covers must stay empty")
	}
	if nav.LastError() != nil {
		t.Errorf("cover failures must not surface, got %v", nav.LastError())
	}
}
