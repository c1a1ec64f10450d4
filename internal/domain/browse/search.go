package browse

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// searchState is the pending debounced search. It is guarded by the
// navigator's mu.
type searchState struct {
	timer  *time.Timer
	gen    uint64
	cancel context.CancelFunc
}

// cancelLocked stops the pending timer and any remote query. A timer that
// already fired sees a different generation and does nothing.
func (s *searchState) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Query returns the current search text.
func (n *Navigator) Query() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.query
}

// Search updates the search text. An empty query restores the unfiltered
// list immediately; anything else is evaluated after the search delay,
// replacing any evaluation still pending.
func (n *Navigator) Search(query string) {
	n.mu.Lock()
	n.search.cancelLocked()
	n.query = query

	if strings.TrimSpace(query) == "" {
		switch n.screen {
		case ScreenPickFilter:
			n.items = cloneSlice(n.itemCache)
		case ScreenPlaylists:
			n.playlists = cloneSlice(n.playlistCache)
		default:
			n.songs = cloneSlice(n.songCache)
		}
		n.mu.Unlock()
		n.emit(Event{Kind: EventChanged})
		return
	}

	gen := n.search.gen
	n.search.timer = time.AfterFunc(n.cfg.SearchDelay, func() {
		n.evaluateSearch(gen, query)
	})
	n.mu.Unlock()
}

func (n *Navigator) evaluateSearch(gen uint64, query string) {
	q := strings.ToLower(strings.TrimSpace(query))

	n.mu.Lock()
	if gen != n.search.gen {
		n.mu.Unlock()
		return
	}
	n.search.timer = nil

	switch {
	case n.screen == ScreenPickFilter:
		n.items = lo.Filter(n.itemCache, func(it catalog.CountItem, _ int) bool {
			return strings.Contains(strings.ToLower(it.Key), q)
		})
		n.mu.Unlock()
		n.emit(Event{Kind: EventChanged})
		return
	case n.screen == ScreenFilterResults || n.filter == catalog.FilterLiked:
		n.songs = lo.Filter(n.songCache, func(t catalog.Track, _ int) bool {
			return strings.Contains(strings.ToLower(t.Title), q) ||
				strings.Contains(strings.ToLower(t.Artist), q)
		})
		n.mu.Unlock()
		n.emit(Event{Kind: EventChanged})
		return
	case n.screen == ScreenPlaylists:
		n.playlists = lo.Filter(n.playlistCache, func(p catalog.Playlist, _ int) bool {
			return strings.Contains(strings.ToLower(p.Name), q)
		})
		n.mu.Unlock()
		n.emit(Event{Kind: EventChanged})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.search.cancel = cancel
	navGen := n.gen
	size := n.cfg.PageSize
	n.mu.Unlock()

	page, err := n.catalog.QuerySongs(ctx, catalog.SongQuery{
		Field: catalog.FieldTitlePrefix,
		Text:  q,
		Limit: size,
	})

	n.mu.Lock()
	if gen != n.search.gen || navGen != n.gen {
		n.mu.Unlock()
		return
	}
	n.search.cancel = nil
	if err == nil {
		n.songs = page.Tracks
		n.lastErr = nil
	}
	n.mu.Unlock()

	if err != nil {
		n.fail("search", err)
		return
	}
	log.Info().Str("query", q).Int("count", len(page.Tracks)).Msg("Search")
	n.emit(Event{Kind: EventChanged})
	n.replaceCovers(listSongs)
}
