// Package control maps named client commands onto the browse navigator and
// the player engine. Both transports dispatch through the same table so a
// command behaves the same over Socket.IO and REST.
package control

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/artwork"
	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/domain/player"
)

var (
	ErrUnknownCommand = errors.New("control: unknown command")
	ErrBadArgument    = errors.New("control: bad argument")
	// ErrNotVisible is returned for a song or item that is not on the
	// current screen.
	ErrNotVisible = errors.New("control: not on the current screen")
)

// Handler runs one command and returns an optional result payload.
type Handler func(ctx context.Context, args Args) (any, error)

// Controller owns the command table.
type Controller struct {
	nav      *browse.Navigator
	engine   *player.Engine
	handlers map[string]Handler
}

// New builds the command table over nav and engine.
func New(nav *browse.Navigator, engine *player.Engine) *Controller {
	c := &Controller{nav: nav, engine: engine}
	c.handlers = map[string]Handler{
		// Playback
		CmdPlay:            c.play,
		CmdPause:           c.simple(engine.Pause),
		CmdResume:          c.simple(engine.Resume),
		CmdTogglePlayPause: c.simple(engine.TogglePlayPause),
		CmdStop:            c.simple(engine.Stop),
		CmdNext:            c.withCtx(engine.Next),
		CmdPrevious:        c.withCtx(engine.Previous),
		CmdSeek:            c.seek,
		CmdToggleShuffle:   c.toggleShuffle,
		CmdToggleRepeat:    c.toggleRepeat,

		// Navigation
		CmdLoadRandom:     c.withCtx(nav.LoadRandomSongs),
		CmdLoadMore:       c.withCtx(nav.LoadMoreSongs),
		CmdBrowse:         c.browse,
		CmdGenreSources:   c.genreSources,
		CmdFilter:         c.filter,
		CmdLiked:          c.withCtx(nav.LoadLikedSongs),
		CmdNewSongs:       c.withCtx(nav.LoadNewSongs),
		CmdPlaylists:      c.withCtx(nav.LoadPlaylists),
		CmdOpenPlaylist:   c.openPlaylist,
		CmdBack:           c.back,
		CmdHome:           c.withCtx(nav.GoHome),
		CmdSearch:         c.search,
		CmdSetViewMode:    c.setViewMode,
		CmdToggleLike:     c.toggleLike,
		CmdCreatePlaylist: c.createPlaylist,
		CmdDeletePlaylist: c.deletePlaylist,
		CmdAddToPlaylist:  c.addToPlaylist,
		CmdRemoveFromList: c.removeFromPlaylist,
		CmdUploadCover:    c.uploadCover,
	}
	return c
}

// Names returns the registered command names, sorted.
func (c *Controller) Names() []string {
	names := lo.Keys(c.handlers)
	slices.Sort(names)
	return names
}

// Dispatch runs the named command.
func (c *Controller) Dispatch(ctx context.Context, name string, args Args) (any, error) {
	h, ok := c.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	log.Debug().Str("cmd", name).Interface("args", args).Msg("Dispatch command")
	return h(ctx, args)
}

func (c *Controller) simple(fn func() error) Handler {
	return func(context.Context, Args) (any, error) {
		return nil, fn()
	}
}

func (c *Controller) withCtx(fn func(context.Context) error) Handler {
	return func(ctx context.Context, _ Args) (any, error) {
		return nil, fn(ctx)
	}
}

// track finds songID on the current screen, falling back to the engine's
// current track.
func (c *Controller) track(songID string) (catalog.Track, error) {
	if queue, i, ok := c.nav.QueueFor(songID); ok {
		return queue[i], nil
	}
	if cur := c.engine.Snapshot().Current; cur != nil && cur.ID == songID {
		return *cur, nil
	}
	return catalog.Track{}, fmt.Errorf("%w: song %s", ErrNotVisible, songID)
}

func (c *Controller) playlist(playlistID string) (catalog.Playlist, error) {
	p, ok := lo.Find(c.nav.View().Playlists, func(p catalog.Playlist) bool {
		return p.ID == playlistID
	})
	if !ok {
		return catalog.Playlist{}, fmt.Errorf("%w: playlist %s", ErrNotVisible, playlistID)
	}
	return p, nil
}

// play starts songId with the visible list as the queue.
func (c *Controller) play(ctx context.Context, args Args) (any, error) {
	songID, err := args.String("songId")
	if err != nil {
		return nil, err
	}
	queue, i, ok := c.nav.QueueFor(songID)
	if !ok {
		return nil, fmt.Errorf("%w: song %s", ErrNotVisible, songID)
	}
	return nil, c.engine.Play(ctx, queue[i], queue, i)
}

func (c *Controller) seek(_ context.Context, args Args) (any, error) {
	key := "seconds"
	if _, ok := args[key]; !ok {
		key = "value"
	}
	secs, err := args.Float(key)
	if err != nil {
		return nil, err
	}
	if secs < 0 {
		return nil, fmt.Errorf("%w: seconds must not be negative", ErrBadArgument)
	}
	return nil, c.engine.Seek(time.Duration(secs * float64(time.Second)))
}

func (c *Controller) toggleShuffle(context.Context, Args) (any, error) {
	c.engine.ToggleShuffle()
	return map[string]any{"shuffle": c.engine.Snapshot().Shuffle}, nil
}

func (c *Controller) toggleRepeat(context.Context, Args) (any, error) {
	return map[string]any{"repeat": c.engine.ToggleRepeat()}, nil
}

func (c *Controller) kind(args Args) (catalog.FilterKind, error) {
	s, err := args.String("kind")
	if err != nil {
		return "", err
	}
	kind, ok := catalog.ParseFilterKind(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrBadArgument, s)
	}
	return kind, nil
}

func (c *Controller) browse(ctx context.Context, args Args) (any, error) {
	kind, err := c.kind(args)
	if err != nil {
		return nil, err
	}
	if !kind.IsFacet() {
		return nil, fmt.Errorf("%w: %q has no facet list", ErrBadArgument, kind)
	}
	return nil, c.nav.LoadBrowseItems(ctx, kind)
}

func (c *Controller) genreSources(ctx context.Context, args Args) (any, error) {
	genre, err := args.String("genre")
	if err != nil {
		return nil, err
	}
	return nil, c.nav.LoadSourcesByGenre(ctx, genre)
}

func (c *Controller) filter(ctx context.Context, args Args) (any, error) {
	kind, err := c.kind(args)
	if err != nil {
		return nil, err
	}
	value := args.StringOr("value", "")
	return nil, c.nav.LoadFilteredSongs(ctx, kind, value)
}

func (c *Controller) openPlaylist(ctx context.Context, args Args) (any, error) {
	id, err := args.String("playlistId")
	if err != nil {
		return nil, err
	}
	p, err := c.playlist(id)
	if err != nil {
		return nil, err
	}
	return nil, c.nav.LoadPlaylistSongs(ctx, p)
}

func (c *Controller) back(context.Context, Args) (any, error) {
	return map[string]any{"popped": c.nav.GoBack()}, nil
}

func (c *Controller) search(_ context.Context, args Args) (any, error) {
	c.nav.Search(args.StringOr("query", ""))
	return nil, nil
}

func (c *Controller) setViewMode(ctx context.Context, args Args) (any, error) {
	s, err := args.String("mode")
	if err != nil {
		return nil, err
	}
	mode, ok := browse.ParseViewMode(s)
	if !ok {
		return nil, fmt.Errorf("%w: unknown view mode %q", ErrBadArgument, s)
	}
	return nil, c.nav.SetViewMode(ctx, mode)
}

func (c *Controller) toggleLike(ctx context.Context, args Args) (any, error) {
	songID, err := args.String("songId")
	if err != nil {
		return nil, err
	}
	t, err := c.track(songID)
	if err != nil {
		return nil, err
	}
	liked, err := c.nav.ToggleLike(ctx, t)
	return map[string]any{"liked": liked}, err
}

func (c *Controller) createPlaylist(ctx context.Context, args Args) (any, error) {
	p, err := c.nav.CreatePlaylist(ctx, args.StringOr("name", ""))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Controller) deletePlaylist(ctx context.Context, args Args) (any, error) {
	id, err := args.String("playlistId")
	if err != nil {
		return nil, err
	}
	return nil, c.nav.DeletePlaylist(ctx, id)
}

func (c *Controller) playlistSong(args Args) (string, catalog.Track, error) {
	id, err := args.String("playlistId")
	if err != nil {
		return "", catalog.Track{}, err
	}
	songID, err := args.String("songId")
	if err != nil {
		return "", catalog.Track{}, err
	}
	t, err := c.track(songID)
	return id, t, err
}

func (c *Controller) addToPlaylist(ctx context.Context, args Args) (any, error) {
	id, t, err := c.playlistSong(args)
	if err != nil {
		return nil, err
	}
	return nil, c.nav.AddToPlaylist(ctx, id, t)
}

func (c *Controller) removeFromPlaylist(ctx context.Context, args Args) (any, error) {
	id, t, err := c.playlistSong(args)
	if err != nil {
		return nil, err
	}
	return nil, c.nav.RemoveFromPlaylist(ctx, id, t)
}

// uploadCover takes the image as base64 in "data".
func (c *Controller) uploadCover(ctx context.Context, args Args) (any, error) {
	data, err := args.String("data")
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: data is not base64: %v", ErrBadArgument, err)
	}
	target, err := c.CoverTarget(args)
	if err != nil {
		return nil, err
	}
	path, err := c.UploadCover(ctx, target, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path}, nil
}

// CoverTarget resolves the upload target named by args: a visible
// playlist by "playlistId", or a visible facet item by "itemId" on the
// current pick-filter screen.
func (c *Controller) CoverTarget(args Args) (browse.CoverTarget, error) {
	if id := args.StringOr("playlistId", ""); id != "" {
		p, err := c.playlist(id)
		if err != nil {
			return nil, err
		}
		return browse.PlaylistCover{Playlist: p}, nil
	}

	itemID, err := args.String("itemId")
	if err != nil {
		return nil, err
	}
	view := c.nav.View()
	kind := view.Filter
	if view.PickingGenre {
		kind = catalog.FilterSource
	}
	item, ok := lo.Find(view.Items, func(it catalog.CountItem) bool {
		return it.ID == itemID
	})
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotVisible, itemID)
	}
	return browse.FacetCover{Kind: kind, Item: item}, nil
}

// UploadCover decodes an image from r and stores it for target.
func (c *Controller) UploadCover(ctx context.Context, target browse.CoverTarget, r io.Reader) (string, error) {
	img, format, err := artwork.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	log.Debug().Str("format", format).Msg("Cover image decoded")
	return c.nav.UploadCover(ctx, target, img)
}
