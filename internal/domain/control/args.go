package control

import (
	"fmt"
	"strings"
)

// Command names, shared by the Socket.IO event names and the REST
// command endpoint.
const (
	CmdPlay            = "play"
	CmdPause           = "pause"
	CmdResume          = "resume"
	CmdTogglePlayPause = "togglePlayPause"
	CmdStop            = "stop"
	CmdNext            = "next"
	CmdPrevious        = "prev"
	CmdSeek            = "seek"
	CmdToggleShuffle   = "toggleShuffle"
	CmdToggleRepeat    = "toggleRepeat"

	CmdLoadRandom     = "loadRandom"
	CmdLoadMore       = "loadMore"
	CmdBrowse         = "browse"
	CmdGenreSources   = "genreSources"
	CmdFilter         = "filter"
	CmdLiked          = "liked"
	CmdNewSongs       = "newSongs"
	CmdPlaylists      = "playlists"
	CmdOpenPlaylist   = "openPlaylist"
	CmdBack           = "back"
	CmdHome           = "home"
	CmdSearch         = "search"
	CmdSetViewMode    = "setViewMode"
	CmdToggleLike     = "toggleLike"
	CmdCreatePlaylist = "createPlaylist"
	CmdDeletePlaylist = "deletePlaylist"
	CmdAddToPlaylist  = "addToPlaylist"
	CmdRemoveFromList = "removeFromPlaylist"
	CmdUploadCover    = "uploadCover"
)

// Args is a decoded JSON command payload.
type Args map[string]any

// ArgsFrom converts a Socket.IO event payload into Args. A bare string or
// number is accepted as the "value" argument.
func ArgsFrom(payload ...any) Args {
	if len(payload) == 0 {
		return Args{}
	}
	switch v := payload[0].(type) {
	case map[string]any:
		return Args(v)
	case nil:
		return Args{}
	default:
		return Args{"value": v}
	}
}

// String returns a required, non-blank string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrBadArgument, key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrBadArgument, key)
	}
	return s, nil
}

// StringOr returns a string argument or def when absent or not a string.
func (a Args) StringOr(key, def string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return def
}

// Float returns a required numeric argument.
func (a Args) Float(key string) (float64, error) {
	switch v := a[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("%w: missing %q", ErrBadArgument, key)
	}
	return 0, fmt.Errorf("%w: %q must be a number", ErrBadArgument, key)
}
