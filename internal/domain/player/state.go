// Package player implements the playback queue engine: ordering, shuffle,
// repeat modes and end-of-track advancement on top of a Media backend.
package player

import (
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// Status constants for player state
const (
	StatusPlay  = "play"
	StatusPause = "pause"
	StatusStop  = "stop"
)

// RepeatMode controls what happens when a track ends.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// Next returns the mode that follows m in the off → one → all cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatOne
	case RepeatOne:
		return RepeatAll
	default:
		return RepeatOff
	}
}

// State is an immutable snapshot of the engine.
type State struct {
	Status   string
	Playing  bool
	Current  *catalog.Track
	Queue    []catalog.Track
	Index    int
	Shuffle  bool
	Repeat   RepeatMode
	Position time.Duration
	Duration time.Duration
	Error    string
}

// ToJSON returns the state as a map suitable for JSON serialization.
// This is the pushState payload sent to clients.
func (s State) ToJSON() map[string]interface{} {
	m := map[string]interface{}{
		"status":   s.Status,
		"position": s.Index,
		"seek":     s.Position.Milliseconds(),
		"duration": int(s.Duration.Seconds()),
		"elapsed":  FormatTime(s.Position.Seconds()),
		"total":    FormatTime(s.Duration.Seconds()),
		"random":   s.Shuffle,
		"repeat":   string(s.Repeat),
		"queueLen": len(s.Queue),
	}
	if s.Current != nil {
		m["trackId"] = s.Current.ID
		m["title"] = s.Current.Title
		m["artist"] = s.Current.Artist
		m["album"] = s.Current.Album
		m["liked"] = s.Current.Liked
		m["coverRef"] = s.Current.CoverRef
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	return m
}
