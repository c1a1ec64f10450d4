package socketio

import (
	"testing"
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/domain/player"
)

func TestStateCompareKeys_DoesNotIncludePosition(t *testing.T) {
	// Clients interpolate seek and elapsed between pushes.
	for _, key := range stateCompareKeys {
		if key == "seek" || key == "elapsed" {
			t.Errorf("stateCompareKeys should not include %q", key)
		}
	}
}

func playingState(seek time.Duration) map[string]interface{} {
	return player.State{
		Status:   player.StatusPlay,
		Playing:  true,
		Current:  &catalog.Track{ID: "s1", Title: "So What", Artist: "Miles Davis"},
		Queue:    []catalog.Track{{ID: "s1"}, {ID: "s2"}},
		Position: seek,
		Duration: 545 * time.Second,
		Repeat:   player.RepeatOff,
	}.ToJSON()
}

func TestIsStateSame_FirstBroadcastIsDifferent(t *testing.T) {
	s := &Server{}
	if s.isStateSame(playingState(0)) {
		t.Error("isStateSame should return false before any state was saved")
	}
}

func TestIsStateSame_SeekOnlyChange_ReturnsTrue(t *testing.T) {
	s := &Server{}
	s.saveLastState(playingState(time.Second))

	if !s.isStateSame(playingState(42 * time.Second)) {
		t.Error("isStateSame should return true when only seek changed")
	}
}

func TestIsStateSame_LikedChange_ReturnsFalse(t *testing.T) {
	s := &Server{}
	s.saveLastState(playingState(0))

	liked := playingState(0)
	liked["liked"] = true

	if s.isStateSame(liked) {
		t.Error("isStateSame should return false when liked changed")
	}
}

func TestIsStateSame_TitleChange_ReturnsFalse(t *testing.T) {
	s := &Server{}

	baseState := map[string]interface{}{
		"status": "play",
		"title":  "Song A",
		"artist": "Artist",
	}
	s.saveLastState(baseState)

	titleChanged := map[string]interface{}{
		"status": "play",
		"title":  "Song B",
		"artist": "Artist",
	}

	if s.isStateSame(titleChanged) {
		t.Error("isStateSame should return false when title changed")
	}
}

func TestIsStateSame_ErrorAppears_ReturnsFalse(t *testing.T) {
	s := &Server{}

	s.saveLastState(map[string]interface{}{"status": "stop"})

	if s.isStateSame(map[string]interface{}{"status": "stop", "error": "no audio"}) {
		t.Error("isStateSame should return false when an error key appears")
	}
}
