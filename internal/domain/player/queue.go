package player

import (
	"math/rand/v2"

	"github.com/samber/lo"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// Queue is the ordered list of tracks the engine traverses.
// Whenever Tracks is non-empty, 0 <= Index < len(Tracks) and
// Tracks[Index] is the engine's current track.
// Original keeps the order the queue was started with so shuffle can
// be undone.
type Queue struct {
	Tracks   []catalog.Track
	Index    int
	Original []catalog.Track
}

// Len returns the number of tracks in play order.
func (q *Queue) Len() int {
	return len(q.Tracks)
}

// Current returns the track at Index.
func (q *Queue) Current() (catalog.Track, bool) {
	if q.Index < 0 || q.Index >= len(q.Tracks) {
		return catalog.Track{}, false
	}
	return q.Tracks[q.Index], true
}

func (q *Queue) clone() Queue {
	return Queue{
		Tracks:   cloneTracks(q.Tracks),
		Index:    q.Index,
		Original: cloneTracks(q.Original),
	}
}

func cloneTracks(ts []catalog.Track) []catalog.Track {
	if ts == nil {
		return nil
	}
	out := make([]catalog.Track, len(ts))
	copy(out, ts)
	return out
}

func indexOf(ts []catalog.Track, id string) int {
	_, i, ok := lo.FindIndexOf(ts, func(t catalog.Track) bool { return t.ID == id })
	if !ok {
		return -1
	}
	return i
}

// shuffleWithFirst returns first followed by a random permutation of rest.
func shuffleWithFirst(rng *rand.Rand, first catalog.Track, rest []catalog.Track) []catalog.Track {
	out := make([]catalog.Track, 0, len(rest)+1)
	out = append(out, first)
	out = append(out, rest...)
	tail := out[1:]
	rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
	return out
}

// withoutIndex returns a copy of ts with the element at i removed.
func withoutIndex(ts []catalog.Track, i int) []catalog.Track {
	out := make([]catalog.Track, 0, len(ts))
	out = append(out, ts[:i]...)
	return append(out, ts[i+1:]...)
}
