package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/observe"
)

var (
	ErrEmptyQueue      = errors.New("player: queue is empty")
	ErrIndexOutOfRange = errors.New("player: start index out of range")
	ErrNoTrack         = errors.New("player: no current track")
)

// DefaultRestartThreshold is how far into a track Previous restarts it
// instead of moving back.
const DefaultRestartThreshold = 3 * time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for shuffling and shuffle
// navigation.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithRestartThreshold overrides DefaultRestartThreshold.
func WithRestartThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.restartThreshold = d
	}
}

// Engine owns the play queue and drives a Media backend.
// All state changes are serialized by mu; media loads run with mu
// released and are serialized by loadMu.
type Engine struct {
	mu               sync.Mutex
	loadMu           sync.Mutex
	media            Media
	resolver         AudioResolver
	rng              *rand.Rand
	restartThreshold time.Duration

	queue   Queue
	current *catalog.Track
	playing bool
	shuffle bool
	repeat  RepeatMode
	lastErr error

	// playbackID identifies the latest load; end-of-track callbacks
	// carrying an older id are ignored.
	playbackID uint64

	hub observe.Hub[State]
}

// NewEngine creates an engine with an empty queue, shuffle off and
// repeat off.
func NewEngine(media Media, resolver AudioResolver, opts ...Option) *Engine {
	e := &Engine{
		media:            media,
		resolver:         resolver,
		rng:              rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		restartThreshold: DefaultRestartThreshold,
		repeat:           RepeatOff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn to receive a snapshot after every state change.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	return e.hub.Subscribe(fn)
}

// Play starts track with queue as the play order. With shuffle enabled the
// selected track moves to index 0 and the rest of the queue is permuted.
// With shuffle off queue[startIndex] must be track.
func (e *Engine) Play(ctx context.Context, track catalog.Track, queue []catalog.Track, startIndex int) error {
	if len(queue) == 0 {
		return ErrEmptyQueue
	}
	if startIndex < 0 || startIndex >= len(queue) {
		return ErrIndexOutOfRange
	}
	log.Info().Str("track", track.ID).Int("index", startIndex).Int("queue", len(queue)).Msg("Play")

	e.mu.Lock()
	if !e.shuffle && !queue[startIndex].Same(track) {
		e.mu.Unlock()
		return ErrIndexOutOfRange
	}
	t := track
	e.current = &t
	e.queue.Original = cloneTracks(queue)
	if e.shuffle {
		rest := queue
		if queue[startIndex].Same(track) {
			rest = withoutIndex(queue, startIndex)
		} else if i := indexOf(queue, track.ID); i >= 0 {
			rest = withoutIndex(queue, i)
		}
		e.queue.Tracks = shuffleWithFirst(e.rng, track, rest)
		e.queue.Index = 0
	} else {
		e.queue.Tracks = cloneTracks(queue)
		e.queue.Index = startIndex
	}
	id := e.beginLoadLocked()
	e.mu.Unlock()

	return e.load(ctx, track, id)
}

// Next advances to the following track. With shuffle on the next index is
// drawn uniformly from the whole queue and may be the current one.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	n := len(e.queue.Tracks)
	if n == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.shuffle {
		e.queue.Index = e.rng.IntN(n)
	} else {
		e.queue.Index = (e.queue.Index + 1) % n
	}
	t := e.queue.Tracks[e.queue.Index]
	e.current = &t
	id := e.beginLoadLocked()
	e.mu.Unlock()

	log.Info().Str("track", t.ID).Msg("Next")
	return e.load(ctx, t, id)
}

// Previous restarts the current track when more than the restart threshold
// has elapsed, otherwise moves back one track (wrapping to the end), or to
// a random track with shuffle on.
func (e *Engine) Previous(ctx context.Context) error {
	e.mu.Lock()
	hasTrack := e.current != nil
	e.mu.Unlock()

	if hasTrack && e.media.Position() > e.restartThreshold {
		log.Info().Msg("Previous: restart track")
		if err := e.media.Seek(0); err != nil {
			return fmt.Errorf("restart track: %w", err)
		}
		e.notify()
		return nil
	}

	e.mu.Lock()
	n := len(e.queue.Tracks)
	if n == 0 {
		e.mu.Unlock()
		return nil
	}
	switch {
	case e.shuffle:
		e.queue.Index = e.rng.IntN(n)
	case e.queue.Index > 0:
		e.queue.Index--
	default:
		e.queue.Index = n - 1
	}
	t := e.queue.Tracks[e.queue.Index]
	e.current = &t
	id := e.beginLoadLocked()
	e.mu.Unlock()

	log.Info().Str("track", t.ID).Msg("Previous")
	return e.load(ctx, t, id)
}

// ToggleShuffle flips shuffle. The current track never changes: enabling
// puts it first and permutes the rest, disabling restores the original
// order positioned at the current track.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	e.shuffle = !e.shuffle
	if e.current != nil {
		cur := *e.current
		if e.shuffle {
			rest := make([]catalog.Track, 0, len(e.queue.Tracks))
			for _, t := range e.queue.Tracks {
				if !t.Same(cur) {
					rest = append(rest, t)
				}
			}
			e.queue.Tracks = shuffleWithFirst(e.rng, cur, rest)
			e.queue.Index = 0
		} else if i := indexOf(e.queue.Original, cur.ID); i >= 0 {
			e.queue.Tracks = cloneTracks(e.queue.Original)
			e.queue.Index = i
		}
	}
	shuffle := e.shuffle
	e.mu.Unlock()

	log.Info().Bool("shuffle", shuffle).Msg("ToggleShuffle")
	e.notify()
}

// ToggleRepeat cycles the repeat mode off → one → all → off.
func (e *Engine) ToggleRepeat() RepeatMode {
	e.mu.Lock()
	e.repeat = e.repeat.Next()
	mode := e.repeat
	e.mu.Unlock()

	log.Info().Str("repeat", string(mode)).Msg("ToggleRepeat")
	e.notify()
	return mode
}

// TogglePlayPause pauses a playing track or resumes a paused one.
func (e *Engine) TogglePlayPause() error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return nil
	}
	playing := e.playing
	e.mu.Unlock()

	if playing {
		return e.Pause()
	}
	return e.Resume()
}

// Pause pauses the media.
func (e *Engine) Pause() error {
	log.Info().Msg("Pause")
	if err := e.media.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()
	e.notify()
	return nil
}

// Resume resumes the current track.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return ErrNoTrack
	}
	e.mu.Unlock()

	log.Info().Msg("Resume")
	if err := e.media.Resume(); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	e.mu.Lock()
	e.playing = true
	e.mu.Unlock()
	e.notify()
	return nil
}

// Seek moves the play position of the current track.
func (e *Engine) Seek(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	log.Info().Dur("position", d).Msg("Seek")
	if err := e.media.Seek(d); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	e.notify()
	return nil
}

// Stop releases the media and clears the current track. The queue is kept.
func (e *Engine) Stop() error {
	log.Info().Msg("Stop")
	e.mu.Lock()
	e.playbackID++
	e.current = nil
	e.playing = false
	e.mu.Unlock()

	err := e.media.Stop()
	e.notify()
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// UpdateLiked applies a like toggle to every queued copy of the song and
// to the current track.
func (e *Engine) UpdateLiked(songID string, liked bool) {
	e.mu.Lock()
	changed := false
	for _, ts := range [][]catalog.Track{e.queue.Tracks, e.queue.Original} {
		for i := range ts {
			if ts[i].ID == songID {
				ts[i].Liked = liked
				changed = true
			}
		}
	}
	if e.current != nil && e.current.ID == songID {
		e.current.Liked = liked
		changed = true
	}
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	st := e.snapshotLocked()
	e.mu.Unlock()

	if st.Current != nil {
		st.Position = e.media.Position()
		st.Duration = e.media.Duration()
	}
	return st
}

func (e *Engine) snapshotLocked() State {
	q := e.queue.clone()
	st := State{
		Status:  StatusStop,
		Playing: e.playing,
		Queue:   q.Tracks,
		Index:   q.Index,
		Shuffle: e.shuffle,
		Repeat:  e.repeat,
	}
	if e.current != nil {
		t := *e.current
		st.Current = &t
		st.Status = StatusPause
		if e.playing {
			st.Status = StatusPlay
		}
	}
	if e.lastErr != nil {
		st.Error = e.lastErr.Error()
	}
	return st
}

func (e *Engine) notify() {
	e.hub.Notify(e.Snapshot())
}

// beginLoadLocked invalidates callbacks from the previous track.
func (e *Engine) beginLoadLocked() uint64 {
	e.playbackID++
	return e.playbackID
}

func (e *Engine) isCurrent(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return id == e.playbackID
}

func (e *Engine) load(ctx context.Context, track catalog.Track, id uint64) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if !e.isCurrent(id) {
		return nil
	}

	url, err := e.resolver.AudioURL(ctx, track.AudioRef)
	if err == nil {
		err = e.media.Load(ctx, url, func() { e.handleFinished(id) })
	}

	e.mu.Lock()
	stale := id != e.playbackID
	if !stale {
		e.playing = err == nil
		e.lastErr = err
	}
	e.mu.Unlock()

	if stale {
		// Stop or another load won while this one was in flight.
		if err == nil && !e.hasCurrent() {
			_ = e.media.Stop()
		}
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("track", track.ID).Msg("Failed to load track")
		e.notify()
		return fmt.Errorf("load track %s: %w", track.ID, err)
	}
	e.notify()
	return nil
}

func (e *Engine) hasCurrent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// handleFinished runs when the media reports the natural end of the track
// loaded as id.
func (e *Engine) handleFinished(id uint64) {
	e.mu.Lock()
	if id != e.playbackID || e.current == nil {
		e.mu.Unlock()
		return
	}
	mode := e.repeat
	advance := e.shuffle || e.queue.Index < len(e.queue.Tracks)-1
	e.mu.Unlock()

	log.Debug().Str("repeat", string(mode)).Msg("Track finished")

	switch mode {
	case RepeatOne:
		if err := e.media.Seek(0); err != nil {
			log.Error().Err(err).Msg("Failed to rewind track")
		}
		if err := e.media.Resume(); err != nil {
			log.Error().Err(err).Msg("Failed to restart track")
		}
		e.notify()
	case RepeatAll:
		if err := e.Next(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to advance queue")
		}
	default:
		if advance {
			if err := e.Next(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to advance queue")
			}
			return
		}
		e.mu.Lock()
		if id == e.playbackID {
			e.playing = false
		}
		e.mu.Unlock()
		e.notify()
	}
}
