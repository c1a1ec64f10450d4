package mpd

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Conn is the subset of Client the Player drives.
type Conn interface {
	Status() (mpd.Attrs, error)
	Replace(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	SeekCur(d time.Duration) error
}

// Player plays one track at a time through MPD. The queue holds only the
// loaded track, so MPD entering the stop state on its own means the track
// ended.
type Player struct {
	conn Conn

	mu         sync.Mutex
	loaded     bool
	finished   bool
	onFinished func()
}

// NewPlayer creates a Player over conn.
func NewPlayer(conn Conn) *Player {
	return &Player{conn: conn}
}

// Run consumes watcher events until ctx is done or events is closed.
func (p *Player) Run(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case subsystem, ok := <-events:
			if !ok {
				return
			}
			if subsystem == "player" {
				p.checkFinished()
			}
		}
	}
}

// checkFinished fires the finish callback once when MPD stopped on its own.
func (p *Player) checkFinished() {
	p.mu.Lock()
	if !p.loaded || p.finished {
		p.mu.Unlock()
		return
	}
	status, err := p.conn.Status()
	if err != nil {
		p.mu.Unlock()
		log.Warn().Err(err).Msg("Failed to read MPD status")
		return
	}
	if status["state"] != "stop" {
		p.mu.Unlock()
		return
	}
	p.finished = true
	cb := p.onFinished
	p.mu.Unlock()

	log.Debug().Msg("MPD track finished")
	if cb != nil {
		cb()
	}
}

// Load replaces the queue with url and starts playing it.
func (p *Player) Load(ctx context.Context, url string, onFinished func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.loaded = false
	if err := p.conn.Replace(url); err != nil {
		return err
	}

	p.loaded = true
	p.finished = false
	p.onFinished = onFinished
	return nil
}

// Pause pauses playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || p.finished {
		return nil
	}
	return p.conn.Pause(true)
}

// Resume continues playback; a finished track starts over.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil
	}
	if p.finished {
		p.finished = false
		return p.conn.Play(0)
	}
	return p.conn.Pause(false)
}

// Seek moves within the loaded track.
func (p *Player) Seek(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil
	}
	if p.finished {
		p.finished = false
		if err := p.conn.Play(0); err != nil {
			return err
		}
	}
	return p.conn.SeekCur(d)
}

// Stop stops playback without reporting a finish.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.onFinished = nil
	return p.conn.Stop()
}

// Position returns the elapsed time of the loaded track.
func (p *Player) Position() time.Duration {
	return p.statusDuration("elapsed")
}

// Duration returns the length of the loaded track, 0 when unknown.
func (p *Player) Duration() time.Duration {
	return p.statusDuration("duration")
}

func (p *Player) statusDuration(key string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return 0
	}
	status, err := p.conn.Status()
	if err != nil {
		return 0
	}
	secs, err := strconv.ParseFloat(status[key], 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
