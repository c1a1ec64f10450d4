//go:build (linux && cgo) || windows || darwin

package speaker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

// Available reports whether this build can produce sound.
const Available = true

// Player plays one track at a time through beep's speaker.
type Player struct {
	client     *http.Client
	sampleRate beep.SampleRate

	mu          sync.Mutex
	initialized bool
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl
	finished    bool
	gen         uint64
	onFinished  func()
}

// New creates a Player that downloads tracks with client.
func New(client *http.Client) (*Player, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return &Player{
		client:     client,
		sampleRate: beep.SampleRate(44100),
	}, nil
}

// Load downloads and starts playing url, replacing the current track.
func (p *Player) Load(ctx context.Context, url string, onFinished func()) error {
	data, contentType, err := fetch(ctx, p.client, url)
	if err != nil {
		return err
	}
	streamer, format, err := decode(data, isWAV(url, contentType))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		streamer.Close()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if !p.initialized {
		if err := speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return err
		}
		p.initialized = true
	}

	p.streamer = streamer
	p.format = format
	p.onFinished = onFinished
	p.playLocked()

	log.Debug().
		Int("sampleRate", int(format.SampleRate)).
		Dur("duration", format.SampleRate.D(streamer.Len())).
		Msg("Speaker track loaded")
	return nil
}

// playLocked queues the current streamer on the speaker.
func (p *Player) playLocked() {
	p.gen++
	gen := p.gen
	p.finished = false

	resampled := beep.Resample(4, p.format.SampleRate, p.sampleRate, p.streamer)
	p.ctrl = &beep.Ctrl{Streamer: resampled}
	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		// The callback runs on the speaker goroutine with the speaker lock held.
		go p.finish(gen)
	})))
}

func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.streamer == nil {
		p.mu.Unlock()
		return
	}
	p.finished = true
	cb := p.onFinished
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Pause pauses playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPausedLocked(true)
	return nil
}

// Resume continues playback; a finished track starts over.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return nil
	}
	if p.finished {
		return p.replayLocked()
	}
	p.setPausedLocked(false)
	return nil
}

func (p *Player) setPausedLocked(paused bool) {
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = paused
	speaker.Unlock()
}

func (p *Player) replayLocked() error {
	speaker.Lock()
	err := p.streamer.Seek(0)
	speaker.Unlock()
	if err != nil {
		return err
	}
	p.playLocked()
	return nil
}

// Seek moves within the loaded track.
func (p *Player) Seek(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return nil
	}
	if p.finished {
		if err := p.replayLocked(); err != nil {
			return err
		}
	}

	n := p.format.SampleRate.N(d)
	n = max(0, min(n, p.streamer.Len()-1))

	speaker.Lock()
	defer speaker.Unlock()
	return p.streamer.Seek(n)
}

// Stop stops playback without reporting a finish.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	p.gen++
	if p.initialized {
		speaker.Clear()
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.finished = false
	p.onFinished = nil
}

// Position returns the elapsed time of the loaded track.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

// Duration returns the length of the loaded track.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len())
}
