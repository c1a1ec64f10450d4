package player

import (
	"context"
	"sync"
	"time"
)

// Media is the audio output the engine drives.
// onFinished is called once per natural end of the loaded track, on a
// goroutine owned by the backend.
type Media interface {
	Load(ctx context.Context, url string, onFinished func()) error
	Pause() error
	Resume() error
	Seek(d time.Duration) error
	Stop() error
	Position() time.Duration
	Duration() time.Duration
}

// AudioResolver turns a track's audio reference into a playable URL.
type AudioResolver interface {
	AudioURL(ctx context.Context, ref string) (string, error)
}

// AudioResolverFunc adapts a function to AudioResolver.
type AudioResolverFunc func(ctx context.Context, ref string) (string, error)

// AudioURL calls f.
func (f AudioResolverFunc) AudioURL(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SilentMedia is a Media that produces no sound. It tracks the loaded URL
// and a seek position so the engine can run headless.
type SilentMedia struct {
	mu       sync.Mutex
	url      string
	position time.Duration
	paused   bool
}

func (m *SilentMedia) Load(_ context.Context, url string, _ func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.position = 0
	m.paused = false
	return nil
}

func (m *SilentMedia) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
	return nil
}

func (m *SilentMedia) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	return nil
}

func (m *SilentMedia) Seek(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
	return nil
}

func (m *SilentMedia) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = ""
	m.position = 0
	return nil
}

func (m *SilentMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *SilentMedia) Duration() time.Duration { return 0 }

// URL returns the currently loaded URL.
func (m *SilentMedia) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}
