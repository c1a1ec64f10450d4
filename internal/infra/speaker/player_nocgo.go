//go:build !((linux && cgo) || windows || darwin)

package speaker

import (
	"context"
	"net/http"
	"time"
)

// Available reports whether this build can produce sound.
// Audio requires cgo for the native sound libraries.
const Available = false

// Player is a placeholder for builds without sound output.
type Player struct{}

// New always fails with ErrAudioUnavailable.
func New(*http.Client) (*Player, error) {
	return nil, ErrAudioUnavailable
}

func (p *Player) Load(context.Context, string, func()) error { return ErrAudioUnavailable }
func (p *Player) Pause() error                               { return nil }
func (p *Player) Resume() error                              { return nil }
func (p *Player) Seek(time.Duration) error                   { return nil }
func (p *Player) Stop() error                                { return nil }
func (p *Player) Position() time.Duration                    { return 0 }
func (p *Player) Duration() time.Duration                    { return 0 }
