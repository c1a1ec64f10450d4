// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/control"
	"github.com/edumarques81/stellar-online/internal/domain/player"
)

// Push events sent to clients.
const (
	EventPushState     = "pushState"
	EventPushBrowse    = "pushBrowse"
	EventCommandResult = "commandResult"
	EventCommandError  = "commandError"
)

// stateCompareKeys are the pushState fields that trigger a broadcast. seek
// and elapsed are left out: clients interpolate playback position locally.
var stateCompareKeys = []string{
	"status", "position", "duration", "total", "random", "repeat", "queueLen",
	"trackId", "title", "artist", "album", "liked", "coverRef", "error",
}

// Options tunes the server.
type Options struct {
	// MaxExternal caps non-loopback clients. Zero means unlimited.
	MaxExternal int
	// Debounce is the broadcast collapse window.
	Debounce time.Duration
	// CommandTimeout bounds each dispatched command.
	CommandTimeout time.Duration
}

// DefaultOptions returns the options used by the serve command.
func DefaultOptions() Options {
	return Options{
		MaxExternal:    4,
		Debounce:       100 * time.Millisecond,
		CommandTimeout: 15 * time.Second,
	}
}

// Server handles Socket.io connections and events.
type Server struct {
	io      *socket.Server
	handler http.Handler
	ctl     *control.Controller
	engine  *player.Engine
	nav     *browse.Navigator
	opts    Options

	limiter   *ClientLimiter
	debouncer *Debouncer
	unsubs    []func()

	mu      sync.RWMutex
	clients map[string]*socket.Socket

	stateMu   sync.Mutex
	lastState map[string]interface{}
}

// NewServer creates a Socket.io server dispatching client events to ctl and
// pushing engine and navigator changes to every client.
func NewServer(ctl *control.Controller, engine *player.Engine, nav *browse.Navigator, opts Options) (*Server, error) {
	sopts := socket.DefaultServerOptions()
	sopts.SetPingTimeout(20 * time.Second)
	sopts.SetPingInterval(25 * time.Second)
	sopts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	io := socket.NewServer(nil, sopts)

	s := &Server{
		io:      io,
		handler: io.ServeHandler(nil),
		ctl:     ctl,
		engine:  engine,
		nav:     nav,
		opts:    opts,
		limiter: NewClientLimiter(opts.MaxExternal),
		clients: make(map[string]*socket.Socket),
	}
	s.debouncer = NewDebouncer(opts.Debounce, map[Topic]func(){
		TopicState:  s.BroadcastState,
		TopicBrowse: s.BroadcastBrowse,
	})

	s.unsubs = append(s.unsubs,
		engine.Subscribe(func(player.State) { s.debouncer.Trigger(TopicState) }),
		nav.Subscribe(func(ev browse.Event) {
			if ev.Kind == browse.EventError {
				log.Warn().Err(ev.Err).Msg("Navigator error")
			}
			s.debouncer.Trigger(TopicBrowse)
		}),
	)

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		if evicted := s.limiter.Admit(clientID, addr); evicted != "" {
			s.evict(evicted)
		}

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		s.pushState(client)
		s.pushBrowse(client)

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Release(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("getBrowse", func(...any) {
			log.Debug().Str("id", clientID).Msg("getBrowse")
			s.pushBrowse(client)
		})

		// Every other event is a command; the event name is the first argument.
		client.OnAny(func(args ...any) {
			if len(args) == 0 {
				return
			}
			name, ok := args[0].(string)
			if !ok || name == "getState" || name == "getBrowse" {
				return
			}
			s.dispatch(client, name, args[1:])
		})
	})
}

// dispatch runs one command and reports the outcome to the sender only.
// State and browse changes reach every client through the broadcasts.
func (s *Server) dispatch(client *socket.Socket, name string, payload []any) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CommandTimeout)
	defer cancel()

	res, err := s.ctl.Dispatch(ctx, name, control.ArgsFrom(payload...))
	if err != nil {
		log.Error().Err(err).Str("id", string(client.Id())).Str("cmd", name).Msg("Command failed")
		client.Emit(EventCommandError, map[string]interface{}{
			"cmd":   name,
			"error": err.Error(),
		})
		return
	}
	if res != nil {
		client.Emit(EventCommandResult, map[string]interface{}{
			"cmd":    name,
			"result": res,
		})
	}
}

// evict disconnects the client the limiter dropped.
func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if ok {
		log.Info().Str("id", clientID).Msg("Evicting oldest external client")
		client.Disconnect(true)
	}
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit(EventPushState, s.engine.Snapshot().ToJSON())
}

// pushBrowse sends the current screen to a client.
func (s *Server) pushBrowse(client *socket.Socket) {
	client.Emit(EventPushBrowse, s.nav.View())
}

// BroadcastState sends state to all connected clients unless nothing but
// the playback position changed since the last broadcast.
func (s *Server) BroadcastState() {
	state := s.engine.Snapshot().ToJSON()
	if s.isStateSame(state) {
		return
	}
	s.saveLastState(state)

	s.io.Emit(EventPushState, state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		log.Debug().RawJSON("state", data).Int("clients", s.ClientCount()).Msg("Broadcast state")
	}
}

// BroadcastBrowse sends the current screen to all connected clients.
func (s *Server) BroadcastBrowse() {
	view := s.nav.View()
	s.io.Emit(EventPushBrowse, view)
	log.Debug().
		Str("screen", string(view.Screen)).
		Int("songs", len(view.Songs)).
		Int("items", len(view.Items)).
		Int("clients", s.ClientCount()).
		Msg("Broadcast browse")
}

func (s *Server) isStateSame(state map[string]interface{}) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.lastState == nil {
		return false
	}
	for _, key := range stateCompareKeys {
		prev, hadPrev := s.lastState[key]
		cur, hasCur := state[key]
		if hadPrev != hasCur || prev != cur {
			return false
		}
	}
	return true
}

func (s *Server) saveLastState(state map[string]interface{}) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastState = state
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops broadcasting and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.io.Close(nil)
	return nil
}
