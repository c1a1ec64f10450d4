package socketio

import (
	"sort"
	"sync"
	"time"
)

// Topic names what changed and needs pushing to clients.
type Topic int

const (
	// TopicState is a player engine change.
	TopicState Topic = iota
	// TopicBrowse is a navigator change, including newly attached covers.
	TopicBrowse
)

// Debouncer collapses bursts of change notifications into one push per
// topic. The handlers of every topic triggered since the last flush run,
// in topic order, once the window passes without another trigger.
type Debouncer struct {
	window   time.Duration
	handlers map[Topic]func()

	mu      sync.Mutex
	pending map[Topic]struct{}
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer running handlers[topic] for each
// triggered topic.
func NewDebouncer(window time.Duration, handlers map[Topic]func()) *Debouncer {
	return &Debouncer{
		window:   window,
		handlers: handlers,
		pending:  make(map[Topic]struct{}),
	}
}

// Trigger marks topic dirty and restarts the window.
func (d *Debouncer) Trigger(topic Topic) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[topic] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	topics := make([]Topic, 0, len(d.pending))
	for t := range d.pending {
		topics = append(topics, t)
	}
	clear(d.pending)
	d.mu.Unlock()

	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	for _, t := range topics {
		if fn := d.handlers[t]; fn != nil {
			fn()
		}
	}
}

// Stop drops pending topics and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	clear(d.pending)
}
