// Package metrics exposes Prometheus metrics for the catalog, cover
// downloads and playback.
package metrics

import (
	"context"
	"errors"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/domain/player"
)

const namespace = "stellar"

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultCanceled = "canceled"
	ResultError    = "error"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	CatalogCalls    *prometheus.CounterVec
	CatalogDuration *prometheus.HistogramVec
	CoverFetches    *prometheus.CounterVec
	TracksStarted   prometheus.Counter
	PlaybackErrors  prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CatalogCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_calls_total",
				Help:      "Catalog calls by operation and result",
			},
			[]string{"op", "result"},
		),
		CatalogDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_call_duration_seconds",
				Help:      "Catalog call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		CoverFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cover_fetches_total",
				Help:      "Cover downloads by result",
			},
			[]string{"result"},
		),
		TracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_started_total",
			Help:      "Tracks that started playing",
		}),
		PlaybackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_errors_total",
			Help:      "Playback state changes that carried an error",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CatalogCalls,
		m.CatalogDuration,
		m.CoverFetches,
		m.TracksStarted,
		m.PlaybackErrors,
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, catalog.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultError
	}
}

// InstrumentFetcher counts cover downloads made through f.
func (m *Metrics) InstrumentFetcher(f browse.CoverFetcher) browse.CoverFetcher {
	return &coverFetcher{next: f, m: m}
}

type coverFetcher struct {
	next browse.CoverFetcher
	m    *Metrics
}

func (f *coverFetcher) FetchCover(ctx context.Context, ref string) (image.Image, error) {
	img, err := f.next.FetchCover(ctx, ref)
	f.m.CoverFetches.WithLabelValues(result(err)).Inc()
	return img, err
}

// PlaybackSource is anything publishing player state snapshots.
type PlaybackSource interface {
	Subscribe(fn func(player.State)) (unsubscribe func())
}

// WatchPlayback counts track starts and errors from src until the returned
// function is called.
func (m *Metrics) WatchPlayback(src PlaybackSource) (stop func()) {
	var (
		mu        sync.Mutex
		lastTrack string
		lastIdx   = -1
		lastErr   string
	)
	return src.Subscribe(func(s player.State) {
		mu.Lock()
		defer mu.Unlock()

		if s.Current != nil && (s.Current.ID != lastTrack || s.Index != lastIdx) {
			m.TracksStarted.Inc()
		}
		if s.Error != "" && s.Error != lastErr {
			m.PlaybackErrors.Inc()
		}

		lastTrack, lastIdx = "", -1
		if s.Current != nil {
			lastTrack, lastIdx = s.Current.ID, s.Index
		}
		lastErr = s.Error
	})
}

// timer records one catalog call.
func (m *Metrics) timer(op string) func(error) {
	start := time.Now()
	return func(err error) {
		m.CatalogDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		m.CatalogCalls.WithLabelValues(op, result(err)).Inc()
	}
}
