package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/domain/player"
	"github.com/edumarques81/stellar-online/internal/infra/metrics"
	"github.com/edumarques81/stellar-online/internal/observe"
)

// stubCatalog implements only the calls the tests make.
type stubCatalog struct {
	catalog.Catalog
	err error
}

func (s *stubCatalog) RandomSongs(context.Context, int) ([]catalog.Track, error) {
	return []catalog.Track{{ID: "1"}}, s.err
}

func (s *stubCatalog) SetLiked(context.Context, string, bool) error {
	return s.err
}

type stubFetcher struct {
	errs map[string]error
}

func (f stubFetcher) FetchCover(_ context.Context, ref string) (image.Image, error) {
	if err := f.errs[ref]; err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func TestInstrumentCatalog(t *testing.T) {
	m := metrics.New()
	stub := &stubCatalog{}
	cat := m.InstrumentCatalog(stub)
	ctx := context.Background()

	tracks, err := cat.RandomSongs(ctx, 10)
	if err != nil || len(tracks) != 1 {
		t.Fatalf("unexpected result %v %v", tracks, err)
	}
	stub.err = errors.New("disk full")
	_, _ = cat.RandomSongs(ctx, 10)
	stub.err = fmt.Errorf("song x: %w", catalog.ErrNotFound)
	_ = cat.SetLiked(ctx, "x", true)
	stub.err = context.Canceled
	_ = cat.SetLiked(ctx, "x", true)

	tests := []struct {
		op, result string
		want       float64
	}{
		{"random_songs", metrics.ResultOK, 1},
		{"random_songs", metrics.ResultError, 1},
		{"set_liked", metrics.ResultNotFound, 1},
		{"set_liked", metrics.ResultCanceled, 1},
		{"set_liked", metrics.ResultOK, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.CatalogCalls.WithLabelValues(tt.op, tt.result))
		if got != tt.want {
			t.Errorf("%s/%s = %v, want %v", tt.op, tt.result, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(m.CatalogDuration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestInstrumentFetcher(t *testing.T) {
	m := metrics.New()
	f := m.InstrumentFetcher(stubFetcher{errs: map[string]error{"bad": errors.New("404")}})

	_, _ = f.FetchCover(context.Background(), "a")
	_, _ = f.FetchCover(context.Background(), "b")
	_, _ = f.FetchCover(context.Background(), "bad")

	if got := testutil.ToFloat64(m.CoverFetches.WithLabelValues(metrics.ResultOK)); got != 2 {
		t.Errorf("expected 2 ok fetches, got %v", got)
	}
	if got := testutil.ToFloat64(m.CoverFetches.WithLabelValues(metrics.ResultError)); got != 1 {
		t.Errorf("expected 1 failed fetch, got %v", got)
	}
}

func TestWatchPlayback(t *testing.T) {
	m := metrics.New()
	var hub observe.Hub[player.State]
	stop := m.WatchPlayback(&hub)

	a := &catalog.Track{ID: "a"}
	b := &catalog.Track{ID: "b"}

	hub.Notify(player.State{Current: a, Index: 0, Playing: true})
	// Pause and resume are not new starts.
	hub.Notify(player.State{Current: a, Index: 0, Playing: false})
	hub.Notify(player.State{Current: a, Index: 0, Playing: true})
	hub.Notify(player.State{Current: b, Index: 1, Playing: true})
	hub.Notify(player.State{Current: b, Index: 1, Error: "load failed"})
	hub.Notify(player.State{Current: b, Index: 1, Error: "load failed"})
	// Stop, then play the same track again.
	hub.Notify(player.State{})
	hub.Notify(player.State{Current: b, Index: 1, Playing: true})

	if got := testutil.ToFloat64(m.TracksStarted); got != 3 {
		t.Errorf("expected 3 starts, got %v", got)
	}
	if got := testutil.ToFloat64(m.PlaybackErrors); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}

	stop()
	hub.Notify(player.State{Current: a, Index: 0, Playing: true})
	if got := testutil.ToFloat64(m.TracksStarted); got != 3 {
		t.Errorf("unsubscribed watcher still counting: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.TracksStarted.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"stellar_tracks_started_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
