package artwork_test

import (
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/edumarques81/stellar-online/internal/domain/artwork"
)

type prefixResolver string

func (p prefixResolver) URL(_ context.Context, path string) (string, error) {
	return string(p) + "/" + path, nil
}

func TestFetcher_FetchCover(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/covers/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, testImage(600, 300))
	}))
	defer srv.Close()

	f := artwork.NewFetcher(prefixResolver(srv.URL), artwork.ThumbMedium, 4)

	img, err := f.FetchCover(context.Background(), "covers/a.png")
	if err != nil {
		t.Fatalf("FetchCover failed: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 150 {
		t.Errorf("expected 300x150, got %v", img.Bounds())
	}

	if _, err := f.FetchCover(context.Background(), "covers/a.png"); err != nil {
		t.Fatalf("cached FetchCover failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 download, got %d", hits.Load())
	}

	if _, err := f.FetchCover(context.Background(), "covers/missing.png"); err == nil {
		t.Error("expected error for missing cover")
	}
}

func TestFetcher_EmptyRef(t *testing.T) {
	f := artwork.NewFetcher(prefixResolver("http://unused"), artwork.ThumbSmall, 0)
	if _, err := f.FetchCover(context.Background(), ""); !errors.Is(err, artwork.ErrNoArtwork) {
		t.Errorf("expected ErrNoArtwork, got %v", err)
	}
}
