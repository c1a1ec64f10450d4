package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/version"
)

// ErrNoArtwork is returned for an empty cover reference.
var ErrNoArtwork = errors.New("no artwork found")

// maxCoverBytes bounds a single cover download.
const maxCoverBytes = 10 << 20

// URLResolver turns a stored cover path into a downloadable URL.
type URLResolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// Fetcher downloads covers through a URLResolver, scales them to a
// thumbnail size and keeps the most recent ones in memory.
type Fetcher struct {
	resolver URLResolver
	client   *http.Client
	size     ThumbnailSize

	mu       sync.Mutex
	cache    map[string]image.Image
	order    []string
	capacity int
}

// NewFetcher creates a Fetcher. capacity is the number of decoded covers
// kept in memory; 0 disables caching.
func NewFetcher(resolver URLResolver, size ThumbnailSize, capacity int) *Fetcher {
	return &Fetcher{
		resolver: resolver,
		client:   &http.Client{Timeout: 30 * time.Second},
		size:     size,
		cache:    make(map[string]image.Image),
		capacity: capacity,
	}
}

// FetchCover returns the scaled image stored at ref.
func (f *Fetcher) FetchCover(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, ErrNoArtwork
	}
	if img, ok := f.cached(ref); ok {
		return img, nil
	}

	url, err := f.resolver.URL(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve cover %s: %w", ref, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download cover %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download cover %s: status %d", ref, resp.StatusCode)
	}

	img, format, err := Decode(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, err
	}
	log.Debug().Str("ref", ref).Str("format", format).Msg("Cover downloaded")

	img = Resize(img, f.size)
	f.store(ref, img)
	return img, nil
}

func (f *Fetcher) cached(ref string) (image.Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.cache[ref]
	return img, ok
}

func (f *Fetcher) store(ref string, img image.Image) {
	if f.capacity <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.cache[ref]; ok {
		return
	}
	if len(f.order) >= f.capacity {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.cache, oldest)
	}
	f.cache[ref] = img
	f.order = append(f.order, ref)
}
