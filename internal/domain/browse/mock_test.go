package browse_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

var errBackend = errors.New("backend unavailable")

// MockCatalog implements catalog.Catalog with canned responses.
type MockCatalog struct {
	mu sync.Mutex

	RandomPages [][]catalog.Track
	RandomError error
	randomCalls int

	QueryResponse map[catalog.Field]catalog.Page
	QueryPages    map[catalog.Cursor]catalog.Page
	QueryError    error
	QueryCalls    []catalog.SongQuery
	QueryBlock    chan struct{}

	FacetsResponse map[catalog.FilterKind][]catalog.CountItem
	FacetsError    error
	FacetsCalls    []catalog.FilterKind

	Genres            map[string]string
	SourcesResponse   map[string][]catalog.CountItem
	SourcesCalledWith []string

	PlaylistsResponse []catalog.Playlist
	Titles            map[string][]string
	SongsByTitle      []catalog.Track
	CreateError       error
	Created           []string
	Deleted           []string
	Added             []string
	Removed           []string

	LikedCalls    map[string]bool
	SetLikedError error

	CoverPaths []string
}

func (m *MockCatalog) RandomSongs(_ context.Context, limit int) ([]catalog.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RandomError != nil {
		return nil, m.RandomError
	}
	if m.randomCalls >= len(m.RandomPages) {
		return nil, nil
	}
	page := m.RandomPages[m.randomCalls]
	m.randomCalls++
	return page, nil
}

func (m *MockCatalog) QuerySongs(ctx context.Context, q catalog.SongQuery) (catalog.Page, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, q)
	block := m.QueryBlock
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return catalog.Page{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return catalog.Page{}, m.QueryError
	}
	if q.After != "" {
		return m.QueryPages[q.After], nil
	}
	return m.QueryResponse[q.Field], nil
}

func (m *MockCatalog) Facets(_ context.Context, kind catalog.FilterKind) ([]catalog.CountItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FacetsCalls = append(m.FacetsCalls, kind)
	if m.FacetsError != nil {
		return nil, m.FacetsError
	}
	return m.FacetsResponse[kind], nil
}

func (m *MockCatalog) SourcesByGenre(_ context.Context, genreID string) ([]catalog.CountItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourcesCalledWith = append(m.SourcesCalledWith, genreID)
	return m.SourcesResponse[genreID], nil
}

func (m *MockCatalog) GenreIDByName(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.Genres[name]
	return id, ok, nil
}

func (m *MockCatalog) Playlists(context.Context) ([]catalog.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PlaylistsResponse, nil
}

func (m *MockCatalog) PlaylistTitles(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Titles[id], nil
}

func (m *MockCatalog) SongsByTitles(_ context.Context, titles []string) ([]catalog.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(titles))
	for _, t := range titles {
		want[t] = true
	}
	var out []catalog.Track
	for _, s := range m.SongsByTitle {
		if want[s.Title] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockCatalog) CreatePlaylist(_ context.Context, name string) (catalog.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return catalog.Playlist{}, m.CreateError
	}
	m.Created = append(m.Created, name)
	return catalog.Playlist{ID: "new-" + name, Name: name}, nil
}

func (m *MockCatalog) DeletePlaylist(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockCatalog) AddToPlaylist(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added = append(m.Added, id+":"+title)
	if m.Titles == nil {
		m.Titles = map[string][]string{}
	}
	m.Titles[id] = append(m.Titles[id], title)
	return nil
}

func (m *MockCatalog) RemoveFromPlaylist(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, id+":"+title)
	var kept []string
	for _, t := range m.Titles[id] {
		if t != title {
			kept = append(kept, t)
		}
	}
	m.Titles[id] = kept
	return nil
}

func (m *MockCatalog) SetLiked(_ context.Context, id string, liked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LikedCalls == nil {
		m.LikedCalls = map[string]bool{}
	}
	m.LikedCalls[id] = liked
	return m.SetLikedError
}

func (m *MockCatalog) SetCoverPath(_ context.Context, c catalog.CoverCollection, id, name, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CoverPaths = append(m.CoverPaths, string(c)+"|"+id+"|"+name+"|"+path)
	return nil
}

func (m *MockCatalog) queryCalls() []catalog.SongQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.SongQuery(nil), m.QueryCalls...)
}

// MockPrefs is an in-memory catalog.Preferences.
type MockPrefs struct {
	mu     sync.Mutex
	Values map[string]string
}

func (p *MockPrefs) String(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.Values[key]
	return v, ok, nil
}

func (p *MockPrefs) SetString(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Values == nil {
		p.Values = map[string]string{}
	}
	p.Values[key] = value
	return nil
}

// MockBlobs records uploads.
type MockBlobs struct {
	mu   sync.Mutex
	Puts map[string][]byte
}

func (b *MockBlobs) URL(_ context.Context, path string) (string, error) {
	return "https://blobs.test/" + path, nil
}

func (b *MockBlobs) Put(_ context.Context, path string, body io.ReadSeeker, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Puts == nil {
		b.Puts = map[string][]byte{}
	}
	b.Puts[path] = data
	return nil
}

// MockFetcher returns a 1x1 image for refs it knows and an error otherwise.
type MockFetcher struct {
	Known map[string]bool
}

func (f *MockFetcher) FetchCover(_ context.Context, ref string) (image.Image, error) {
	if !f.Known[ref] {
		return nil, errBackend
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	return img, nil
}

// MockLikes records like propagation.
type MockLikes struct {
	mu    sync.Mutex
	Calls map[string]bool
}

func (l *MockLikes) UpdateLiked(id string, liked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Calls == nil {
		l.Calls = map[string]bool{}
	}
	l.Calls[id] = liked
}

func songs(ids ...string) []catalog.Track {
	out := make([]catalog.Track, len(ids))
	for i, id := range ids {
		out[i] = catalog.Track{ID: id, Title: "Title " + id, Artist: "Artist " + id}
	}
	return out
}

func songIDs(ts []catalog.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func equalIDs(got []catalog.Track, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
