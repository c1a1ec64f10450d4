package browse_test

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/edumarques81/stellar-online/internal/domain/browse"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

func TestUploadCover_Facet(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cat := &MockCatalog{FacetsResponse: map[catalog.FilterKind][]catalog.CountItem{
		catalog.FilterAlbum: {{ID: "al1", Key: "Kind of Blue", Count: 5}},
	}}
	blobs := &MockBlobs{}
	nav := newNavigator(cat, browse.WithBlobs(blobs), browse.WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_ = nav.LoadBrowseItems(ctx, catalog.FilterAlbum)

	item := nav.View().Items[0]
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	path, err := nav.UploadCover(ctx, browse.FacetCover{Kind: catalog.FilterAlbum, Item: item}, img)
	if err != nil {
		t.Fatalf("UploadCover failed: %v", err)
	}

	want := "CoverAlbums/Kind_of_Blue_1700000000123.jpg"
	if path != want {
		t.Errorf("expected path %q, got %q", want, path)
	}
	if len(blobs.Puts[path]) == 0 {
		t.Error("image not uploaded")
	}
	if len(cat.CoverPaths) != 1 || cat.CoverPaths[0] != "albums|al1|Kind of Blue|"+want {
		t.Errorf("unexpected cover path writes %v", cat.CoverPaths)
	}

	got := nav.View().Items[0]
	if got.CoverRef != path || got.Cover == nil {
		t.Errorf("item not updated: %+v", got)
	}
}

func TestUploadCover_Playlist(t *testing.T) {
	cat := &MockCatalog{PlaylistsResponse: []catalog.Playlist{{ID: "p1", Name: "Road/Trip"}}}
	nav := newNavigator(cat, browse.WithBlobs(&MockBlobs{}))
	ctx := context.Background()
	_ = nav.LoadPlaylists(ctx)

	path, err := nav.UploadCover(ctx, browse.PlaylistCover{Playlist: nav.View().Playlists[0]}, image.NewGray(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatalf("UploadCover failed: %v", err)
	}
	if !strings.HasPrefix(path, "CoverPlaylists/Road_Trip_") {
		t.Errorf("unexpected path %q", path)
	}
	if nav.View().Playlists[0].CoverRef != path {
		t.Error("playlist cover ref not updated")
	}
}

func TestUploadCover_Errors(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	ctx := context.Background()

	nav := newNavigator(&MockCatalog{})
	if _, err := nav.UploadCover(ctx, browse.PlaylistCover{}, img); !errors.Is(err, browse.ErrNoBlobStore) {
		t.Errorf("expected ErrNoBlobStore, got %v", err)
	}

	nav = newNavigator(&MockCatalog{}, browse.WithBlobs(&MockBlobs{}))
	if _, err := nav.UploadCover(ctx, browse.FacetCover{Kind: catalog.FilterLiked}, img); err == nil {
		t.Error("expected error for a kind without a cover collection")
	}
}

func TestCoverLoader_NilIsNoOp(t *testing.T) {
	var l *browse.CoverLoader
	l.CancelAll()
	l.Wait()
}
