package browse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/domain/artwork"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// ErrNoBlobStore is returned by UploadCover when no blob store is configured.
var ErrNoBlobStore = errors.New("browse: no blob store configured")

// CoverTarget is what a cover upload is attached to: a FacetCover or a
// PlaylistCover.
type CoverTarget interface {
	coverTarget()
}

// FacetCover targets a facet item (artist, album, year, genre or source).
type FacetCover struct {
	Kind catalog.FilterKind
	Item catalog.CountItem
}

// PlaylistCover targets a playlist.
type PlaylistCover struct {
	Playlist catalog.Playlist
}

func (FacetCover) coverTarget()    {}
func (PlaylistCover) coverTarget() {}

// UploadCover stores img as the cover of target and returns the stored
// path. The visible item or playlist shows the new image immediately.
func (n *Navigator) UploadCover(ctx context.Context, target CoverTarget, img image.Image) (string, error) {
	if n.blobs == nil {
		return "", ErrNoBlobStore
	}

	var (
		collection catalog.CoverCollection
		id, name   string
	)
	switch t := target.(type) {
	case FacetCover:
		c, ok := catalog.CollectionFor(t.Kind)
		if !ok {
			return "", fmt.Errorf("upload cover: %q has no cover collection", t.Kind)
		}
		collection, id, name = c, t.Item.ID, t.Item.Key
	case PlaylistCover:
		collection, id, name = catalog.CollectionPlaylists, t.Playlist.ID, t.Playlist.Name
	default:
		return "", fmt.Errorf("upload cover: unsupported target %T", target)
	}

	data, err := artwork.EncodeJPEG(img, artwork.UploadQuality)
	if err != nil {
		return "", fmt.Errorf("upload cover: %w", err)
	}

	path := fmt.Sprintf("%s/%s_%d.jpg", collection.StorageFolder(), safeName(name), n.now().UnixMilli())
	if err := n.blobs.Put(ctx, path, bytes.NewReader(data), "image/jpeg"); err != nil {
		n.fail("upload cover", err)
		return "", fmt.Errorf("upload cover: %w", err)
	}
	if err := n.catalog.SetCoverPath(ctx, collection, id, name, path); err != nil {
		n.fail("save cover path", err)
		return path, fmt.Errorf("save cover path: %w", err)
	}

	n.mu.Lock()
	switch t := target.(type) {
	case FacetCover:
		for _, its := range [][]catalog.CountItem{n.items, n.itemCache} {
			for i := range its {
				if its[i].Same(t.Item) {
					its[i].CoverRef = path
					its[i].Cover = img
				}
			}
		}
	case PlaylistCover:
		for _, ps := range [][]catalog.Playlist{n.playlists, n.playlistCache} {
			for i := range ps {
				if ps[i].ID == t.Playlist.ID {
					ps[i].CoverRef = path
					ps[i].Cover = img
				}
			}
		}
	}
	n.mu.Unlock()

	log.Info().Str("collection", string(collection)).Str("name", name).Str("path", path).Msg("Cover uploaded")
	n.emit(Event{Kind: EventCovers})
	return path, nil
}

// safeName makes a display name usable as a file name.
func safeName(name string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(name)
}
