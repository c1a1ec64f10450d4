// Package importer fills the catalog from a directory of audio files.
// Tags become song fields, embedded artwork (or a cover image in the
// track's folder) becomes the song cover, and every file is uploaded to
// the blob store.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/domain/artwork"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
	"github.com/edumarques81/stellar-online/internal/infra/catalogdb"
)

// Blob folders written by the importer.
const (
	SongsFolder      = "Songs"
	SongCoversFolder = "CoverSongs"
)

// audioExtensions lists the file types the importer picks up.
var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
}

// Store is the catalog write side used by the importer.
type Store interface {
	UpsertSong(ctx context.Context, t catalog.Track) (string, error)
	UpsertFacet(ctx context.Context, collection catalog.CoverCollection, name, coverRef string) (string, error)
}

// Result summarizes one run.
type Result struct {
	Scanned  int
	Imported int
	Covers   int
	Failed   int
}

// Importer walks a directory and imports every audio file under it.
type Importer struct {
	store  Store
	blobs  catalog.BlobStore
	source string
}

// New creates an importer tagging every song with source.
func New(store Store, blobs catalog.BlobStore, source string) *Importer {
	return &Importer{store: store, blobs: blobs, source: strings.TrimSpace(source)}
}

// Run imports all audio files below root. A file that cannot be imported
// is logged and counted; the walk continues.
func (im *Importer) Run(ctx context.Context, root string) (Result, error) {
	var res Result

	source := im.source
	if source == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return res, err
		}
		source = filepath.Base(abs)
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}

		res.Scanned++
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		hasCover, err := im.importFile(ctx, root, p, filepath.ToSlash(rel), source)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			res.Failed++
			log.Warn().Err(err).Str("file", rel).Msg("Failed to import file")
			return nil
		}
		res.Imported++
		if hasCover {
			res.Covers++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("import %s: %w", root, err)
	}

	log.Info().
		Str("source", source).
		Int("scanned", res.Scanned).
		Int("imported", res.Imported).
		Int("covers", res.Covers).
		Int("failed", res.Failed).
		Msg("Import finished")
	return res, nil
}

func (im *Importer) importFile(ctx context.Context, root, p, rel, source string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	track := catalog.Track{Source: source}
	var pic *tag.Picture

	m, err := tag.ReadFrom(f)
	if err == nil {
		track.Title = strings.TrimSpace(m.Title())
		track.Artist = strings.TrimSpace(m.Artist())
		track.Album = strings.TrimSpace(m.Album())
		track.Genre = strings.TrimSpace(m.Genre())
		track.Year = m.Year()
		pic = m.Picture()
	} else {
		log.Debug().Err(err).Str("file", rel).Msg("No readable tags")
	}
	if track.Title == "" {
		track.Title = strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	track.AudioRef = path.Join(SongsFolder, source, rel)
	contentType := audioExtensions[strings.ToLower(path.Ext(rel))]
	if err := im.blobs.Put(ctx, track.AudioRef, f, contentType); err != nil {
		return false, fmt.Errorf("upload audio: %w", err)
	}

	id := catalogdb.SongID(track.AudioRef)
	track.ID = id
	data, mime, ext := embeddedCover(pic)
	if data == nil {
		data, mime, ext = folderCover(root, p)
	}
	if data != nil {
		track.CoverRef = path.Join(SongCoversFolder, id+ext)
		if err := im.blobs.Put(ctx, track.CoverRef, bytes.NewReader(data), mime); err != nil {
			return false, fmt.Errorf("upload cover: %w", err)
		}
	}

	if _, err := im.store.UpsertSong(ctx, track); err != nil {
		return false, err
	}
	if err := im.upsertFacets(ctx, track); err != nil {
		return false, err
	}
	return track.CoverRef != "", nil
}

type facetRef struct {
	collection catalog.CoverCollection
	name       string
	cover      string
}

// upsertFacets makes sure every facet the song belongs to has a document.
// Albums take the song cover as their default cover.
func (im *Importer) upsertFacets(ctx context.Context, t catalog.Track) error {
	facets := []facetRef{
		{catalog.CollectionArtists, t.Artist, ""},
		{catalog.CollectionAlbums, t.Album, t.CoverRef},
		{catalog.CollectionGenres, t.Genre, ""},
		{catalog.CollectionSources, t.Source, ""},
	}
	if t.Year > 0 {
		facets = append(facets, facetRef{catalog.CollectionYears, strconv.Itoa(t.Year), ""})
	}

	for _, f := range facets {
		if f.name == "" {
			continue
		}
		if _, err := im.store.UpsertFacet(ctx, f.collection, f.name, f.cover); err != nil {
			return err
		}
	}
	return nil
}

func embeddedCover(pic *tag.Picture) ([]byte, string, string) {
	if pic == nil || len(pic.Data) == 0 {
		return nil, "", ""
	}
	mime, ext := artwork.SniffImage(pic.Data)
	if pic.Ext != "" {
		ext = "." + strings.TrimPrefix(strings.ToLower(pic.Ext), ".")
	}
	if pic.MIMEType != "" {
		mime = pic.MIMEType
	}
	return pic.Data, mime, ext
}

func folderCover(root, p string) ([]byte, string, string) {
	cover := artwork.FolderCover(root, p)
	if cover == "" {
		return nil, "", ""
	}
	data, err := os.ReadFile(cover)
	if err != nil || len(data) == 0 {
		log.Debug().Err(err).Str("cover", cover).Msg("Unreadable folder cover")
		return nil, "", ""
	}
	mime, ext := artwork.SniffImage(data)
	if ext == ".bin" {
		ext = strings.ToLower(filepath.Ext(cover))
	}
	return data, mime, ext
}
