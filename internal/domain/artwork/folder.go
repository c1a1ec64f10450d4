package artwork

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// folderCoverNames are the cover file names looked for next to a track,
// in priority order.
var folderCoverNames = []string{
	"cover",
	"folder",
	"front",
	"album",
	"artwork",
}

// folderCoverExtensions are the image types accepted as folder covers.
var folderCoverExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".webp",
}

// maxFolderLevels is how many parent directories above the track are
// searched.
const maxFolderLevels = 2

// FolderCover returns the cover image file for the audio file at path,
// searching its directory and up to two parents without leaving root.
// It returns "" when none is found.
func FolderCover(root, path string) string {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return ""
	}

	for level := 0; level <= maxFolderLevels; level++ {
		if rel, err := filepath.Rel(rootAbs, dir); err != nil || strings.HasPrefix(rel, "..") {
			break
		}
		if found := searchFolder(dir); found != "" {
			log.Debug().Str("cover", found).Int("level", level).Msg("Found folder cover")
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// searchFolder matches file names case-insensitively so Cover.JPG and
// cover.jpg are treated alike on every filesystem.
func searchFolder(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	byName := make(map[string]string, len(entries))
	var anyImage string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "._") {
			continue
		}
		lower := strings.ToLower(e.Name())
		if !isCoverExt(filepath.Ext(lower)) {
			continue
		}
		byName[lower] = filepath.Join(dir, e.Name())
		if anyImage == "" {
			anyImage = filepath.Join(dir, e.Name())
		}
	}

	for _, name := range folderCoverNames {
		for _, ext := range folderCoverExtensions {
			if p, ok := byName[name+ext]; ok {
				return p
			}
		}
	}
	return anyImage
}

func isCoverExt(ext string) bool {
	for _, e := range folderCoverExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SniffImage reports the MIME type and file extension of encoded image
// data from its magic bytes. Unknown data yields
// "application/octet-stream" and ".bin".
func SniffImage(data []byte) (mime, ext string) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", ".jpg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", ".png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif", ".gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp", ".webp"
	}
	return "application/octet-stream", ".bin"
}
