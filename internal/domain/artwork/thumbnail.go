// Package artwork decodes, scales and encodes cover images.
package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

// ThumbnailSize is the longest edge of a scaled cover, in pixels.
type ThumbnailSize int

const (
	// ThumbSmall is 150x150 pixels - for list views
	ThumbSmall ThumbnailSize = 150
	// ThumbMedium is 300x300 pixels - for grid views
	ThumbMedium ThumbnailSize = 300
	// ThumbLarge is 500x500 pixels - for detail views
	ThumbLarge ThumbnailSize = 500
)

// UploadQuality is the JPEG quality used for user supplied covers.
const UploadQuality = 70

// Decode reads a GIF, JPEG, PNG or WebP image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// Resize scales src to fit within maxSize while keeping the aspect ratio.
// Images already small enough are returned unchanged.
func Resize(src image.Image, maxSize ThumbnailSize) image.Image {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	size := int(maxSize)
	if size <= 0 || (srcW <= size && srcH <= size) {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = size
		newH = max(1, int(float64(srcH)*float64(size)/float64(srcW)))
	} else {
		newH = size
		newW = max(1, int(float64(srcW)*float64(size)/float64(srcH)))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
