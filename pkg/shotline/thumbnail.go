package shotline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// thumbnailMaxDim bounds the longest edge of a derived preview.
	thumbnailMaxDim = 480
	// thumbnailJPEGQuality is the re-encode quality for previews.
	thumbnailJPEGQuality = 85
	// thumbnailMaxSourceBytes caps the input the deriver will touch, so a
	// pathological upload cannot stall the attach request.
	thumbnailMaxSourceBytes = 32 << 20
)

// exrContentType is the raw-image format the deriver cannot decode;
// primaries in this format keep whatever thumbnail they already have.
const exrContentType = "image/x-exr"

// imageThumbnailer derives bounded-box JPEG previews from uploaded images.
type imageThumbnailer struct {
	maxDim  int
	quality int
}

// NewImageThumbnailer creates the default thumbnail deriver.
func NewImageThumbnailer() Thumbnailer {
	return &imageThumbnailer{maxDim: thumbnailMaxDim, quality: thumbnailJPEGQuality}
}

func (t *imageThumbnailer) Supports(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == exrContentType {
		return false
	}
	return strings.HasPrefix(contentType, "image/")
}

func (t *imageThumbnailer) Thumbnail(data []byte, contentType string) ([]byte, string, error) {
	if !t.Supports(contentType) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedThumbnail, contentType)
	}
	if len(data) > thumbnailMaxSourceBytes {
		return nil, "", fmt.Errorf("%w: source exceeds %d bytes", ErrUnsupportedThumbnail, thumbnailMaxSourceBytes)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), t.maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// NoThumbnailer disables thumbnail derivation: it supports no content type.
type NoThumbnailer struct{}

func (NoThumbnailer) Supports(string) bool { return false }

func (NoThumbnailer) Thumbnail(_ []byte, contentType string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedThumbnail, contentType)
}

// fitWithin scales dimensions into a maxSize bounding box, preserving the
// aspect ratio. Images already inside the box are left at their size.
func fitWithin(width, height, maxSize int) (int, int) {
	if width <= 0 || height <= 0 {
		return 1, 1
	}
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		return maxSize, max(1, height*maxSize/width)
	}
	return max(1, width*maxSize/height), maxSize
}
