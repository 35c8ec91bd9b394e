package shotline_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelworks/shotline/pkg/shotline"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestImageThumbnailerSupports(t *testing.T) {
	th := shotline.NewImageThumbnailer()

	assert.True(t, th.Supports("image/png"))
	assert.True(t, th.Supports("image/jpeg"))
	assert.True(t, th.Supports("IMAGE/PNG "))
	assert.False(t, th.Supports("image/x-exr"))
	assert.False(t, th.Supports("video/quicktime"))
	assert.False(t, th.Supports("application/octet-stream"))
	assert.False(t, th.Supports(""))
}

func TestImageThumbnailerDownscale(t *testing.T) {
	th := shotline.NewImageThumbnailer()

	data, contentType, err := th.Thumbnail(pngBytes(t, 1920, 1080), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.Equal(t, 480, bounds.Dx())
	assert.Equal(t, 270, bounds.Dy())
}

func TestImageThumbnailerNoUpscale(t *testing.T) {
	th := shotline.NewImageThumbnailer()

	data, _, err := th.Thumbnail(pngBytes(t, 64, 48), "image/png")
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
	assert.Equal(t, 48, decoded.Bounds().Dy())
}

func TestImageThumbnailerErrors(t *testing.T) {
	th := shotline.NewImageThumbnailer()

	t.Run("unsupported content type", func(t *testing.T) {
		_, _, err := th.Thumbnail([]byte("frames"), "video/quicktime")
		assert.ErrorIs(t, err, shotline.ErrUnsupportedThumbnail)
	})

	t.Run("exr is declared but undecodable", func(t *testing.T) {
		_, _, err := th.Thumbnail([]byte("v1.7"), "image/x-exr")
		assert.ErrorIs(t, err, shotline.ErrUnsupportedThumbnail)
	})

	t.Run("corrupt image data", func(t *testing.T) {
		_, _, err := th.Thumbnail([]byte("not an image"), "image/png")
		assert.Error(t, err)
	})
}

func TestNoThumbnailer(t *testing.T) {
	th := shotline.NoThumbnailer{}

	assert.False(t, th.Supports("image/png"))
	_, _, err := th.Thumbnail(pngBytes(t, 8, 8), "image/png")
	assert.ErrorIs(t, err, shotline.ErrUnsupportedThumbnail)
}
