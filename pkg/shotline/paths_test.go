package shotline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBucketAndPath(t *testing.T) {
	s := &service{
		blobStores: map[string]BlobStore{
			"media":   nil,
			"archive": nil,
		},
		defaultBucket: "media",
	}

	tests := []struct {
		name       string
		input      string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{"registered bucket", "media/V/9/primary/u/take.mov", "media", "V/9/primary/u/take.mov", true},
		{"second registered bucket", "archive/V/9/primary/u/take.mov", "archive", "V/9/primary/u/take.mov", true},
		{"unregistered first segment falls back to default", "plates/sc010.exr", "media", "plates/sc010.exr", true},
		{"bare key", "sc010.exr", "media", "sc010.exr", true},
		{"url uses first path segment", "https://files.example.com/media/V/9/thumbnail/u/thumb.jpg", "media", "V/9/thumbnail/u/thumb.jpg", true},
		{"empty", "", "", "", false},
		{"bucket with no key", "media/", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, ok := s.extractBucketAndPath(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestIsPublicURL(t *testing.T) {
	assert.True(t, isPublicURL("https://cdn.example.com/media/x.mp4"))
	assert.True(t, isPublicURL("http://localhost:9000/media/x.mp4"))
	assert.False(t, isPublicURL("media/V/9/primary/u/x.mp4"))
	assert.False(t, isPublicURL(""))
}

func TestObjectKey(t *testing.T) {
	key := objectKey(42, FileKindPrimary, "hero comp.mov")
	parts := strings.Split(key, "/")
	if assert.Len(t, parts, 5) {
		assert.Equal(t, "V", parts[0])
		assert.Equal(t, "42", parts[1])
		assert.Equal(t, "primary", parts[2])
		assert.NotEmpty(t, parts[3])
		assert.Equal(t, "hero comp.mov", parts[4])
	}

	// Random segment keeps replacements from colliding.
	assert.NotEqual(t, key, objectKey(42, FileKindPrimary, "hero comp.mov"))

	assert.True(t, strings.HasSuffix(objectKey(1, FileKindThumbnail, ""), "/file"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "take.mov", sanitizeFileName("take.mov"))
	assert.Equal(t, "take.mov", sanitizeFileName("renders/day4/take.mov"))
	assert.Equal(t, "take.mov", sanitizeFileName(`renders\day4\take.mov`))
	assert.Equal(t, "file", sanitizeFileName("renders/"))
	assert.Equal(t, "file", sanitizeFileName(""))
}

func TestGeneratedVersionCode(t *testing.T) {
	assert.Equal(t, "AST0001_v001", generatedVersionCode(OwnerByCode(EntityAsset, "AST0001"), 1))
	assert.Equal(t, "asset-7_v012", generatedVersionCode(OwnerByID(EntityAsset, 7), 12))
	assert.Equal(t, "playlist-3_v100", generatedVersionCode(OwnerByID(EntityPlaylist, 3), 100))
}
