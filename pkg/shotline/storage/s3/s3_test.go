package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	store, err := New(Config{
		Bucket:          "media",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	backend := store.(*Backend)
	assert.Equal(t, "us-east-1", backend.config.Region)
	assert.Equal(t, 3600, backend.config.PresignDuration)
}

func TestPublicURLPrefix(t *testing.T) {
	store, err := New(Config{
		Bucket:          "media",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		PublicURLPrefix: "https://cdn.example.com/media/",
	})
	require.NoError(t, err)

	url, err := store.GetDownloadURL(context.Background(), "V/1/primary/a/take.mov", "take.mov")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/V/1/primary/a/take.mov", url)
}
