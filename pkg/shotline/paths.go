package shotline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Stored paths take the form "bucket/key"; keys themselves contain slashes,
// so splitting is disambiguated against the set of registered buckets.

func joinStoredPath(bucket, key string) string {
	return bucket + "/" + key
}

// extractBucketAndPath splits a stored path or URL into its bucket and
// object key. Absolute URLs use their first path segment as the bucket.
// Plain values whose first segment is not a registered bucket fall back to
// the service default bucket with the whole value as key.
func (s *service) extractBucketAndPath(pathOrURL string) (bucket, key string, ok bool) {
	value := pathOrURL
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		u, err := url.Parse(value)
		if err != nil {
			return "", "", false
		}
		value = strings.TrimPrefix(u.Path, "/")
	}

	if before, after, found := strings.Cut(value, "/"); found {
		if _, registered := s.blobStores[before]; registered {
			return before, after, after != ""
		}
	}
	if value == "" {
		return "", "", false
	}
	return s.defaultBucket, value, true
}

func isPublicURL(value string) bool {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return false
	}
	// Presigned URLs are never stored, so any stored URL is treated as a
	// stable public one.
	return true
}

// objectKey builds the storage key for an attached blob. The random segment
// keeps replaced files from colliding with still-cached predecessors.
func objectKey(versionID int64, kind FileKind, fileName string) string {
	if fileName == "" {
		fileName = "file"
	}
	return fmt.Sprintf("V/%d/%s/%s/%s", versionID, kind, uuid.New(), sanitizeFileName(fileName))
}

// generatedVersionCode derives a deterministic code for versions created
// without one: owner label plus the zero-padded version number.
func generatedVersionCode(owner OwnerRef, number int) string {
	label := owner.Code
	if label == "" {
		label = fmt.Sprintf("%s-%d", owner.Type, owner.ID)
	}
	return fmt.Sprintf("%s_v%03d", label, number)
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "file"
	}
	return name
}
