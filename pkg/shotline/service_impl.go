package shotline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBucket is the bucket used for attached files when a request does
// not name one.
const DefaultBucket = "media"

// service implements the Service interface
type service struct {
	repository  Repository
	statuses    StatusStore
	blobStores  map[string]BlobStore
	owners      OwnerDirectory
	notifier    Notifier
	thumbnailer Thumbnailer
	logger      *slog.Logger

	defaultBucket string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithStatusStore sets the workflow status store
func WithStatusStore(store StatusStore) Option {
	return func(s *service) {
		s.statuses = store
	}
}

// WithBlobStore registers a blob storage backend under a bucket name
func WithBlobStore(bucket string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[bucket] = store
	}
}

// WithOwnerDirectory sets the owning-entity polymorphism table
func WithOwnerDirectory(dir OwnerDirectory) Option {
	return func(s *service) {
		s.owners = dir
	}
}

// WithNotifier sets the notification dispatcher
func WithNotifier(n Notifier) Option {
	return func(s *service) {
		s.notifier = n
	}
}

// WithThumbnailer sets the thumbnail deriver
func WithThumbnailer(t Thumbnailer) Option {
	return func(s *service) {
		s.thumbnailer = t
	}
}

// WithLogger sets the structured logger used for best-effort failures
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// WithDefaultBucket overrides the bucket used when requests omit one
func WithDefaultBucket(bucket string) Option {
	return func(s *service) {
		s.defaultBucket = bucket
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores:    make(map[string]BlobStore),
		defaultBucket: DefaultBucket,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.statuses == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if s.owners == nil {
		return nil, fmt.Errorf("owner directory is required")
	}
	if s.notifier == nil {
		s.notifier = NewNoopNotifier()
	}
	if s.thumbnailer == nil {
		s.thumbnailer = NewImageThumbnailer()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Version lifecycle

func (s *service) CreateVersion(ctx context.Context, req CreateVersionRequest) (*Version, error) {
	owner, err := ParseOwnerRef(req.EntityType, req.OwnerID, req.OwnerCode)
	if err != nil {
		return nil, err
	}

	exists, err := s.owners.Exists(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrOwnerNotFound, owner)
	}

	if req.Code != "" {
		if _, err := s.repository.GetVersionByCode(ctx, req.Code); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, req.Code)
		} else if !errors.Is(err, ErrVersionNotFound) {
			return nil, err
		}
	}

	statusCode := req.Status
	if statusCode == "" {
		statusCode = string(StatusWIP)
	}
	status, err := s.statuses.StatusByCode(ctx, statusCode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	latest := req.Latest == nil || *req.Latest

	version := &Version{
		Code:            req.Code,
		Owner:           owner,
		Name:            req.Name,
		Description:     req.Description,
		Format:          req.Format,
		FilePath:        req.FilePath,
		Latest:          latest,
		StatusUpdatedAt: now,
		CreatedBy:       req.CreatedBy,
		AssignedTo:      req.AssignedTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status != nil {
		version.StatusID = &status.ID
	}

	// Number assignment and the clear-then-set of the latest flag share one
	// transaction so concurrent creates against the same owner cannot leave
	// zero or two latest rows.
	err = s.repository.InTx(ctx, func(tx Repository) error {
		number, err := tx.NextVersionNumber(ctx, owner)
		if err != nil {
			return err
		}
		version.VersionNumber = number
		if version.Code == "" {
			version.Code = generatedVersionCode(owner, number)
		}
		if latest {
			if err := tx.ClearLatest(ctx, owner, 0); err != nil {
				return err
			}
		}
		return tx.CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, &VersionError{VersionID: version.ID, Op: "create", Err: err}
	}

	return s.resolveVersion(ctx, version), nil
}

func (s *service) GetVersion(ctx context.Context, id int64) (*Version, error) {
	version, err := s.repository.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveVersion(ctx, version), nil
}

func (s *service) GetVersionByCode(ctx context.Context, code string) (*Version, error) {
	version, err := s.repository.GetVersionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.resolveVersion(ctx, version), nil
}

func (s *service) ListVersions(ctx context.Context, req ListVersionsRequest) ([]*Version, error) {
	filter := VersionFilter{
		LatestOnly: req.LatestOnly,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}

	if req.EntityType != "" {
		owner, err := ParseOwnerRef(req.EntityType, req.OwnerID, req.OwnerCode)
		if err != nil {
			return nil, err
		}
		filter.Owner = &owner
	}

	if req.Status != "" {
		status, err := s.statuses.StatusByCode(ctx, req.Status)
		if err != nil {
			return nil, err
		}
		// Unknown status codes mean "no status"; the filter is dropped
		// rather than matching nothing.
		if status != nil {
			filter.StatusID = &status.ID
		}
	}

	versions, err := s.repository.ListVersions(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		s.resolveVersion(ctx, v)
	}
	return versions, nil
}

func (s *service) UpdateVersion(ctx context.Context, req UpdateVersionRequest) (*Version, error) {
	version, err := s.repository.GetVersion(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if req.Name != nil {
		version.Name = *req.Name
	}
	if req.Description != nil {
		version.Description = *req.Description
	}
	if req.Format != nil {
		version.Format = *req.Format
	}
	if req.AssignedTo != nil {
		version.AssignedTo = req.AssignedTo
	}

	statusChanged := false
	var newStatusCode string
	if req.Status != nil {
		status, err := s.statuses.StatusByCode(ctx, *req.Status)
		if err != nil {
			return nil, err
		}
		var newID *int64
		if status != nil {
			newID = &status.ID
			newStatusCode = status.Code
		}
		if !int64PtrEqual(newID, version.StatusID) {
			statusChanged = true
			version.StatusID = newID
			version.StatusUpdatedAt = now
		}
	}

	promote := req.Latest != nil && *req.Latest && !version.Latest
	if req.Latest != nil {
		version.Latest = *req.Latest
	}
	version.UpdatedAt = now

	err = s.repository.InTx(ctx, func(tx Repository) error {
		if promote {
			if err := tx.ClearLatest(ctx, version.Owner, version.ID); err != nil {
				return err
			}
		}
		return tx.UpdateVersion(ctx, version)
	})
	if err != nil {
		return nil, &VersionError{VersionID: version.ID, Op: "update", Err: err}
	}

	if statusChanged {
		s.notifyStatusChange(ctx, version, newStatusCode, req.ActorID, req.Reason)
	}

	return s.resolveVersion(ctx, version), nil
}

func (s *service) DeleteVersion(ctx context.Context, id int64) error {
	version, err := s.repository.GetVersion(ctx, id)
	if err != nil {
		return err
	}

	// Stored blobs go first, best-effort: a storage failure may orphan a
	// file but never blocks removal of the record.
	s.deleteStoredBlob(ctx, version.ThumbnailPath, id)
	s.deleteStoredBlob(ctx, version.FilePath, id)

	now := time.Now().UTC()
	err = s.repository.InTx(ctx, func(tx Repository) error {
		if err := tx.DeleteVersion(ctx, id); err != nil {
			return err
		}
		if !version.Latest {
			return nil
		}
		next, err := tx.NewestVersion(ctx, version.Owner)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		next.Latest = true
		next.UpdatedAt = now
		return tx.UpdateVersion(ctx, next)
	})
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return err
		}
		return &VersionError{VersionID: id, Op: "delete", Err: err}
	}
	return nil
}

// File attachment

func (s *service) AttachFile(ctx context.Context, req AttachFileRequest) (*Version, error) {
	if req.Kind != FileKindPrimary && req.Kind != FileKindThumbnail {
		return nil, fmt.Errorf("unknown file kind %q", req.Kind)
	}

	version, err := s.repository.GetVersion(ctx, req.VersionID)
	if err != nil {
		return nil, err
	}

	bucket := req.Bucket
	if bucket == "" {
		bucket = s.defaultBucket
	}
	store, err := s.backend(bucket)
	if err != nil {
		return nil, err
	}

	// Replace semantics: the previous blob of the same kind is removed
	// best-effort before the new one lands.
	switch req.Kind {
	case FileKindPrimary:
		s.deleteStoredBlob(ctx, version.FilePath, version.ID)
	case FileKindThumbnail:
		s.deleteStoredBlob(ctx, version.ThumbnailPath, version.ID)
	}

	key := objectKey(version.ID, req.Kind, req.FileName)
	err = store.UploadWithParams(ctx, bytes.NewReader(req.Data), UploadParams{
		ObjectKey: key,
		MimeType:  req.ContentType,
	})
	if err != nil {
		// The new upload itself is fatal to the call; the record stays
		// unchanged.
		return nil, &StorageError{Bucket: bucket, Key: key, Op: "upload", Err: err}
	}

	storedPath := joinStoredPath(bucket, key)
	now := time.Now().UTC()
	switch req.Kind {
	case FileKindPrimary:
		version.FilePath = &storedPath
	case FileKindThumbnail:
		version.ThumbnailPath = &storedPath
	}
	version.UpdatedAt = now

	if req.Kind == FileKindPrimary && s.thumbnailer.Supports(req.ContentType) {
		s.deriveThumbnail(ctx, version, store, bucket, req)
	}

	if err := s.repository.UpdateVersion(ctx, version); err != nil {
		return nil, &VersionError{VersionID: version.ID, Op: "attach_file", Err: err}
	}

	return s.resolveVersion(ctx, version), nil
}

// deriveThumbnail downscales an image primary and stores the preview.
// Everything here is best-effort: derivation or upload failures are logged
// and leave the primary attachment intact.
func (s *service) deriveThumbnail(ctx context.Context, version *Version, store BlobStore, bucket string, req AttachFileRequest) {
	data, contentType, err := s.thumbnailer.Thumbnail(req.Data, req.ContentType)
	if err != nil {
		s.logger.Warn("thumbnail derivation failed",
			"version_id", version.ID, "content_type", req.ContentType, "err", err)
		return
	}

	s.deleteStoredBlob(ctx, version.ThumbnailPath, version.ID)

	key := objectKey(version.ID, FileKindThumbnail, "thumb.jpg")
	err = store.UploadWithParams(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: key,
		MimeType:  contentType,
	})
	if err != nil {
		s.logger.Warn("thumbnail upload failed",
			"version_id", version.ID, "bucket", bucket, "key", key, "err", err)
		return
	}

	storedPath := joinStoredPath(bucket, key)
	version.ThumbnailPath = &storedPath
}

// Notification hook

func (s *service) notifyStatusChange(ctx context.Context, version *Version, statusCode string, actorID *int64, reason string) {
	var kind EventKind
	switch StatusCode(statusCode) {
	case StatusApproved:
		kind = EventVersionApproved
	case StatusRejected:
		kind = EventVersionRejected
	default:
		return
	}

	event := Event{
		Kind:        kind,
		VersionID:   version.ID,
		VersionCode: version.Code,
		Owner:       version.Owner,
		ActorID:     actorID,
	}
	if kind == EventVersionRejected {
		if reason == "" {
			reason = "No reason provided"
		}
		event.Reason = reason
	}

	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Error("notification publish failed",
			"version_id", version.ID, "event", string(kind), "err", err)
	}

	if version.CreatedBy == nil {
		return
	}
	if actorID != nil && *actorID == *version.CreatedBy {
		return
	}
	if err := s.notifier.NotifyUser(ctx, *version.CreatedBy, event); err != nil {
		s.logger.Error("in-app notification failed",
			"version_id", version.ID, "user_id", *version.CreatedBy, "err", err)
	}
}

// Helpers

func (s *service) backend(bucket string) (BlobStore, error) {
	store, exists := s.blobStores[bucket]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, bucket)
	}
	return store, nil
}

// resolveVersion populates the computed status code and fetchable URLs.
// Presigned URLs are regenerated on every read; values that are already
// public URLs pass through untouched so clients keep their caches.
func (s *service) resolveVersion(ctx context.Context, version *Version) *Version {
	if version.StatusID != nil {
		status, err := s.statuses.StatusByID(ctx, *version.StatusID)
		if err == nil && status != nil {
			version.StatusCode = status.Code
		}
	}
	version.FileURL = s.resolveURL(ctx, version.FilePath, version.Name)
	version.ThumbnailURL = s.resolveURL(ctx, version.ThumbnailPath, "")
	return version
}

func (s *service) resolveURL(ctx context.Context, storedPath *string, downloadName string) string {
	if storedPath == nil || *storedPath == "" {
		return ""
	}
	if isPublicURL(*storedPath) {
		return *storedPath
	}
	bucket, key, ok := s.extractBucketAndPath(*storedPath)
	if !ok {
		return ""
	}
	store, err := s.backend(bucket)
	if err != nil {
		s.logger.Warn("no backend for stored path", "path", *storedPath, "err", err)
		return ""
	}
	url, err := store.GetDownloadURL(ctx, key, downloadName)
	if err != nil {
		s.logger.Warn("url resolution failed", "bucket", bucket, "key", key, "err", err)
		return ""
	}
	return url
}

// deleteStoredBlob removes a stored blob, logging failures instead of
// propagating them.
func (s *service) deleteStoredBlob(ctx context.Context, storedPath *string, versionID int64) {
	if storedPath == nil || *storedPath == "" {
		return
	}
	bucket, key, ok := s.extractBucketAndPath(*storedPath)
	if !ok {
		return
	}
	store, err := s.backend(bucket)
	if err != nil {
		s.logger.Warn("delete skipped, no backend for stored path",
			"version_id", versionID, "path", *storedPath)
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		s.logger.Warn("blob delete failed",
			"version_id", versionID, "bucket", bucket, "key", key, "err", err)
	}
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
