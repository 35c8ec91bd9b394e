package shotline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelworks/shotline/pkg/shotline"
	"github.com/reelworks/shotline/pkg/shotline/repo/memory"
	memorystorage "github.com/reelworks/shotline/pkg/shotline/storage/memory"
)

// failingBlobStore errors on every operation. Used to exercise the
// best-effort storage paths.
type failingBlobStore struct{}

func (failingBlobStore) Upload(context.Context, string, io.Reader) error {
	return errors.New("storage offline")
}
func (failingBlobStore) UploadWithParams(context.Context, io.Reader, shotline.UploadParams) error {
	return errors.New("storage offline")
}
func (failingBlobStore) GetDownloadURL(context.Context, string, string) (string, error) {
	return "", errors.New("storage offline")
}
func (failingBlobStore) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("storage offline")
}
func (failingBlobStore) Delete(context.Context, string) error {
	return errors.New("storage offline")
}
func (failingBlobStore) GetObjectMeta(context.Context, string) (*shotline.ObjectMeta, error) {
	return nil, errors.New("storage offline")
}

type fixture struct {
	svc      shotline.Service
	repo     *memory.Repository
	store    *memorystorage.Backend
	notifier *shotline.RecordingNotifier
	assetRef shotline.OwnerRef
	assetID  int64
	seqRef   shotline.OwnerRef
}

func newFixture(t *testing.T, extra ...shotline.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := memory.New()
	project := &shotline.OwnerEntity{Type: shotline.EntityProject, Code: "SHOW"}
	require.NoError(t, repo.CreateOwnerEntity(ctx, project))
	asset := &shotline.OwnerEntity{
		Type: shotline.EntityAsset, Code: "AST0001", ProjectID: &project.ID,
	}
	require.NoError(t, repo.CreateOwnerEntity(ctx, asset))
	sequence := &shotline.OwnerEntity{Type: shotline.EntitySequence, Code: "SEQ0001"}
	require.NoError(t, repo.CreateOwnerEntity(ctx, sequence))

	store := memorystorage.NewWithURLPrefix("http://media.test")
	notifier := shotline.NewRecordingNotifier()

	options := append([]shotline.Option{
		shotline.WithRepository(repo),
		shotline.WithStatusStore(repo),
		shotline.WithOwnerDirectory(repo.Directory()),
		shotline.WithBlobStore(shotline.DefaultBucket, store),
		shotline.WithNotifier(notifier),
	}, extra...)

	svc, err := shotline.New(options...)
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		repo:     repo,
		store:    store,
		notifier: notifier,
		assetRef: asset.Ref(),
		assetID:  asset.ID,
		seqRef:   sequence.Ref(),
	}
}

func (f *fixture) create(t *testing.T, req shotline.CreateVersionRequest) *shotline.Version {
	t.Helper()
	if req.EntityType == "" {
		req.EntityType = shotline.EntityAsset
		req.OwnerID = f.assetID
	}
	v, err := f.svc.CreateVersion(context.Background(), req)
	require.NoError(t, err)
	return v
}

func TestServiceCreation(t *testing.T) {
	repo := memory.New()

	tests := []struct {
		name        string
		options     []shotline.Option
		expectError bool
	}{
		{"no options should fail", nil, true},
		{
			"repository alone is not enough",
			[]shotline.Option{shotline.WithRepository(repo)},
			true,
		},
		{
			"repository and statuses without directory",
			[]shotline.Option{
				shotline.WithRepository(repo),
				shotline.WithStatusStore(repo),
			},
			true,
		},
		{
			"full wiring succeeds",
			[]shotline.Option{
				shotline.WithRepository(repo),
				shotline.WithStatusStore(repo),
				shotline.WithOwnerDirectory(repo.Directory()),
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := shotline.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestCreateVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, shotline.CreateVersionRequest{Name: "blocking"})
	assert.Equal(t, 1, first.VersionNumber)
	assert.True(t, first.Latest)
	assert.Equal(t, "wip", first.StatusCode)
	assert.Equal(t, fmt.Sprintf("asset-%d_v001", f.assetID), first.Code)

	t.Run("second version takes over latest", func(t *testing.T) {
		second := f.create(t, shotline.CreateVersionRequest{Name: "polish"})
		assert.Equal(t, 2, second.VersionNumber)
		assert.True(t, second.Latest)

		reloaded, err := f.svc.GetVersion(ctx, first.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.Latest)
	})

	t.Run("non-latest create leaves the flag alone", func(t *testing.T) {
		latest := new(bool)
		third := f.create(t, shotline.CreateVersionRequest{Latest: latest})
		assert.Equal(t, 3, third.VersionNumber)
		assert.False(t, third.Latest)

		versions, err := f.svc.ListVersions(ctx, shotline.ListVersionsRequest{
			EntityType: shotline.EntityAsset, OwnerID: f.assetID, LatestOnly: true,
		})
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 2, versions[0].VersionNumber)
	})

	t.Run("owner must exist", func(t *testing.T) {
		_, err := f.svc.CreateVersion(ctx, shotline.CreateVersionRequest{
			EntityType: shotline.EntityAsset, OwnerID: 404,
		})
		assert.ErrorIs(t, err, shotline.ErrOwnerNotFound)
	})

	t.Run("owner addressing required", func(t *testing.T) {
		_, err := f.svc.CreateVersion(ctx, shotline.CreateVersionRequest{
			EntityType: shotline.EntityAsset,
		})
		assert.ErrorIs(t, err, shotline.ErrInvalidOwnerRef)
	})

	t.Run("duplicate code rejected", func(t *testing.T) {
		f.create(t, shotline.CreateVersionRequest{Code: "hero_comp_v010"})
		_, err := f.svc.CreateVersion(ctx, shotline.CreateVersionRequest{
			EntityType: shotline.EntityAsset, OwnerID: f.assetID, Code: "hero_comp_v010",
		})
		assert.ErrorIs(t, err, shotline.ErrDuplicateCode)
	})

	t.Run("unknown status means no status", func(t *testing.T) {
		v := f.create(t, shotline.CreateVersionRequest{Status: "omit"})
		assert.Nil(t, v.StatusID)
		assert.Empty(t, v.StatusCode)
	})

	t.Run("numbers are scoped per owner", func(t *testing.T) {
		v, err := f.svc.CreateVersion(ctx, shotline.CreateVersionRequest{
			EntityType: shotline.EntitySequence, OwnerID: f.seqRef.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, v.VersionNumber)
	})
}

func TestDeleteVersionPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1 := f.create(t, shotline.CreateVersionRequest{})
	v2 := f.create(t, shotline.CreateVersionRequest{})

	t.Run("deleting the latest promotes the newest survivor", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteVersion(ctx, v2.ID))

		promoted, err := f.svc.GetVersion(ctx, v1.ID)
		require.NoError(t, err)
		assert.True(t, promoted.Latest)
	})

	v3 := f.create(t, shotline.CreateVersionRequest{})

	t.Run("deleting a non-latest version promotes nothing", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteVersion(ctx, v1.ID))

		latest, err := f.svc.GetVersion(ctx, v3.ID)
		require.NoError(t, err)
		assert.True(t, latest.Latest)
	})

	t.Run("double delete reports not found", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.DeleteVersion(ctx, v1.ID), shotline.ErrVersionNotFound)
	})
}

func TestDeleteVersionRemovesBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.create(t, shotline.CreateVersionRequest{})
	attached, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
		VersionID:   v.ID,
		Kind:        shotline.FileKindPrimary,
		FileName:    "take.mov",
		ContentType: "video/quicktime",
		Data:        []byte("frames"),
	})
	require.NoError(t, err)
	require.NotNil(t, attached.FilePath)

	key := strings.TrimPrefix(*attached.FilePath, shotline.DefaultBucket+"/")
	_, err = f.store.Download(ctx, key)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteVersion(ctx, v.ID))

	_, err = f.store.Download(ctx, key)
	assert.Error(t, err)
}

func TestDeleteVersionSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t, shotline.WithBlobStore("archive", failingBlobStore{}))
	ctx := context.Background()

	v := f.create(t, shotline.CreateVersionRequest{})

	// Point the record at the broken backend directly.
	stored, err := f.repo.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	path := "archive/V/1/primary/x/take.mov"
	stored.FilePath = &path
	require.NoError(t, f.repo.UpdateVersion(ctx, stored))

	// Blob removal fails, record removal still goes through.
	require.NoError(t, f.svc.DeleteVersion(ctx, v.ID))
	_, err = f.svc.GetVersion(ctx, v.ID)
	assert.ErrorIs(t, err, shotline.ErrVersionNotFound)
}

func TestUpdateVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	strPtr := func(s string) *string { return &s }
	boolPtr := func(b bool) *bool { return &b }

	t.Run("field patch", func(t *testing.T) {
		v := f.create(t, shotline.CreateVersionRequest{Name: "old"})

		updated, err := f.svc.UpdateVersion(ctx, shotline.UpdateVersionRequest{
			ID:          v.ID,
			Name:        strPtr("new"),
			Description: strPtr("notes"),
		})
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Name)
		assert.Equal(t, "notes", updated.Description)
		// Untouched fields survive.
		assert.Equal(t, v.Code, updated.Code)
	})

	t.Run("promote to latest clears the previous holder", func(t *testing.T) {
		older := f.create(t, shotline.CreateVersionRequest{})
		newer := f.create(t, shotline.CreateVersionRequest{})
		require.True(t, newer.Latest)

		promoted, err := f.svc.UpdateVersion(ctx, shotline.UpdateVersionRequest{
			ID: older.ID, Latest: boolPtr(true),
		})
		require.NoError(t, err)
		assert.True(t, promoted.Latest)

		demoted, err := f.svc.GetVersion(ctx, newer.ID)
		require.NoError(t, err)
		assert.False(t, demoted.Latest)
	})

	t.Run("status timestamp moves only on change", func(t *testing.T) {
		v := f.create(t, shotline.CreateVersionRequest{})
		initial := v.StatusUpdatedAt

		same, err := f.svc.UpdateVersion(ctx, shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("wip"),
		})
		require.NoError(t, err)
		assert.Equal(t, initial, same.StatusUpdatedAt)

		changed, err := f.svc.UpdateVersion(ctx, shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("review"),
		})
		require.NoError(t, err)
		assert.True(t, changed.StatusUpdatedAt.After(initial))
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := f.svc.UpdateVersion(ctx, shotline.UpdateVersionRequest{ID: 404404})
		assert.ErrorIs(t, err, shotline.ErrVersionNotFound)
	})
}

func TestStatusChangeNotifications(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	int64Ptr := func(n int64) *int64 { return &n }

	t.Run("approval publishes an event", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("approved"),
		})
		require.NoError(t, err)

		events := f.notifier.Published()
		require.Len(t, events, 1)
		assert.Equal(t, shotline.EventVersionApproved, events[0].Kind)
		assert.Equal(t, v.ID, events[0].VersionID)
		assert.Equal(t, v.Code, events[0].VersionCode)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{Status: "approved"})

		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("approved"),
		})
		require.NoError(t, err)
		assert.Empty(t, f.notifier.Published())
	})

	t.Run("wip to review is silent", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("review"),
		})
		require.NoError(t, err)
		assert.Empty(t, f.notifier.Published())
	})

	t.Run("rejection carries a default reason", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("rejected"),
		})
		require.NoError(t, err)

		events := f.notifier.Published()
		require.Len(t, events, 1)
		assert.Equal(t, shotline.EventVersionRejected, events[0].Kind)
		assert.Equal(t, "No reason provided", events[0].Reason)
	})

	t.Run("rejection keeps the supplied reason", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("rejected"), Reason: "flicker in frame range 1001-1012",
		})
		require.NoError(t, err)
		assert.Equal(t, "flicker in frame range 1001-1012", f.notifier.Published()[0].Reason)
	})

	t.Run("creator gets an in-app note unless they acted", func(t *testing.T) {
		f := newFixture(t)
		creator, reviewer := int64Ptr(7), int64Ptr(8)

		v := f.create(t, shotline.CreateVersionRequest{CreatedBy: creator})
		_, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("approved"), ActorID: reviewer,
		})
		require.NoError(t, err)
		assert.Len(t, f.notifier.UserEvents(7), 1)

		// Self-approval: publish only, no self-notification.
		own := f.create(t, shotline.CreateVersionRequest{CreatedBy: creator})
		_, err = f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: own.ID, Status: strPtr("approved"), ActorID: creator,
		})
		require.NoError(t, err)
		assert.Len(t, f.notifier.UserEvents(7), 1)
	})

	t.Run("notifier failures never fail the update", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.PublishErr = errors.New("webhook down")
		f.notifier.NotifyErr = errors.New("inbox down")

		v := f.create(t, shotline.CreateVersionRequest{CreatedBy: int64Ptr(7)})
		updated, err := f.svc.UpdateVersion(context.Background(), shotline.UpdateVersionRequest{
			ID: v.ID, Status: strPtr("approved"), ActorID: int64Ptr(8),
		})
		require.NoError(t, err)
		assert.Equal(t, "approved", updated.StatusCode)
	})
}

func TestAttachFile(t *testing.T) {
	ctx := context.Background()

	t.Run("primary upload stores path and resolves URL", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		attached, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID:   v.ID,
			Kind:        shotline.FileKindPrimary,
			FileName:    "hero comp.mov",
			ContentType: "video/quicktime",
			Data:        []byte("frames"),
		})
		require.NoError(t, err)

		require.NotNil(t, attached.FilePath)
		assert.True(t, strings.HasPrefix(*attached.FilePath, shotline.DefaultBucket+"/V/"))
		assert.False(t, strings.HasPrefix(*attached.FilePath, "http"))
		assert.True(t, strings.HasPrefix(attached.FileURL, "http://media.test/"))
		// Video primaries get no derived thumbnail.
		assert.Nil(t, attached.ThumbnailPath)
	})

	t.Run("replacement deletes the previous blob", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		first, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: v.ID, Kind: shotline.FileKindPrimary,
			FileName: "v1.mov", ContentType: "video/quicktime", Data: []byte("one"),
		})
		require.NoError(t, err)
		firstKey := strings.TrimPrefix(*first.FilePath, shotline.DefaultBucket+"/")

		second, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: v.ID, Kind: shotline.FileKindPrimary,
			FileName: "v2.mov", ContentType: "video/quicktime", Data: []byte("two"),
		})
		require.NoError(t, err)
		assert.NotEqual(t, *first.FilePath, *second.FilePath)

		_, err = f.store.Download(ctx, firstKey)
		assert.Error(t, err)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: v.ID, Kind: "sidecar", Data: []byte("x"),
		})
		assert.Error(t, err)
	})

	t.Run("unregistered bucket rejected", func(t *testing.T) {
		f := newFixture(t)
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: v.ID, Kind: shotline.FileKindPrimary,
			Bucket: "glacier", Data: []byte("x"),
		})
		assert.ErrorIs(t, err, shotline.ErrStorageBackendNotFound)
	})

	t.Run("upload failure leaves the record unchanged", func(t *testing.T) {
		f := newFixture(t, shotline.WithBlobStore("archive", failingBlobStore{}))
		v := f.create(t, shotline.CreateVersionRequest{})

		_, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: v.ID, Kind: shotline.FileKindPrimary,
			Bucket: "archive", FileName: "take.mov", Data: []byte("x"),
		})
		var storageErr *shotline.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "archive", storageErr.Bucket)

		reloaded, err := f.svc.GetVersion(ctx, v.ID)
		require.NoError(t, err)
		assert.Nil(t, reloaded.FilePath)
	})

	t.Run("missing version", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AttachFile(ctx, shotline.AttachFileRequest{
			VersionID: 404404, Kind: shotline.FileKindPrimary, Data: []byte("x"),
		})
		assert.ErrorIs(t, err, shotline.ErrVersionNotFound)
	})
}

func TestPublicURLPassthrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	public := "https://cdn.example.com/media/plates/sc010.mp4"
	v := f.create(t, shotline.CreateVersionRequest{FilePath: &public})

	got, err := f.svc.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, public, got.FileURL)
}
