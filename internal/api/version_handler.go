package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/reelworks/shotline/pkg/shotline"
)

// maxUploadBytes bounds multipart attach requests.
const maxUploadBytes = 512 << 20

// VersionHandler handles HTTP requests for versions and the composite
// entity-with-first-version creates.
type VersionHandler struct {
	service shotline.Service
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(service shotline.Service) *VersionHandler {
	return &VersionHandler{service: service}
}

// Routes returns the routes for versions
func (h *VersionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateVersion)
	r.Get("/", h.ListVersions)
	r.Get("/{id}", h.GetVersion)
	r.Get("/by-code/{code}", h.GetVersionByCode)
	r.Patch("/{id}", h.UpdateVersion)
	r.Delete("/{id}", h.DeleteVersion)

	r.Post("/{id}/file", h.AttachFile)
	r.Post("/{id}/thumbnail", h.AttachThumbnail)

	return r
}

// EntityRoutes returns routes for the composite entity creates.
func (h *VersionHandler) EntityRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/assets", h.CreateAsset)
	r.Post("/sequences", h.CreateSequence)
	r.Post("/playlists", h.CreatePlaylist)

	return r
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, shotline.ErrVersionNotFound),
		errors.Is(err, shotline.ErrOwnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, shotline.ErrDuplicateCode),
		errors.Is(err, shotline.ErrDuplicateEntityCode):
		return http.StatusConflict
	case errors.Is(err, shotline.ErrInvalidOwnerRef),
		errors.Is(err, shotline.ErrUnsupportedEntityType),
		errors.Is(err, shotline.ErrMissingParent),
		errors.Is(err, shotline.ErrUnsupportedThumbnail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func serviceError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errorStatus(err))
}

// CreateVersionRequest is the request body for creating a version
type CreateVersionRequest struct {
	EntityType  string  `json:"entity_type"`
	OwnerID     int64   `json:"owner_id,omitempty"`
	OwnerCode   string  `json:"owner_code,omitempty"`
	Code        string  `json:"code,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Format      string  `json:"format,omitempty"`
	FilePath    *string `json:"file_path,omitempty"`
	Status      string  `json:"status,omitempty"`
	CreatedBy   *int64  `json:"created_by,omitempty"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	Latest      *bool   `json:"latest,omitempty"`
}

func (req CreateVersionRequest) toService() shotline.CreateVersionRequest {
	return shotline.CreateVersionRequest{
		EntityType:  shotline.EntityType(req.EntityType),
		OwnerID:     req.OwnerID,
		OwnerCode:   req.OwnerCode,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Format:      req.Format,
		FilePath:    req.FilePath,
		Status:      req.Status,
		CreatedBy:   req.CreatedBy,
		AssignedTo:  req.AssignedTo,
		Latest:      req.Latest,
	}
}

// UpdateVersionRequest is the request body for a partial version update
type UpdateVersionRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Format      *string `json:"format,omitempty"`
	Status      *string `json:"status,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	AssignedTo  *int64  `json:"assigned_to,omitempty"`
	Latest      *bool   `json:"latest,omitempty"`
	ActorID     *int64  `json:"actor_id,omitempty"`
}

// CreateOwnerRequest is the request body for a composite entity create
type CreateOwnerRequest struct {
	Code      string               `json:"code,omitempty"`
	Name      string               `json:"name,omitempty"`
	ProjectID *int64               `json:"project_id,omitempty"`
	EpisodeID *int64               `json:"episode_id,omitempty"`
	Version   CreateVersionRequest `json:"version"`
}

// VersionResponse is the response body for a version
type VersionResponse struct {
	ID            int64             `json:"id"`
	Code          string            `json:"code"`
	Owner         shotline.OwnerRef `json:"owner"`
	Name          string            `json:"name,omitempty"`
	Description   string            `json:"description,omitempty"`
	Format        string            `json:"format,omitempty"`
	VersionNumber int               `json:"version_number"`
	Latest        bool              `json:"latest"`
	Status        string            `json:"status,omitempty"`
	FileURL       string            `json:"file_url,omitempty"`
	ThumbnailURL  string            `json:"thumbnail_url,omitempty"`
	CreatedBy     *int64            `json:"created_by,omitempty"`
	AssignedTo    *int64            `json:"assigned_to,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toVersionResponse(v *shotline.Version) VersionResponse {
	return VersionResponse{
		ID:            v.ID,
		Code:          v.Code,
		Owner:         v.Owner,
		Name:          v.Name,
		Description:   v.Description,
		Format:        v.Format,
		VersionNumber: v.VersionNumber,
		Latest:        v.Latest,
		Status:        v.StatusCode,
		FileURL:       v.FileURL,
		ThumbnailURL:  v.ThumbnailURL,
		CreatedBy:     v.CreatedBy,
		AssignedTo:    v.AssignedTo,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

// CreateVersion creates a new version attached to an existing entity
func (h *VersionHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	version, err := h.service.CreateVersion(r.Context(), req.toService())
	if err != nil {
		serviceError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toVersionResponse(version))
}

// GetVersion retrieves a version by ID
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	version, err := h.service.GetVersion(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, r, toVersionResponse(version))
}

// GetVersionByCode retrieves a version by its unique code
func (h *VersionHandler) GetVersionByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "Version code is required", http.StatusBadRequest)
		return
	}

	version, err := h.service.GetVersionByCode(r.Context(), code)
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, r, toVersionResponse(version))
}

// ListVersions lists versions filtered by owner, status and latest flag
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := shotline.ListVersionsRequest{
		EntityType: shotline.EntityType(query.Get("entity_type")),
		OwnerCode:  query.Get("owner_code"),
		Status:     query.Get("status"),
		LatestOnly: query.Get("latest") == "true",
	}

	if raw := query.Get("owner_id"); raw != "" {
		ownerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid owner ID", http.StatusBadRequest)
			return
		}
		req.OwnerID = ownerID
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		req.Limit = &limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		req.Offset = &offset
	}

	versions, err := h.service.ListVersions(r.Context(), req)
	if err != nil {
		serviceError(w, err)
		return
	}

	resp := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		resp = append(resp, toVersionResponse(v))
	}

	render.JSON(w, r, resp)
}

// UpdateVersion applies a partial update to a version
func (h *VersionHandler) UpdateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var req UpdateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	version, err := h.service.UpdateVersion(r.Context(), shotline.UpdateVersionRequest{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Format:      req.Format,
		Status:      req.Status,
		Reason:      req.Reason,
		AssignedTo:  req.AssignedTo,
		Latest:      req.Latest,
		ActorID:     req.ActorID,
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, r, toVersionResponse(version))
}

// DeleteVersion deletes a version by ID
func (h *VersionHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteVersion(r.Context(), id); err != nil {
		serviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachFile uploads the primary media file for a version
func (h *VersionHandler) AttachFile(w http.ResponseWriter, r *http.Request) {
	h.attach(w, r, shotline.FileKindPrimary)
}

// AttachThumbnail uploads an explicit thumbnail for a version
func (h *VersionHandler) AttachThumbnail(w http.ResponseWriter, r *http.Request) {
	h.attach(w, r, shotline.FileKindThumbnail)
}

func (h *VersionHandler) attach(w http.ResponseWriter, r *http.Request, kind shotline.FileKind) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}

	version, err := h.service.AttachFile(r.Context(), shotline.AttachFileRequest{
		VersionID:   id,
		Kind:        kind,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Bucket:      r.FormValue("bucket"),
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, r, toVersionResponse(version))
}

// OwnerWithVersionResponse is the response body for a composite create
type OwnerWithVersionResponse struct {
	Entity  *shotline.OwnerEntity `json:"entity"`
	Version VersionResponse       `json:"version"`
}

func (h *VersionHandler) compositeCreate(
	w http.ResponseWriter, r *http.Request,
	create func(*http.Request, shotline.CreateOwnerWithVersionRequest) (*shotline.OwnerEntity, *shotline.Version, error),
) {
	var req CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entity, version, err := create(r, shotline.CreateOwnerWithVersionRequest{
		Code:      req.Code,
		Name:      req.Name,
		ProjectID: req.ProjectID,
		EpisodeID: req.EpisodeID,
		Version:   req.Version.toService(),
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, OwnerWithVersionResponse{
		Entity:  entity,
		Version: toVersionResponse(version),
	})
}

// CreateAsset creates an asset together with its first version
func (h *VersionHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	h.compositeCreate(w, r, func(r *http.Request, req shotline.CreateOwnerWithVersionRequest) (*shotline.OwnerEntity, *shotline.Version, error) {
		return h.service.CreateAssetWithVersion(r.Context(), req)
	})
}

// CreateSequence creates a sequence together with its first version
func (h *VersionHandler) CreateSequence(w http.ResponseWriter, r *http.Request) {
	h.compositeCreate(w, r, func(r *http.Request, req shotline.CreateOwnerWithVersionRequest) (*shotline.OwnerEntity, *shotline.Version, error) {
		return h.service.CreateSequenceWithVersion(r.Context(), req)
	})
}

// CreatePlaylist creates a playlist together with its first version
func (h *VersionHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	h.compositeCreate(w, r, func(r *http.Request, req shotline.CreateOwnerWithVersionRequest) (*shotline.OwnerEntity, *shotline.Version, error) {
		return h.service.CreatePlaylistWithVersion(r.Context(), req)
	})
}
