package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/projection"
	"github.com/starford/mediabin/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// ListAssets handles GET /api/assets.
//
//	@Summary		List every asset in catalog order
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.sess.Assets(r.Context())
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: assets, Total: len(assets)})
}

// GetAsset handles GET /api/assets/{id}.
//
//	@Summary		Get one asset
//	@Tags			assets
//	@Produce		json
//	@Param			id	path		string	true	"Asset id"
//	@Success		200	{object}	Asset
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{id} [get]
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.sess.Asset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get asset", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAsset handles PATCH /api/assets/{id}.
//
//	@Summary		Edit the title and/or tags of an asset
//	@Tags			assets
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Asset id"
//	@Param			body	body		UpdateAssetRequest	true	"Fields to change"
//	@Success		200		{object}	Asset
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{id} [patch]
func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil && req.Tags == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("title or tags is required"))
		return
	}
	if req.Title != nil {
		if err := h.sess.SetField(r.Context(), id, catalog.FieldTitle, *req.Title); err != nil {
			writeError(w, "update asset", err)
			return
		}
	}
	if req.Tags != nil {
		if err := h.sess.SetField(r.Context(), id, catalog.FieldTags, *req.Tags); err != nil {
			writeError(w, "update asset", err)
			return
		}
	}
	h.GetAsset(w, r)
}

// DeleteAsset handles DELETE /api/assets/{id}.
//
//	@Summary		Remove an asset from the catalog
//	@Tags			assets
//	@Param			id	path	string	true	"Asset id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{id} [delete]
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete asset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Thumbnail handles GET /api/assets/{id}/thumbnail.
//
//	@Summary		Resolve the preview image of an asset
//	@Tags			assets
//	@Produce		json
//	@Param			id		path		string	true	"Asset id"
//	@Param			frame	query		int		false	"1-based frame, defaults to the start frame"
//	@Param			force	query		bool	false	"Regenerate instead of using the cache"
//	@Success		200		{object}	ThumbnailResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{id}/thumbnail [get]
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var frame *int
	if s := q.Get("frame"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody("frame must be a positive integer"))
			return
		}
		frame = &n
	}
	force, _ := strconv.ParseBool(q.Get("force"))

	loc, ok, err := h.sess.Thumbnail(r.Context(), chi.URLParam(r, "id"), frame, force)
	if err != nil {
		writeError(w, "thumbnail", err)
		return
	}
	writeJSON(w, http.StatusOK, ThumbnailResponse{Location: loc, Available: ok})
}

// ListImports handles GET /api/imports.
//
//	@Summary		List recent import jobs
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	ImportListResponse
//	@Security		BearerAuth
//	@Router			/imports [get]
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.sess.Jobs(r.Context())
	if err != nil {
		writeError(w, "list imports", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportListResponse{Imports: jobs})
}

// GetImport handles GET /api/imports/{id}.
//
//	@Summary		Get one import job
//	@Tags			imports
//	@Produce		json
//	@Param			id	path		string	true	"Job id"
//	@Success		200	{object}	ImportJob
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports/{id} [get]
func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	job, err := h.sess.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get import", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// StartImport handles POST /api/imports.
//
//	@Summary		Queue files or directories for import
//	@Tags			imports
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ImportRequest	true	"Paths to import"
//	@Success		202		{object}	ImportJob
//	@Success		200		{object}	ImportJob
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/imports [post]
func (h *Handler) StartImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("paths is required"))
		return
	}
	if req.Hint != nil {
		if err := req.Hint.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid hint: "+err.Error()))
			return
		}
	}

	job, err := h.sess.Import(r.Context(), session.ImportRequest{Paths: req.Paths, Hint: req.Hint, Quiet: req.Quiet})
	if err != nil {
		writeError(w, "start import", err)
		return
	}
	if !req.Wait {
		writeJSON(w, http.StatusAccepted, job)
		return
	}
	if _, err := h.sess.Wait(r.Context(), job.ID); err != nil {
		writeError(w, "wait import", err)
		return
	}
	h.writeJob(w, r, job.ID)
}

func (h *Handler) writeJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.sess.Job(r.Context(), id)
	if err != nil {
		writeError(w, "get import", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelImport handles DELETE /api/imports/current.
//
//	@Summary		Cancel the running import and drop queued ones
//	@Tags			imports
//	@Produce		json
//	@Success		200	{object}	CancelResponse
//	@Security		BearerAuth
//	@Router			/imports/current [delete]
func (h *Handler) CancelImport(w http.ResponseWriter, r *http.Request) {
	n, err := h.sess.CancelImport(r.Context())
	if err != nil {
		writeError(w, "cancel import", err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: n})
}

// GetView handles GET /api/view.
//
//	@Summary		Get the visible rows with the current filter and sort
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	ViewResponse
//	@Security		BearerAuth
//	@Router			/view [get]
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	vs, err := h.sess.View(r.Context())
	if err != nil {
		writeError(w, "get view", err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

// Columns handles GET /api/view/columns.
func (h *Handler) Columns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ColumnsResponse{Columns: projection.Fields[:]})
}

// SetFilter handles PUT /api/view/filter.
//
//	@Summary		Set the media type and text filters
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FilterRequest	true	"Filter"
//	@Success		200		{object}	ViewResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/filter [put]
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.sess.SetTypeFilter(r.Context(), models.MediaType(req.Type)); err != nil {
		writeError(w, "set filter", err)
		return
	}
	if err := h.sess.SetTextFilter(r.Context(), req.Text, req.Fixed); err != nil {
		writeError(w, "set filter", err)
		return
	}
	h.GetView(w, r)
}

// SetSort handles PUT /api/view/sort.
//
//	@Summary		Sort the view by a column
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SortRequest	true	"Sort order"
//	@Success		200		{object}	ViewResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/sort [put]
func (h *Handler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	col := -1
	if req.Column != "" {
		var err error
		if col, err = column(req.Column); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	if err := h.sess.Sort(r.Context(), col, req.Descending); err != nil {
		writeError(w, "set sort", err)
		return
	}
	h.GetView(w, r)
}

// SetCell handles PUT /api/view/cells.
//
//	@Summary		Edit one visible cell
//	@Tags			view
//	@Accept			json
//	@Param			body	body	CellRequest	true	"Cell edit"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/cells [put]
func (h *Handler) SetCell(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	col, err := column(req.Column)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.sess.SetCell(r.Context(), req.Row, col, req.Value); err != nil {
		writeError(w, "set cell", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles POST /api/view/export.
//
//	@Summary		Build the drag payload of selected cells
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportRequest	true	"Selected cells"
//	@Success		200		{object}	Selection
//	@Security		BearerAuth
//	@Router			/view/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sel, err := h.sess.Export(r.Context(), req.Indices)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// ProjectStatus handles GET /api/project.
func (h *Handler) ProjectStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.sess.Status(r.Context())
	if err != nil {
		writeError(w, "project status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SaveProject handles POST /api/project/save.
//
//	@Summary		Write the catalog to the project document
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	ProjectStatus
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/save [post]
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Save(r.Context()); err != nil {
		writeError(w, "save project", err)
		return
	}
	h.ProjectStatus(w, r)
}

// LoadProject handles POST /api/project/load.
//
//	@Summary		Replace the catalog with the project document
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	ProjectStatus
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/project/load [post]
func (h *Handler) LoadProject(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Load(r.Context()); err != nil {
		writeError(w, "load project", err)
		return
	}
	h.ProjectStatus(w, r)
}

// column resolves a column given by index, key or header.
func column(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	return projection.ColumnByName(name)
}
