package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/pagecraft/engine/internal/api/middleware"
	"github.com/pagecraft/engine/internal/api/types"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/services"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

const (
	bundleField     = "bundle"
	multipartMemory = 32 << 20
)

type TemplatesHandler struct {
	svc            services.TemplateService
	maxBundleBytes int64
}

func NewTemplatesHandler(svc services.TemplateService, maxBundleBytes int64) *TemplatesHandler {
	return &TemplatesHandler{svc: svc, maxBundleBytes: maxBundleBytes}
}

func (h *TemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListTemplates(r.Context(), repository.TemplateFilter{
		Category: q.Get("category"),
		Status:   models.TemplateStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

func (h *TemplatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.TemplateCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	t, err := h.svc.CreateTemplate(r.Context(), &services.CreateTemplateInput{
		Slug:         req.Slug,
		Name:         req.Name,
		Category:     req.Category,
		ConfigSchema: req.ConfigSchema,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusCreated, t)
}

func (h *TemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	t, err := h.svc.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

// UploadBundle accepts a zip archive in the multipart field "bundle".
func (h *TemplatesHandler) UploadBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if h.maxBundleBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBundleBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "invalid multipart body"), nil)
		return
	}
	file, _, err := r.FormFile(bundleField)
	if err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "missing bundle file"), nil)
		return
	}
	defer file.Close()
	bundle, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, appErr.Wrap(err, appErr.CodeInvalid, "read bundle failed"), nil)
		return
	}

	v, err := h.svc.UploadBundle(r.Context(), id, middleware.GetUserID(r.Context()), bundle)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusCreated, v)
}

func (h *TemplatesHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	versions, err := h.svc.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, versions)
}

// Files lists the files of ?version=N, or of the current version.
func (h *TemplatesHandler) Files(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err = strconv.Atoi(raw)
		if err != nil || version < 1 {
			writeError(w, r, appErr.New(appErr.CodeInvalid, "invalid version"), nil)
			return
		}
	}
	files, err := h.svc.ListFiles(r.Context(), id, version)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, files)
}

func (h *TemplatesHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req types.TemplateCloneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	clone, err := h.svc.Clone(r.Context(), id, middleware.GetUserID(r.Context()), &services.CloneTemplateInput{
		Slug: req.Slug,
		Name: req.Name,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusCreated, clone)
}

func (h *TemplatesHandler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if err := h.svc.DeleteFiles(r.Context(), id, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
