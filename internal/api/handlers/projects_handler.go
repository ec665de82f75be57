package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pagecraft/engine/internal/api/middleware"
	"github.com/pagecraft/engine/internal/api/types"
	"github.com/pagecraft/engine/internal/models"
	"github.com/pagecraft/engine/internal/repository"
	"github.com/pagecraft/engine/internal/services"
)

// AssetRoute is where stored template files are served for previews.
const AssetRoute = "/assets/templates"

type ProjectsHandler struct {
	projects  services.ProjectService
	templates services.TemplateService
	builds    services.BuildService
	activity  services.ActivityService
	assetBase string
}

// NewProjectsHandler wires project routes. assetBase is the public origin
// previews load template assets from, e.g. "https://api.example.com".
func NewProjectsHandler(projects services.ProjectService, templates services.TemplateService, builds services.BuildService, activity services.ActivityService, assetBase string) *ProjectsHandler {
	return &ProjectsHandler{
		projects:  projects,
		templates: templates,
		builds:    builds,
		activity:  activity,
		assetBase: strings.TrimRight(assetBase, "/"),
	}
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryID(r, "client_id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	templateID, err := queryID(r, "template_id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	items, err := h.projects.ListProjects(r.Context(), repository.ProjectFilter{
		ClientID:   clientID,
		TemplateID: templateID,
		Status:     models.ProjectStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	input := &services.CreateProjectInput{
		Slug:         req.Slug,
		Name:         req.Name,
		TemplateID:   uuid.MustParse(req.TemplateID),
		DeployTarget: models.DeployTarget(req.DeployTarget),
		Config:       req.Config,
	}
	if req.ClientID != "" {
		input.ClientID = uuid.MustParse(req.ClientID)
	}
	p, err := h.projects.CreateProject(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusCreated, p)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	p, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req types.ProjectUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	input := &services.UpdateProjectInput{Name: req.Name}
	if req.DeployTarget != nil {
		target := models.DeployTarget(*req.DeployTarget)
		input.DeployTarget = &target
	}
	p, err := h.projects.UpdateProject(r.Context(), id, middleware.GetUserID(r.Context()), input)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

// Config returns the resolved configuration: schema defaults with the
// project's overrides applied.
func (h *ProjectsHandler) Config(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	cfg, err := h.projects.ResolvedConfig(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, cfg)
}

func (h *ProjectsHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req types.ProjectConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	p, err := h.projects.UpdateConfig(r.Context(), id, middleware.GetUserID(r.Context()), req.Config)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var req types.ProjectStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	p, err := h.projects.UpdateStatus(r.Context(), id, middleware.GetUserID(r.Context()), models.ProjectStatus(req.Status))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, p)
}

func (h *ProjectsHandler) Build(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	dir, err := h.builds.BuildProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, types.BuildResponse{ProjectID: id.String(), BuildDir: dir})
}

// Preview renders the project's root document without building. With
// ?format=html the page itself is returned instead of a JSON envelope.
func (h *ProjectsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	p, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	t, err := h.templates.GetTemplate(r.Context(), p.TemplateID)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	html, err := h.builds.PreviewProject(r.Context(), id, h.assetBase+AssetRoute+"/"+t.FilePath)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
		return
	}
	writeData(w, r, http.StatusOK, types.PreviewResponse{HTML: html})
}

func (h *ProjectsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if _, err := h.projects.GetProject(r.Context(), id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	entries, err := h.activity.ListByProject(r.Context(), id, listLimit(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, entries)
}
