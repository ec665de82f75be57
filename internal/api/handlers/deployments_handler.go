package handlers

import (
	"net/http"

	"github.com/pagecraft/engine/internal/api/middleware"
	"github.com/pagecraft/engine/internal/api/types"
	"github.com/pagecraft/engine/internal/services"
)

type DeploymentsHandler struct {
	svc services.DeploymentService
}

func NewDeploymentsHandler(svc services.DeploymentService) *DeploymentsHandler {
	return &DeploymentsHandler{svc: svc}
}

func (h *DeploymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	items, err := h.svc.ListDeployments(r.Context(), projectID, listLimit(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

// Create triggers a deployment of the project. With ?async=true the attempt
// is queued for the worker and 202 is returned. A synchronous attempt that
// fails still returns the failed deployment record next to the error.
func (h *DeploymentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	userID := middleware.GetUserID(r.Context())

	if r.URL.Query().Get("async") == "true" {
		taskID, err := h.svc.EnqueueDeploy(r.Context(), projectID, userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeData(w, r, http.StatusAccepted, types.DeployAccepted{TaskID: taskID, ProjectID: projectID.String()})
		return
	}

	d, err := h.svc.TriggerDeploy(r.Context(), projectID, userID)
	if err != nil {
		if d != nil {
			writeError(w, r, err, d)
			return
		}
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusCreated, d)
}

func (h *DeploymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	d, err := h.svc.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeData(w, r, http.StatusOK, d)
}
