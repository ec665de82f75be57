// Package vercel deploys build directories through the Vercel REST API with
// inline base64 file payloads.
package vercel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagecraft/engine/internal/deploy"
)

const provider = "vercel"

type Config struct {
	Token   string
	TeamID  string
	BaseURL string
	Timeout time.Duration
}

type Adapter struct {
	token   string
	teamID  string
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Adapter {
	return &Adapter{
		token:   cfg.Token,
		teamID:  cfg.TeamID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type inlineFile struct {
	File     string `json:"file"`
	Data     string `json:"data"`
	Encoding string `json:"encoding"`
}

type createDeployment struct {
	Name            string         `json:"name"`
	Files           []inlineFile   `json:"files"`
	Target          string         `json:"target"`
	ProjectSettings map[string]any `json:"projectSettings"`
}

type deploymentResponse struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	ReadyState string   `json:"readyState"`
	Alias      []string `json:"alias"`
}

// Deploy creates a production deployment of buildDir for project siteName.
func (a *Adapter) Deploy(ctx context.Context, buildDir, siteName string) (*deploy.Result, error) {
	if a.token == "" {
		return nil, deploy.Error(provider, nil, "vercel token not configured")
	}

	files, err := deploy.ReadFiles(buildDir)
	if err != nil {
		return nil, deploy.Error(provider, err, "read build directory failed")
	}
	payload := createDeployment{
		Name:            siteName,
		Target:          "production",
		ProjectSettings: map[string]any{"framework": nil},
	}
	for _, f := range files {
		payload.Files = append(payload.Files, inlineFile{
			File:     f.Path,
			Data:     base64.StdEncoding.EncodeToString(f.Data),
			Encoding: "base64",
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, deploy.Error(provider, err, "encode deployment failed")
	}

	endpoint := a.baseURL + "/v13/deployments"
	if a.teamID != "" {
		endpoint += "?teamId=" + url.QueryEscape(a.teamID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, deploy.Error(provider, err, "build request failed")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	var d deploymentResponse
	if err := deploy.Do(a.client, req, provider, &d); err != nil {
		return nil, err
	}

	live := d.URL
	if len(d.Alias) > 0 {
		live = d.Alias[0]
	}
	if live != "" && !strings.HasPrefix(live, "http") {
		live = "https://" + live
	}
	return &deploy.Result{
		URL:      live,
		RemoteID: d.ID,
		Metadata: map[string]any{
			"provider":      provider,
			"deployment_id": d.ID,
			"ready_state":   d.ReadyState,
			"file_count":    len(files),
		},
	}, nil
}
