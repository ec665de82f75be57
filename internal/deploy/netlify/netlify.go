// Package netlify deploys build directories through the Netlify REST API
// using zip uploads.
package netlify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagecraft/engine/internal/deploy"
)

const provider = "netlify"

// Config holds the API credentials.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

type Adapter struct {
	token   string
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Adapter {
	return &Adapter{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type site struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	SSLURL string `json:"ssl_url"`
}

type siteDeploy struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	SSLURL       string `json:"ssl_url"`
	URL          string `json:"url"`
	DeploySSLURL string `json:"deploy_ssl_url"`
}

// Deploy uploads buildDir as a zip to the site named siteName, creating the
// site on first use.
func (a *Adapter) Deploy(ctx context.Context, buildDir, siteName string) (*deploy.Result, error) {
	if a.token == "" {
		return nil, deploy.Error(provider, nil, "netlify token not configured")
	}

	s, err := a.ensureSite(ctx, siteName)
	if err != nil {
		return nil, err
	}

	archive, err := deploy.ZipDir(buildDir)
	if err != nil {
		return nil, deploy.Error(provider, err, "pack build directory failed")
	}
	req, err := a.newRequest(ctx, http.MethodPost, "/sites/"+url.PathEscape(s.ID)+"/deploys", bytes.NewReader(archive))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/zip")

	var d siteDeploy
	if err := deploy.Do(a.client, req, provider, &d); err != nil {
		return nil, err
	}

	live := firstNonEmpty(d.SSLURL, s.SSLURL, d.URL, s.URL)
	return &deploy.Result{
		URL:      live,
		RemoteID: d.ID,
		Metadata: map[string]any{
			"provider":   provider,
			"site_id":    s.ID,
			"site_name":  s.Name,
			"deploy_id":  d.ID,
			"state":      d.State,
			"deploy_url": d.DeploySSLURL,
		},
	}, nil
}

func (a *Adapter) ensureSite(ctx context.Context, name string) (*site, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/sites?filter=all&name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, err
	}
	var sites []site
	if err := deploy.Do(a.client, req, provider, &sites); err != nil {
		return nil, err
	}
	for i := range sites {
		if sites[i].Name == name {
			return &sites[i], nil
		}
	}

	body, _ := json.Marshal(map[string]string{"name": name})
	req, err = a.newRequest(ctx, http.MethodPost, "/sites", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var created site
	if err := deploy.Do(a.client, req, provider, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *Adapter) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	}
	if err != nil {
		return nil, deploy.Error(provider, err, "build request failed")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	return req, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
