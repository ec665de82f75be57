package netlify

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

func buildDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>My Site</h1>"), 0o644))
	return dir
}

func TestDeployCreatesSiteAndUploadsZip(t *testing.T) {
	var created atomic.Bool
	var uploaded []string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "acme-site", r.URL.Query().Get("name"))
		_, _ = io.WriteString(w, `[{"id":"other","name":"acme-site-2"}]`)
	})
	mux.HandleFunc("POST /sites", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme-site", body["name"])
		created.Store(true)
		_, _ = io.WriteString(w, `{"id":"site-1","name":"acme-site","ssl_url":"https://acme-site.netlify.app"}`)
	})
	mux.HandleFunc("POST /sites/site-1/deploys", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/zip", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if !assert.NoError(t, err) {
			return
		}
		for _, f := range zr.File {
			uploaded = append(uploaded, f.Name)
		}
		_, _ = io.WriteString(w, `{"id":"dep-9","state":"uploaded","deploy_ssl_url":"https://dep-9--acme-site.netlify.app"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := New(Config{Token: "tok", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	res, err := a.Deploy(context.Background(), buildDir(t), "acme-site")
	require.NoError(t, err)

	assert.True(t, created.Load())
	assert.Equal(t, []string{"index.html"}, uploaded)
	assert.Equal(t, "https://acme-site.netlify.app", res.URL)
	assert.Equal(t, "dep-9", res.RemoteID)
	assert.Equal(t, "site-1", res.Metadata["site_id"])
	assert.Equal(t, "netlify", res.Metadata["provider"])
}

func TestDeployReusesExistingSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"site-7","name":"acme","ssl_url":"https://acme.netlify.app"}]`)
	})
	mux.HandleFunc("POST /sites", func(w http.ResponseWriter, r *http.Request) {
		t.Error("site must not be recreated")
	})
	mux.HandleFunc("POST /sites/site-7/deploys", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"dep-1","ssl_url":"https://acme.netlify.app"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := New(Config{Token: "tok", BaseURL: srv.URL}).Deploy(context.Background(), buildDir(t), "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.netlify.app", res.URL)
}

func TestDeployFailures(t *testing.T) {
	_, err := New(Config{BaseURL: "http://unused"}).Deploy(context.Background(), buildDir(t), "x")
	assert.True(t, appErr.IsCode(err, appErr.CodeDeploy))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err = New(Config{Token: "bad", BaseURL: srv.URL}).Deploy(context.Background(), buildDir(t), "x")
	require.Error(t, err)
	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, appErr.CodeDeploy, ae.Code)
	assert.Equal(t, http.StatusForbidden, ae.Meta["status"])
}

func TestDeployRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Token: "tok", BaseURL: srv.URL}).Deploy(ctx, buildDir(t), "slow")
	assert.True(t, appErr.IsCode(err, appErr.CodeDeploy))
}
