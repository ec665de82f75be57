package vercel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

func TestDeploySendsInlineFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>My Site</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("h1{}"), 0o644))

	var got createDeployment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v13/deployments", r.URL.Path)
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"dpl_1","url":"acme-abc.vercel.app","readyState":"QUEUED","alias":["acme.vercel.app"]}`)
	}))
	defer srv.Close()

	a := New(Config{Token: "tok", TeamID: "team_1", BaseURL: srv.URL, Timeout: 5 * time.Second})
	res, err := a.Deploy(context.Background(), dir, "acme")
	require.NoError(t, err)

	assert.Equal(t, "https://acme.vercel.app", res.URL)
	assert.Equal(t, "dpl_1", res.RemoteID)
	assert.Equal(t, "QUEUED", res.Metadata["ready_state"])

	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "production", got.Target)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "css/site.css", got.Files[0].File)
	assert.Equal(t, "index.html", got.Files[1].File)
	html, err := base64.StdEncoding.DecodeString(got.Files[1].Data)
	require.NoError(t, err)
	assert.Equal(t, "<h1>My Site</h1>", string(html))
}

func TestDeployWithoutAliasUsesDeploymentURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("teamId"))
		_, _ = io.WriteString(w, `{"id":"dpl_2","url":"acme-xyz.vercel.app"}`)
	}))
	defer srv.Close()

	res, err := New(Config{Token: "tok", BaseURL: srv.URL}).Deploy(context.Background(), t.TempDir(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "https://acme-xyz.vercel.app", res.URL)
}

func TestDeployErrors(t *testing.T) {
	_, err := New(Config{BaseURL: "http://unused"}).Deploy(context.Background(), t.TempDir(), "acme")
	assert.True(t, appErr.IsCode(err, appErr.CodeDeploy))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"code":"quota"}}`)
	}))
	defer srv.Close()

	_, err = New(Config{Token: "tok", BaseURL: srv.URL}).Deploy(context.Background(), t.TempDir(), "acme")
	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, appErr.CodeDeploy, ae.Code)
	assert.Equal(t, "vercel", ae.Meta["provider"])
	assert.Contains(t, ae.Meta["body"], "quota")
}
