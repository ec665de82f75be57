package deploy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

const maxErrorBody = 2048

// Error builds a deploy error tagged with the provider.
func Error(provider string, err error, msg string) *appErr.AppError {
	return appErr.Wrap(err, appErr.CodeDeploy, msg).WithMeta("provider", provider)
}

// Do sends req and decodes a 2xx JSON response into out. Non-2xx responses
// become deploy errors carrying the status and a truncated body.
func Do(client *http.Client, req *http.Request, provider string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return Error(provider, err, fmt.Sprintf("%s %s failed", req.Method, req.URL.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := appErr.Newf(appErr.CodeDeploy, "%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode).
			WithMeta("provider", provider).
			WithMeta("status", resp.StatusCode).
			WithMeta("body", string(body))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			e.WithMeta("reason", "unauthorized")
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			e.WithMeta("reason", "rate_limited")
		}
		return e
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return Error(provider, err, "decode response failed")
	}
	return nil
}
