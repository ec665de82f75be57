// Package deploy defines the hosting provider contract and the dispatch
// table the deployment orchestrator selects adapters from.
package deploy

import (
	"context"
	"sort"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

// Result describes a published site.
type Result struct {
	URL      string
	RemoteID string
	Metadata map[string]any
}

// Adapter publishes a build directory to one hosting provider. Failures are
// returned as errors with code deploy and provider metadata.
type Adapter interface {
	Deploy(ctx context.Context, buildDir, siteName string) (*Result, error)
}

// Registry maps each supported deploy target to its adapter. It is built
// once at startup and only read afterwards.
type Registry map[models.DeployTarget]Adapter

// Lookup returns the adapter for target.
func (r Registry) Lookup(target models.DeployTarget) (Adapter, error) {
	a, ok := r[target]
	if !ok || a == nil {
		return nil, appErr.Newf(appErr.CodeInvalidState, "unsupported deploy target %q", target).
			WithMeta("target", string(target))
	}
	return a, nil
}

// Targets lists the registered targets in a stable order.
func (r Registry) Targets() []models.DeployTarget {
	out := make([]models.DeployTarget, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
