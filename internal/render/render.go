// Package render turns a template's root document into final HTML by
// substituting {{config.<key>}} placeholders.
package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aymerick/raymond"

	appErr "github.com/pagecraft/engine/pkg/errors"
)

// RootDocument is the file rendered in every bundle.
const RootDocument = "index.html"

var relativeAsset = regexp.MustCompile(`\b(href|src)=("|')\./([^"']*)("|')`)

// Option configures a Renderer at construction time.
type Option func(*Renderer)

// WithHelper adds a template helper. Helpers cannot be changed after New.
func WithHelper(name string, fn any) Option {
	return func(r *Renderer) { r.helpers[name] = fn }
}

// Renderer renders handlebars documents with a helper set fixed when it is
// constructed. It is safe for concurrent use.
type Renderer struct {
	helpers map[string]any
}

// New returns a Renderer with the eq helper plus any extra helpers. It
// panics if a helper has an unusable signature.
func New(opts ...Option) *Renderer {
	r := &Renderer{helpers: map[string]any{"eq": eq}}
	for _, opt := range opts {
		opt(r)
	}
	probe := raymond.MustParse("")
	probe.RegisterHelpers(r.helpers)
	return r
}

func eq(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Render reads the root document of buildDir and renders it with config.
// Unset placeholders render as empty strings. When assetBaseURL is set,
// ./relative href and src references are rewritten against it; otherwise
// asset paths are left alone so the bundle stays relocatable.
func (r *Renderer) Render(buildDir string, config map[string]any, assetBaseURL string) (string, error) {
	docPath := filepath.Join(buildDir, RootDocument)
	src, err := os.ReadFile(docPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", appErr.New(appErr.CodeTemplate, "root document not found").WithMeta("path", docPath)
		}
		return "", appErr.Wrap(err, appErr.CodeStorage, "read root document failed")
	}
	return r.RenderString(string(src), config, assetBaseURL)
}

// RenderString renders an in-memory document.
func (r *Renderer) RenderString(source string, config map[string]any, assetBaseURL string) (string, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeTemplate, "parse template failed")
	}
	tpl.RegisterHelpers(r.helpers)

	if config == nil {
		config = map[string]any{}
	}
	out, err := tpl.Exec(map[string]any{"config": config})
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeTemplate, "render template failed")
	}
	if assetBaseURL != "" {
		out = RewriteAssets(out, assetBaseURL)
	}
	return out, nil
}

// RewriteAssets points ./relative href and src attributes at base.
func RewriteAssets(html, base string) string {
	base = strings.TrimRight(base, "/")
	return relativeAsset.ReplaceAllStringFunc(html, func(m string) string {
		parts := relativeAsset.FindStringSubmatch(m)
		return parts[1] + "=" + parts[2] + base + "/" + parts[3] + parts[4]
	})
}
