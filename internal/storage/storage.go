package storage

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

const (
	templatesDir = "templates"
	buildsDir    = "builds"

	// Uncompressed bundle contents may be at most this multiple of the
	// archive size ceiling.
	maxExpansion = 10
)

// ignoredEntries are archive members never extracted or listed.
var ignoredEntries = []string{
	"__MACOSX/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// Storage owns the on-disk layout of template bundles and project builds:
//
//	{root}/templates/{templateId}/v{version}/
//	{root}/builds/{projectId}/
//
// All filesystem mutation in the pipeline goes through it.
type Storage struct {
	root           string
	maxBundleBytes int64
}

// New ensures the storage root and its subdirectories exist.
func New(root string, maxBundleBytes int64) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	for _, dir := range []string{templatesDir, buildsDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Storage{root: abs, maxBundleBytes: maxBundleBytes}, nil
}

// Root returns the absolute storage root.
func (s *Storage) Root() string { return s.root }

// RelativePath returns the template-relative path of a bundle version,
// e.g. "3f1c.../v2".
func RelativePath(templateID uuid.UUID, version int) string {
	return path.Join(templateID.String(), "v"+strconv.Itoa(version))
}

// GetAbsolutePath resolves a template-relative path against the templates
// directory. Leading ".." components are discarded so the result never
// escapes it.
func (s *Storage) GetAbsolutePath(relativePath string) string {
	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(relativePath))
	return filepath.Join(s.root, templatesDir, clean)
}

// BuildPath returns the build directory of a project. It does not touch disk.
func (s *Storage) BuildPath(projectID uuid.UUID) string {
	return filepath.Join(s.root, buildsDir, projectID.String())
}

// Save extracts a zip bundle into templates/{templateId}/v{version}/ and
// returns the relative path. A single top-level directory wrapping every
// entry is flattened away.
func (s *Storage) Save(templateID uuid.UUID, version int, bundle []byte) (string, error) {
	if version < 1 {
		return "", appErr.Newf(appErr.CodeInvalid, "invalid template version %d", version)
	}
	if s.maxBundleBytes > 0 && int64(len(bundle)) > s.maxBundleBytes {
		return "", appErr.New(appErr.CodeStorage, "bundle exceeds size limit").
			WithMeta("size", len(bundle)).
			WithMeta("limit", s.maxBundleBytes)
	}
	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "malformed bundle archive")
	}

	entries, err := s.bundleEntries(zr)
	if err != nil {
		return "", err
	}

	rel := RelativePath(templateID, version)
	target := s.GetAbsolutePath(rel)
	if err := os.RemoveAll(target); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "clean version directory failed")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "create version directory failed")
	}

	prefix := commonRoot(entries)
	for _, f := range entries {
		name := strings.TrimPrefix(strings.TrimPrefix(f.Name, "./"), prefix)
		if name == "" {
			continue
		}
		if err := extractEntry(f, target, name); err != nil {
			_ = os.RemoveAll(target)
			return "", err
		}
	}
	return rel, nil
}

// bundleEntries filters ignored members and enforces the uncompressed size
// ceiling before anything is written.
func (s *Storage) bundleEntries(zr *zip.Reader) ([]*zip.File, error) {
	var total uint64
	out := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if ignored(f.Name) {
			continue
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			continue
		}
		total += f.UncompressedSize64
		if s.maxBundleBytes > 0 && total > uint64(s.maxBundleBytes)*maxExpansion {
			return nil, appErr.New(appErr.CodeStorage, "bundle contents exceed size limit")
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, appErr.New(appErr.CodeStorage, "bundle archive is empty")
	}
	return out, nil
}

func extractEntry(f *zip.File, target, name string) error {
	dest := filepath.Join(target, filepath.FromSlash(name))
	if !within(target, dest) {
		return appErr.New(appErr.CodeStorage, "bundle entry escapes target directory").WithMeta("entry", f.Name)
	}
	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return appErr.Wrap(err, appErr.CodeStorage, "create directory failed")
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "create directory failed")
	}
	rc, err := f.Open()
	if err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "open bundle entry failed").WithMeta("entry", f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "create file failed")
	}
	// The header size was checked already; never write more than it claims.
	if _, err := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64))); err != nil {
		out.Close()
		return appErr.Wrap(err, appErr.CodeStorage, "extract bundle entry failed").WithMeta("entry", f.Name)
	}
	if err := out.Close(); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "close file failed")
	}
	return nil
}

// commonRoot returns "dir/" when every entry sits under the same top-level
// directory, otherwise "".
func commonRoot(entries []*zip.File) string {
	var root string
	for _, f := range entries {
		name := strings.TrimPrefix(f.Name, "./")
		i := strings.Index(name, "/")
		if i < 0 {
			return ""
		}
		first := name[:i+1]
		if root == "" {
			root = first
		} else if first != root {
			return ""
		}
	}
	return root
}

func ignored(name string) bool {
	for _, pattern := range ignoredEntries {
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(name, "./")); ok {
			return true
		}
	}
	return false
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Delete removes every stored version of a template. Deleting a template
// with nothing on disk is not an error.
func (s *Storage) Delete(templateID uuid.UUID) error {
	if err := os.RemoveAll(s.GetAbsolutePath(templateID.String())); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "delete template files failed")
	}
	return nil
}

// RemoveVersion deletes a single stored version, if present.
func (s *Storage) RemoveVersion(templateID uuid.UUID, version int) error {
	if err := os.RemoveAll(s.GetAbsolutePath(RelativePath(templateID, version))); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "delete template version failed")
	}
	return nil
}

// Exists reports whether the given bundle version is on disk.
func (s *Storage) Exists(templateID uuid.UUID, version int) bool {
	info, err := os.Stat(s.GetAbsolutePath(RelativePath(templateID, version)))
	return err == nil && info.IsDir()
}

// ListFiles returns the slash-separated paths of every file in a bundle
// version, sorted.
func (s *Storage) ListFiles(templateID uuid.UUID, version int) ([]string, error) {
	dir := s.GetAbsolutePath(RelativePath(templateID, version))
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.New(appErr.CodeNotFound, "template version not found in storage")
		}
		return nil, appErr.Wrap(err, appErr.CodeStorage, "stat version directory failed")
	}
	var files []string
	err := doublestar.GlobWalk(os.DirFS(dir), "**", func(p string, d fs.DirEntry) error {
		if d.IsDir() || ignored(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeStorage, "list bundle files failed")
	}
	sort.Strings(files)
	return files, nil
}

// CopyVersion duplicates a stored bundle version under another template id
// and returns the new relative path.
func (s *Storage) CopyVersion(srcTemplateID uuid.UUID, srcVersion int, dstTemplateID uuid.UUID, dstVersion int) (string, error) {
	if !s.Exists(srcTemplateID, srcVersion) {
		return "", appErr.New(appErr.CodeNotFound, "source template version not found in storage")
	}
	rel := RelativePath(dstTemplateID, dstVersion)
	dst := s.GetAbsolutePath(rel)
	if err := os.RemoveAll(dst); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "clean version directory failed")
	}
	if err := s.CopyDir(s.GetAbsolutePath(RelativePath(srcTemplateID, srcVersion)), dst); err != nil {
		_ = os.RemoveAll(dst)
		return "", err
	}
	return rel, nil
}

// PrepareBuildDir deletes any previous build of the project and recreates
// an empty directory in its place.
func (s *Storage) PrepareBuildDir(projectID uuid.UUID) (string, error) {
	dir := s.BuildPath(projectID)
	if err := os.RemoveAll(dir); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "remove previous build failed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", appErr.Wrap(err, appErr.CodeStorage, "create build directory failed")
	}
	return dir, nil
}

// RemoveBuild deletes the build directory of a project, if any.
func (s *Storage) RemoveBuild(projectID uuid.UUID) error {
	if err := os.RemoveAll(s.BuildPath(projectID)); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "remove build failed")
	}
	return nil
}

// CopyDir recursively copies src into dst. dst must lie inside the storage
// root.
func (s *Storage) CopyDir(src, dst string) error {
	if !within(s.root, dst) {
		return appErr.New(appErr.CodeStorage, "refusing to write outside storage root").WithMeta("path", dst)
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(p, target)
		default:
			// symlinks and special files are not part of a static bundle
			return nil
		}
	})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "copy directory failed").WithMeta("src", src)
	}
	return nil
}

// WriteFile replaces the contents of a file inside the storage root.
func (s *Storage) WriteFile(p string, data []byte) error {
	if !within(s.root, p) {
		return appErr.New(appErr.CodeStorage, "refusing to write outside storage root").WithMeta("path", p)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return appErr.Wrap(err, appErr.CodeStorage, "write file failed").WithMeta("path", p)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
