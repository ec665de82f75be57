package handlers

import (
	"io/fs"
	"net/http"
	"os"
)

// AssetsHandler serves stored template bundle files for dashboard previews.
// Directory listings are not served.
func AssetsHandler(templatesDir string) http.Handler {
	return http.FileServer(noListingFS{http.Dir(templatesDir)})
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return f, nil
}
