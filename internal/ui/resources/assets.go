// Package resources serves the console's stylesheet and other static assets.
package resources

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

//go:embed static/*
var staticFS embed.FS

var (
	versionsOnce sync.Once
	versions     map[string]string
)

// Handler serves /static/*. Dev mode reads the source tree on every request
// so stylesheet edits show up without a rebuild.
func Handler(dev bool) http.Handler {
	if dev {
		dir := sourceDir()
		slog.Debug("static assets served from filesystem", "path", dir)
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(os.DirFS(dir))))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			fileServer.ServeHTTP(w, r)
		})
	}

	fsys, _ := fs.Sub(staticFS, "static")
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(fsys)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// URLs carry a content hash, so embedded assets never go stale.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fileServer.ServeHTTP(w, r)
	})
}

// StaticPath returns the URL for an asset, versioned by its embedded content.
func StaticPath(name string) string {
	versionsOnce.Do(loadVersions)
	if v, ok := versions[name]; ok {
		return "/static/" + name + "?v=" + v
	}
	return "/static/" + name
}

func loadVersions() {
	versions = make(map[string]string)
	_ = fs.WalkDir(staticFS, "static", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := staticFS.ReadFile(path)
		if err != nil {
			return nil
		}
		sum := sha256.Sum256(data)
		rel, _ := filepath.Rel("static", path)
		versions[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])[:12]
		return nil
	})
}

// sourceDir locates static/ next to this file.
func sourceDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return filepath.Join("internal", "ui", "resources", "static")
	}
	return filepath.Join(filepath.Dir(filename), "static")
}
