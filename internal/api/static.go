package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// staticAsset is one file this service will serve under a fixed
// request path, discovered by the startup scan.
type staticAsset struct {
	fsPath string
	mime   string
}

// staticMimeByExt maps the handful of extensions the UI build produces
// to the MIME type served for them, ported from static_file()'s
// extension match. Unrecognized extensions are skipped at scan time.
var staticMimeByExt = map[string]string{
	".html": "text/html",
	".ico":  "image/vnd.microsoft.icon",
	".js":   "text/javascript",
	".map":  "text/javascript",
	".png":  "image/png",
}

// scanStaticAssets builds the request-path → (filesystem path, MIME)
// mapping once at startup, ported from static_file()'s directory scan.
// A missing or unreadable directory is tolerated and simply serves
// nothing; an empty dir argument does the same without logging, since
// that's the ordinary "no UI bundled" configuration.
func scanStaticAssets(dir string, logger *slog.Logger) map[string]staticAsset {
	assets := make(map[string]staticAsset)
	if dir == "" {
		return assets
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("static asset directory unreadable, serving no static files", "dir", dir, "error", err)
		return assets
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		mime, ok := staticMimeByExt[filepath.Ext(name)]
		if !ok {
			logger.Warn("skipping static asset with unrecognized extension", "file", name)
			continue
		}
		asset := staticAsset{fsPath: filepath.Join(dir, name), mime: mime}
		assets["/"+name] = asset
		if name == "index.html" {
			assets["/"] = asset
		}
	}
	return assets
}

// serveStatic handles every request outside "/api/": the UI's static
// assets (.html, .ico, .js, .map and .png files; other extensions are
// not served), ported from static_file(). The file is looked
// up in the path map built at startup, then opened fresh on every
// request (not cached) so the UI can be edited during development
// without a restart, matching the original's rationale. Cache-Control
// is deliberately left unset here (spec.md §7).
func (s *Service) serveStatic(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.staticAssets[r.URL.Path]
	if !ok {
		writeError(w, errNotFound("no such static file"))
		return
	}
	f, err := os.Open(asset.fsPath)
	if err != nil {
		writeError(w, errNotFound("no such static file"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, errInternal(err.Error()))
		return
	}
	w.Header().Set("Content-Type", asset.mime)
	http.ServeContent(w, r, asset.fsPath, info.ModTime(), f)
}
