package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticFiles serves root like a plain file server with two differences:
// dot-files (including in-flight uploads) are hidden, and directories
// without an index.html are 404 instead of a listing.
func staticFiles(root string) http.Handler {
	fileServer := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if hasDotSegment(clean) {
			http.NotFound(w, r)
			return
		}
		full := filepath.Join(root, filepath.FromSlash(clean))
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(full, "index.html")); err != nil {
				http.NotFound(w, r)
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
