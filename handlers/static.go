package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// apiPrefixes are first path segments that never fall back to the frontend.
var apiPrefixes = map[string]bool{
	"api":       true,
	"auth":      true,
	"users":     true,
	"classes":   true,
	"groups":    true,
	"students":  true,
	"roll-call": true,
	"ping":      true,
}

// SPAFallback serves files from staticDir for unmatched paths, falling back to
// index.html so client-side routes resolve. API paths get a JSON 404.
func SPAFallback(staticDir string) gin.HandlerFunc {
	root := ""
	if staticDir != "" {
		root, _ = filepath.Abs(staticDir)
	}
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, "/")
		first, _, _ := strings.Cut(path, "/")
		if apiPrefixes[first] || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
			return
		}

		if root != "" && path != "" {
			candidate := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+path)))
			if strings.HasPrefix(candidate, root+string(filepath.Separator)) && isFile(candidate) {
				c.File(candidate)
				return
			}
		}
		index := filepath.Join(root, "index.html")
		if root != "" && isFile(index) {
			c.File(index)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
	}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
