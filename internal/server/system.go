package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/pdfmaster/internal/response"
)

const maxSuggestions = 3

func (s *Server) index(c *gin.Context) {
	if index, ok := s.staticFile("index.html"); ok {
		c.File(index)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "PDFMaster API Server",
		"version": s.version,
		"docs":    "/api/status",
		"health":  "/health",
	})
}

func (s *Server) health(c *gin.Context) {
	entries := 0
	if s.cache != nil {
		entries = s.cache.Len()
	}
	s.ok(c, "Server is healthy", gin.H{
		"status": "operational",
		"session": gin.H{
			"state": s.session.State().String(),
			"root":  s.session.Path(),
		},
		"cache":     gin.H{"entries": entries},
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) status(c *gin.Context) {
	uploads, outputs := s.store.Counts()
	s.ok(c, "API is operational", gin.H{
		"version":   s.version,
		"endpoints": s.Endpoints(),
		"files": gin.H{
			"uploads": uploads,
			"outputs": outputs,
		},
		"capabilities": gin.H{
			"renderers":        s.converter.Renderers(),
			"text_strategies":  s.extractor.Strategies(),
			"office_available": s.converter.OfficeAvailable(),
		},
		"timestamp": time.Now().UTC(),
	})
}

// notFound serves the static frontend when one is configured and otherwise answers
// with a 404 envelope listing the closest registered paths.
func (s *Server) notFound(c *gin.Context) {
	path := c.Request.URL.Path
	if c.Request.Method == http.MethodGet && !strings.HasPrefix(path, "/api/") {
		if file, ok := s.staticFile(path); ok {
			c.File(file)
			return
		}
		// Client-side routes fall back to the SPA entry point.
		if filepath.Ext(path) == "" {
			if index, ok := s.staticFile("index.html"); ok {
				c.File(index)
				return
			}
		}
	}

	env := response.Failure("Endpoint not found", response.NotFound("no route for "+c.Request.Method+" "+path, nil))
	if suggestions := s.suggest(path); len(suggestions) > 0 {
		env.Data = gin.H{"suggestions": suggestions}
	}
	c.AbortWithStatusJSON(http.StatusNotFound, env)
}

// suggest returns registered paths that fuzzily match path, best first.
func (s *Server) suggest(path string) []string {
	seen := map[string]bool{}
	var paths []string
	for _, e := range s.Endpoints() {
		if !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}

	matches := fuzzy.Find(strings.ToLower(path), paths)
	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// staticFile resolves name inside the static directory.
func (s *Server) staticFile(name string) (string, bool) {
	if s.cfg.StaticDir == "" {
		return "", false
	}
	clean := filepath.Clean("/" + name)
	full := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return full, true
}
