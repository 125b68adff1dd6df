package server

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/storage"
	"github.com/sammcj/pdfmaster/internal/telemetry"
)

func (s *Server) upload(c *gin.Context) {
	files, err := formFiles(c, "files", "No files provided")
	if err != nil {
		s.fail(c, "Error uploading files", err)
		return
	}

	batch := s.store.SaveUploads(files)
	for _, up := range batch.Saved {
		telemetry.RecordUpload(c.Request.Context(), up.Ext, up.Size)
	}
	if len(batch.Saved) == 0 {
		err := batch.Rejected[0].Err()
		if response.KindOf(err) != response.KindTooLarge {
			err = response.BadRequest("No valid files uploaded", err)
		}
		s.fail(c, "Error uploading files", err)
		return
	}

	s.ok(c, "Files uploaded successfully", map[string]any{
		"files":    batch.Saved,
		"count":    len(batch.Saved),
		"rejected": batch.Rejected,
	})
}

func (s *Server) download(c *gin.Context) {
	name := c.Param("filename")
	path, err := s.store.DownloadPath(name)
	if err != nil {
		s.fail(c, "Error downloading file", err)
		return
	}
	c.FileAttachment(path, name)
}

func (s *Server) downloadZip(c *gin.Context) {
	s.sendZip(c, c.Param("id"), "")
}

// legacyZip serves /api/download/images/:id and /api/download/split/:id. The id may
// carry its folder suffix, as in "{id}_jpg".
func (s *Server) legacyZip(c *gin.Context) {
	kind := c.Param("filename")
	if kind != "images" && kind != "split" {
		s.notFound(c)
		return
	}
	name := ""
	if kind == "split" {
		name = c.Param("id") + "_split.zip"
	}
	s.sendZip(c, c.Param("id"), name)
}

func (s *Server) sendZip(c *gin.Context, id, name string) {
	for _, suffix := range storage.FolderSuffixes {
		if suffix != "" && strings.HasSuffix(id, suffix) {
			id = strings.TrimSuffix(id, suffix)
			break
		}
	}

	var path string
	err := s.run(c, "zip", map[string]any{"id": id}, func(ctx context.Context) error {
		var err error
		path, err = s.store.ZipFolder(ctx, id)
		return err
	})
	if err != nil {
		s.fail(c, "Error creating zip file", err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.WithError(err).Warn("Failed to remove zip")
		}
	}()
	if name == "" {
		name = id + ".zip"
	}
	c.FileAttachment(path, name)
}

func (s *Server) deleteFile(c *gin.Context) {
	removed, err := s.store.Delete(c.Param("id"))
	if err != nil {
		s.fail(c, "Error deleting file", err)
		return
	}
	s.ok(c, "File deleted successfully", map[string]any{"file_id": c.Param("id"), "removed": removed})
}

func (s *Server) recentFiles(c *gin.Context) {
	limit := config.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(c, "Error listing files", response.BadRequest("limit must be a positive whole number", err))
			return
		}
		limit = n
	}

	files, err := s.store.Recent(limit)
	if err != nil {
		s.fail(c, "Error listing files", err)
		return
	}
	s.ok(c, "Recent files retrieved", map[string]any{"files": files, "count": len(files)})
}

func (s *Server) storageStats(c *gin.Context) {
	stats, err := s.store.Stats()
	if err != nil {
		s.fail(c, "Error getting storage stats", err)
		return
	}
	s.ok(c, "Storage stats retrieved", stats)
}

// cleanup removes outputs older than max_age_hours, or the configured age.
func (s *Server) cleanup(c *gin.Context) {
	maxAge := s.cfg.CleanupMaxAge
	raw := c.PostForm("max_age_hours")
	if raw == "" {
		raw = c.Query("max_age_hours")
	}
	if raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours < 0 {
			s.fail(c, "Error during cleanup", response.BadRequest("max_age_hours must be a non-negative number", err))
			return
		}
		maxAge = time.Duration(hours * float64(time.Hour))
	}

	report, err := s.store.Cleanup(maxAge)
	if err != nil {
		s.fail(c, "Error during cleanup", err)
		return
	}
	purged := 0
	if s.cache != nil {
		purged = s.cache.Purge()
	}

	s.ok(c, "Cleanup completed", map[string]any{
		"deleted_files": report.DeletedFiles,
		"freed_bytes":   report.FreedBytes,
		"freed_mb":      report.FreedMB,
		"freed_human":   humanize.Bytes(uint64(max(report.FreedBytes, 0))),
		"cache_purged":  purged,
		"max_age":       maxAge.String(),
		"max_age_hours": fmt.Sprintf("%.2f", maxAge.Hours()),
	})
}
