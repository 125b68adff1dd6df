package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mholt/archives"
	"github.com/sammcj/pdfmaster/internal/response"
)

// FolderSuffixes are the output folder names a zip bundle may be built from, tried in order.
var FolderSuffixes = []string{"", "_images", "_jpg", "_png", "_split", "_tables"}

// ZipFolder bundles the output folder belonging to id into a fresh work/{id}-*.zip and
// returns the archive path. Files are stored flat, without the folder name. Each call
// writes its own archive; callers remove it once sent.
func (s *Store) ZipFolder(ctx context.Context, id string) (string, error) {
	if !ValidID(id) {
		return "", response.NotFound(fmt.Sprintf("unknown folder id %q", id), ErrNotFound)
	}
	if err := s.root.Active(); err != nil {
		return "", response.Internal("session unavailable", err)
	}

	folder := ""
	for _, suffix := range FolderSuffixes {
		candidate := filepath.Join(s.root.OutputDir(), id+suffix)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			folder = candidate
			break
		}
	}
	if folder == "" {
		return "", response.NotFound(fmt.Sprintf("no output folder for %q", id), ErrNotFound)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", response.Internal("failed to read output folder", err)
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names[filepath.Join(folder, e.Name())] = e.Name()
		}
	}
	if len(names) == 0 {
		return "", response.NotFound(fmt.Sprintf("output folder for %q is empty", id), ErrNotFound)
	}

	files, err := archives.FilesFromDisk(ctx, nil, names)
	if err != nil {
		return "", response.Internal("failed to collect files", err)
	}

	out, err := os.CreateTemp(s.root.WorkDir(), id+"-*.zip")
	if err != nil {
		return "", response.Internal("failed to create zip", err)
	}
	zipPath := out.Name()

	if err := (archives.Zip{}).Archive(ctx, out, files); err != nil {
		_ = out.Close()
		_ = os.Remove(zipPath)
		return "", response.Internal("failed to write zip", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(zipPath)
		return "", response.Internal("failed to write zip", err)
	}

	return zipPath, nil
}
