package storage

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

// FileInfo is one entry of the recent-files listing.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Folder   string    `json:"folder"`
}

// FolderStats summarises one storage folder.
type FolderStats struct {
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	SizeHuman string  `json:"size_human"`
	Files     int     `json:"files"`
}

// Stats covers every storage folder and their total.
type Stats struct {
	Upload FolderStats `json:"upload"`
	Output FolderStats `json:"output"`
	Temp   FolderStats `json:"temp"`
	Total  FolderStats `json:"total"`
}

// CleanupReport is the outcome of an age-based cleanup.
type CleanupReport struct {
	DeletedFiles int     `json:"deleted_files"`
	FreedBytes   int64   `json:"freed_bytes"`
	FreedMB      float64 `json:"freed_mb"`
}

// Recent lists top-level files in the output and upload folders, newest first.
func (s *Store) Recent(limit int) ([]FileInfo, error) {
	var files []FileInfo
	for _, dir := range []string{s.root.OutputDir(), s.root.UploadDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, response.Internal("failed to list files", err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, FileInfo{
				Name:     e.Name(),
				Size:     info.Size(),
				Created:  createdTime(info),
				Modified: info.ModTime(),
				Folder:   filepath.Base(dir),
			})
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	if files == nil {
		files = []FileInfo{}
	}
	return files, nil
}

// Counts returns the number of top-level entries in the upload and output folders.
func (s *Store) Counts() (uploads, outputs int) {
	if entries, err := os.ReadDir(s.root.UploadDir()); err == nil {
		uploads = len(entries)
	}
	if entries, err := os.ReadDir(s.root.OutputDir()); err == nil {
		outputs = len(entries)
	}
	return uploads, outputs
}

// Stats walks every folder and totals sizes and file counts.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	for _, f := range []struct {
		dir string
		out *FolderStats
	}{
		{s.root.UploadDir(), &st.Upload},
		{s.root.OutputDir(), &st.Output},
		{s.root.WorkDir(), &st.Temp},
	} {
		size, count, err := dirUsage(f.dir)
		if err != nil {
			return Stats{}, response.Internal("failed to compute storage stats", err)
		}
		*f.out = newFolderStats(size, count)
	}
	st.Total = newFolderStats(
		st.Upload.SizeBytes+st.Output.SizeBytes+st.Temp.SizeBytes,
		st.Upload.Files+st.Output.Files+st.Temp.Files,
	)
	return st, nil
}

// Cleanup removes outputs and scratch files last modified more than maxAge ago.
// Uploads are left alone so in-progress multi-step workflows keep their inputs.
func (s *Store) Cleanup(maxAge time.Duration) (CleanupReport, error) {
	cutoff := time.Now().Add(-maxAge)
	var report CleanupReport

	for _, dir := range []string{s.root.OutputDir(), s.root.WorkDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return report, response.Internal("failed to list directory", err)
		}
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())

			size, count := info.Size(), 1
			if e.IsDir() {
				if size, count, err = dirUsage(path); err != nil {
					continue
				}
			}
			if err := os.RemoveAll(path); err != nil {
				s.logger.WithError(err).WithField("path", path).Warn("Failed to remove expired file")
				continue
			}
			report.DeletedFiles += count
			report.FreedBytes += size
		}
	}

	report.FreedMB = toMB(report.FreedBytes)
	return report, nil
}

// StartJanitor runs Cleanup every interval until ctx is cancelled. The returned channel
// is closed once the janitor has stopped.
func (s *Store) StartJanitor(ctx context.Context, interval, maxAge time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.root.Active() != nil {
					return
				}
				report, err := s.Cleanup(maxAge)
				if err != nil {
					s.logger.WithError(err).Warn("Scheduled cleanup failed")
					continue
				}
				if report.DeletedFiles > 0 {
					s.logger.WithFields(logrus.Fields{
						"deleted_files": report.DeletedFiles,
						"freed":         humanize.Bytes(uint64(report.FreedBytes)),
					}).Info("Scheduled cleanup removed expired files")
				}
			}
		}
	}()

	return done
}

func dirUsage(dir string) (int64, int, error) {
	var size int64
	var count int
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
			count++
		}
		return nil
	})
	return size, count, err
}

func newFolderStats(size int64, files int) FolderStats {
	return FolderStats{
		SizeBytes: size,
		SizeMB:    toMB(size),
		SizeHuman: humanize.Bytes(uint64(size)),
		Files:     files,
	}
}

func toMB(b int64) float64 {
	return math.Round(float64(b)/(1024*1024)*100) / 100
}
