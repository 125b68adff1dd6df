// Package storage manages uploaded files and generated artifacts inside the session
// root: identifier assignment, extension and content validation, lookup, listing,
// statistics, age-based cleanup and zip bundles for multi-file outputs.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/session"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned for unknown identifiers and file names.
	ErrNotFound = errors.New("file not found")
	// ErrExtension is returned for files whose extension is not on the allow-list.
	ErrExtension = errors.New("file type not allowed")
	// ErrContentMismatch is returned when a file's bytes do not match its extension.
	ErrContentMismatch = errors.New("file content does not match its extension")
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Upload describes a stored incoming file.
type Upload struct {
	ID           string `json:"file_id"`
	Name         string `json:"filename"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	Ext          string `json:"extension"`
	Path         string `json:"-"`
}

// Rejection records why one file of a batch was not stored.
type Rejection struct {
	OriginalName string `json:"original_name"`
	Reason       string `json:"reason"`
	err          error
}

// Err returns the underlying error.
func (r Rejection) Err() error { return r.err }

// Batch is the outcome of a multi-file upload. Partial success is allowed.
type Batch struct {
	Saved    []Upload    `json:"saved"`
	Rejected []Rejection `json:"rejected"`
}

// Paths returns the stored paths in upload order.
func (b Batch) Paths() []string {
	paths := make([]string, len(b.Saved))
	for i, u := range b.Saved {
		paths[i] = u.Path
	}
	return paths
}

// Output is a freshly allocated artifact location.
type Output struct {
	ID   string `json:"file_id"`
	Name string `json:"filename"`
	Path string `json:"-"`
}

// DownloadURL is the path clients fetch the artifact from.
func (o Output) DownloadURL() string {
	return DownloadURL(o.Name)
}

// DownloadURL returns the download path for a stored file name.
func DownloadURL(name string) string {
	return "/download/" + name
}

// ZipURL returns the download path for a folder bundle.
func ZipURL(id string) string {
	return "/download-zip/" + id
}

// Store places files inside a session root.
type Store struct {
	root        *session.Root
	allowed     []string
	maxFileSize int64
	logger      *logrus.Logger
}

// New returns a Store using the allow-list and size limit from cfg.
func New(root *session.Root, cfg config.Config, logger *logrus.Logger) *Store {
	return &Store{
		root:        root,
		allowed:     cfg.AllowedExtensions,
		maxFileSize: cfg.MaxFileSize(),
		logger:      logger,
	}
}

// Root returns the session root the store writes into.
func (s *Store) Root() *session.Root {
	return s.root
}

// MaxFileSize is the per-file limit in bytes.
func (s *Store) MaxFileSize() int64 {
	return s.maxFileSize
}

// SaveUpload validates and stores a single multipart file as {id}.{ext}.
func (s *Store) SaveUpload(fh *multipart.FileHeader) (*Upload, error) {
	if fh == nil {
		return nil, response.BadRequest("no file provided", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, response.BadRequest("unreadable upload", err)
	}
	defer func() { _ = f.Close() }()

	return s.Save(fh.Filename, fh.Size, f)
}

// Save validates and stores the content of r under a new identifier. size may be -1
// when unknown.
func (s *Store) Save(originalName string, size int64, r io.Reader) (*Upload, error) {
	if err := s.root.Active(); err != nil {
		return nil, response.Internal("session unavailable", err)
	}

	name := SanitizeName(originalName)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || !s.isAllowed(ext) {
		return nil, response.BadRequest(fmt.Sprintf("%q: allowed types are %s", originalName, strings.Join(s.allowed, ", ")), ErrExtension)
	}
	if size > s.maxFileSize {
		return nil, response.TooLarge(fmt.Sprintf("%q exceeds the %d MB limit", originalName, s.maxFileSize>>20), nil)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, response.BadRequest("unreadable upload", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, response.BadRequest(fmt.Sprintf("%q is empty", originalName), nil)
	}
	if !ContentMatches(ext, head) {
		return nil, response.BadRequest(fmt.Sprintf("%q", originalName), ErrContentMismatch)
	}

	id := uuid.NewString()
	stored := id + "." + ext
	path := filepath.Join(s.root.UploadDir(), stored)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, response.Internal("failed to create upload", err)
	}

	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxFileSize+1)
	written, err := io.Copy(dst, limited)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, response.Internal("failed to write upload", err)
	}
	if written > s.maxFileSize {
		_ = os.Remove(path)
		return nil, response.TooLarge(fmt.Sprintf("%q exceeds the %d MB limit", originalName, s.maxFileSize>>20), nil)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":  id,
		"original": name,
		"size":     written,
	}).Debug("Stored upload")

	return &Upload{
		ID:           id,
		Name:         stored,
		OriginalName: name,
		Size:         written,
		Ext:          ext,
		Path:         path,
	}, nil
}

// SaveUploads stores each file independently and reports which were rejected.
func (s *Store) SaveUploads(files []*multipart.FileHeader) Batch {
	batch := Batch{Saved: []Upload{}, Rejected: []Rejection{}}
	for _, fh := range files {
		up, err := s.SaveUpload(fh)
		if err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{
				OriginalName: fh.Filename,
				Reason:       response.ErrorDetail(err),
				err:          err,
			})
			continue
		}
		batch.Saved = append(batch.Saved, *up)
	}
	return batch
}

// SaveUploadsAs stores files that must all carry one of the given extensions. Files
// with other extensions are rejected without being written.
func (s *Store) SaveUploadsAs(files []*multipart.FileHeader, exts ...string) Batch {
	var accepted []*multipart.FileHeader
	batch := Batch{Saved: []Upload{}, Rejected: []Rejection{}}
	for _, fh := range files {
		if !HasExtension(fh.Filename, exts...) {
			err := response.BadRequest(fmt.Sprintf("%q: expected %s", fh.Filename, strings.Join(exts, ", ")), ErrExtension)
			batch.Rejected = append(batch.Rejected, Rejection{OriginalName: fh.Filename, Reason: err.Error(), err: err})
			continue
		}
		accepted = append(accepted, fh)
	}
	saved := s.SaveUploads(accepted)
	batch.Saved = append(batch.Saved, saved.Saved...)
	batch.Rejected = append(batch.Rejected, saved.Rejected...)
	return batch
}

// Resolve returns the path of the upload or output identified by id.
func (s *Store) Resolve(id string) (string, error) {
	if !ValidID(id) {
		return "", response.NotFound(fmt.Sprintf("unknown file id %q", id), ErrNotFound)
	}
	for _, dir := range []string{s.root.UploadDir(), s.root.OutputDir()} {
		matches, err := filepath.Glob(filepath.Join(dir, id+"*"))
		if err != nil {
			return "", response.Internal("lookup failed", err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				return m, nil
			}
		}
	}
	return "", response.NotFound(fmt.Sprintf("unknown file id %q", id), ErrNotFound)
}

// NewOutput allocates {id}_{suffix}.{ext} in the output directory.
func (s *Store) NewOutput(suffix, ext string) (Output, error) {
	if err := s.root.Active(); err != nil {
		return Output{}, response.Internal("session unavailable", err)
	}
	id := uuid.NewString()
	name := id + "." + ext
	if suffix != "" {
		name = id + "_" + suffix + "." + ext
	}
	return Output{ID: id, Name: name, Path: filepath.Join(s.root.OutputDir(), name)}, nil
}

// NewOutputDir creates outputs/{id}{suffix} and returns its path.
func (s *Store) NewOutputDir(id, suffix string) (string, error) {
	if err := s.root.Active(); err != nil {
		return "", response.Internal("session unavailable", err)
	}
	dir := filepath.Join(s.root.OutputDir(), id+suffix)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", response.Internal("failed to create output folder", err)
	}
	return dir, nil
}

// DownloadPath resolves a bare file name in the output directory, then the upload
// directory.
func (s *Store) DownloadPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", response.NotFound("file not found", ErrNotFound)
	}
	for _, dir := range []string{s.root.OutputDir(), s.root.UploadDir()} {
		path := filepath.Join(dir, filename)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", response.NotFound("file not found", ErrNotFound)
}

// Delete removes every file or folder whose name starts with id in the upload, output
// and work directories.
func (s *Store) Delete(id string) (int, error) {
	if !ValidID(id) {
		return 0, response.NotFound(fmt.Sprintf("unknown file id %q", id), ErrNotFound)
	}

	removed := 0
	for _, dir := range []string{s.root.OutputDir(), s.root.UploadDir(), s.root.WorkDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, response.Internal("failed to list directory", err)
		}
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), id) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return removed, response.Internal("failed to delete file", err)
			}
			removed++
		}
	}

	if removed == 0 {
		return 0, response.NotFound(fmt.Sprintf("unknown file id %q", id), ErrNotFound)
	}
	s.logger.WithFields(logrus.Fields{"file_id": id, "removed": removed}).Debug("Deleted files")
	return removed, nil
}

// ValidID reports whether id has the shape of a generated identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// SanitizeName strips directories and unsafe characters from a client file name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// HasExtension reports whether name ends in one of exts (compared case-insensitively).
func HasExtension(name string, exts ...string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, e := range exts {
		if ext == strings.TrimPrefix(strings.ToLower(e), ".") {
			return true
		}
	}
	return false
}

func (s *Store) isAllowed(ext string) bool {
	for _, a := range s.allowed {
		if a == ext {
			return true
		}
	}
	return false
}
