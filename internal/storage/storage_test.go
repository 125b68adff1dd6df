package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/session"
	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func newTestStore(t *testing.T, mutate ...func(*config.Config)) *Store {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	root := session.New(t.TempDir(), testutils.CreateTestLogger())
	require.NoError(t, root.Init())
	t.Cleanup(func() { _ = root.Cleanup() })
	return New(root, cfg, testutils.CreateTestLogger())
}

func TestSaveUploadsAssignsDistinctIDs(t *testing.T) {
	store := newTestStore(t)
	headers := testutils.FileHeaders(t,
		testutils.FormFile{Field: "files", Name: "a.pdf", Data: pdfBytes},
		testutils.FormFile{Field: "files", Name: "b.pdf", Data: pdfBytes},
	)

	batch := store.SaveUploads(headers)
	require.Len(t, batch.Saved, 2)
	assert.Empty(t, batch.Rejected)

	a, b := batch.Saved[0], batch.Saved[1]
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ID+".pdf", a.Name)
	assert.Equal(t, "a.pdf", a.OriginalName)
	assert.Equal(t, int64(len(pdfBytes)), a.Size)
	assert.Equal(t, filepath.Join(store.Root().UploadDir(), a.Name), a.Path)
	assert.Equal(t, []string{a.Path, b.Path}, batch.Paths())

	data, err := os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

func TestSaveUploadsPartialSuccess(t *testing.T) {
	store := newTestStore(t)
	headers := testutils.FileHeaders(t,
		testutils.FormFile{Field: "files", Name: "good.pdf", Data: pdfBytes},
		testutils.FormFile{Field: "files", Name: "evil.exe", Data: []byte("MZ...")},
		testutils.FormFile{Field: "files", Name: "fake.pdf", Data: []byte("not a pdf at all")},
	)

	batch := store.SaveUploads(headers)
	require.Len(t, batch.Saved, 1)
	require.Len(t, batch.Rejected, 2)

	assert.Equal(t, "evil.exe", batch.Rejected[0].OriginalName)
	assert.ErrorIs(t, batch.Rejected[0].Err(), ErrExtension)
	assert.ErrorIs(t, batch.Rejected[1].Err(), ErrContentMismatch)

	entries, err := os.ReadDir(store.Root().UploadDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rejected files must never be written")
}

func TestSaveRejections(t *testing.T) {
	store := newTestStore(t, func(c *config.Config) { c.MaxFileSizeMB = 1 })

	tests := []struct {
		name   string
		file   string
		data   []byte
		status int
	}{
		{"disallowed extension", "script.sh", []byte("#!/bin/sh"), http.StatusBadRequest},
		{"no extension", "README", []byte("hello"), http.StatusBadRequest},
		{"empty", "empty.pdf", nil, http.StatusBadRequest},
		{"png that is text", "image.png", []byte("plain text"), http.StatusBadRequest},
		{"too large", "big.pdf", append(append([]byte{}, pdfBytes...), make([]byte, 1<<20)...), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := testutils.FileHeaders(t, testutils.FormFile{Field: "file", Name: tt.file, Data: tt.data})
			_, err := store.SaveUpload(headers[0])
			require.Error(t, err)
			assert.Equal(t, tt.status, response.StatusFor(err))
		})
	}
}

func TestSaveAcceptsImagesAndHTML(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	png := testutils.CreatePNG(t, dir, "pic.png", 8, 8)
	jpg := testutils.CreateJPEG(t, dir, "pic.jpg", 8, 8)

	for _, f := range []testutils.FormFile{
		testutils.FileFromDisk(t, "file", "pic.PNG", png),
		testutils.FileFromDisk(t, "file", "photo.jpeg", jpg),
		{Field: "file", Name: "page.html", Data: []byte("<html><body>hi</body></html>")},
	} {
		headers := testutils.FileHeaders(t, f)
		up, err := store.SaveUpload(headers[0])
		require.NoError(t, err, f.Name)
		assert.True(t, strings.HasSuffix(up.Name, "."+strings.ToLower(filepath.Ext(f.Name)[1:])))
	}
}

func TestSaveUploadsAs(t *testing.T) {
	store := newTestStore(t)
	headers := testutils.FileHeaders(t,
		testutils.FormFile{Field: "files", Name: "a.pdf", Data: pdfBytes},
		testutils.FormFile{Field: "files", Name: "b.docx", Data: []byte("PK\x03\x04")},
	)
	batch := store.SaveUploadsAs(headers, "pdf")
	assert.Len(t, batch.Saved, 1)
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, "b.docx", batch.Rejected[0].OriginalName)
}

func TestSaveAfterCleanup(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Root().Cleanup())

	_, err := store.Save("a.pdf", int64(len(pdfBytes)), strings.NewReader(string(pdfBytes)))
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotActive)
}

func TestResolveAndDownloadPath(t *testing.T) {
	store := newTestStore(t)
	up, err := store.Save("doc.pdf", -1, strings.NewReader(string(pdfBytes)))
	require.NoError(t, err)

	path, err := store.Resolve(up.ID)
	require.NoError(t, err)
	assert.Equal(t, up.Path, path)

	out, err := store.NewOutput("merged", "pdf")
	require.NoError(t, err)
	assert.Equal(t, out.ID+"_merged.pdf", out.Name)
	assert.Equal(t, "/download/"+out.Name, out.DownloadURL())
	require.NoError(t, os.WriteFile(out.Path, pdfBytes, 0o600))

	path, err = store.DownloadPath(out.Name)
	require.NoError(t, err)
	assert.Equal(t, out.Path, path)

	path, err = store.DownloadPath(up.Name)
	require.NoError(t, err)
	assert.Equal(t, up.Path, path)

	for _, bad := range []string{"", "../secret", "a/b.pdf", "..", "missing.pdf"} {
		_, err := store.DownloadPath(bad)
		assert.Equal(t, http.StatusNotFound, response.StatusFor(err), bad)
	}

	_, err = store.Resolve("not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Resolve("6f1c1b7e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	up, err := store.Save("doc.pdf", -1, strings.NewReader(string(pdfBytes)))
	require.NoError(t, err)
	dir, err := store.NewOutputDir(up.ID, "_images")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image_1.png"), []byte("x"), 0o600))

	removed, err := store.Delete(up.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Delete(up.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.Delete("*")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecentAndCounts(t *testing.T) {
	store := newTestStore(t)
	first, err := store.Save("first.pdf", -1, strings.NewReader(string(pdfBytes)))
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(first.Path, old, old))

	out, err := store.NewOutput("text", "txt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(out.Path, []byte("hello"), 0o600))
	_, err = store.NewOutputDir(out.ID, "_images")
	require.NoError(t, err)

	files, err := store.Recent(20)
	require.NoError(t, err)
	require.Len(t, files, 2, "folders are not listed")
	assert.Equal(t, out.Name, files[0].Name)
	assert.Equal(t, "outputs", files[0].Folder)
	assert.Equal(t, first.Name, files[1].Name)
	assert.Equal(t, "uploads", files[1].Folder)

	files, err = store.Recent(1)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	uploads, outputs := store.Counts()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 2, outputs)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save("a.pdf", -1, strings.NewReader(string(pdfBytes)))
	require.NoError(t, err)

	dir, err := store.NewOutputDir("6f1c1b7e-0000-4000-8000-000000000001", "_png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_1.png"), make([]byte, 1000), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_2.png"), make([]byte, 500), 0o600))

	st, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Upload.Files)
	assert.Equal(t, int64(len(pdfBytes)), st.Upload.SizeBytes)
	assert.Equal(t, 2, st.Output.Files)
	assert.Equal(t, int64(1500), st.Output.SizeBytes)
	assert.Equal(t, 0, st.Temp.Files)
	assert.Equal(t, 3, st.Total.Files)
	assert.Equal(t, int64(1500+len(pdfBytes)), st.Total.SizeBytes)
	assert.Equal(t, "1.5 kB", st.Output.SizeHuman)
}

func TestCleanup(t *testing.T) {
	store := newTestStore(t)
	up, err := store.Save("keep.pdf", -1, strings.NewReader(string(pdfBytes)))
	require.NoError(t, err)

	oldOut, err := store.NewOutput("old", "pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(oldOut.Path, make([]byte, 2048), 0o600))

	newOut, err := store.NewOutput("new", "pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(newOut.Path, make([]byte, 10), 0o600))

	oldDir, err := store.NewOutputDir("6f1c1b7e-0000-4000-8000-000000000002", "_jpg")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(oldDir, "page_1.jpg"), make([]byte, 100), 0o600))

	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{up.Path, oldOut.Path, oldDir} {
		require.NoError(t, os.Chtimes(p, past, past))
	}

	report, err := store.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DeletedFiles)
	assert.Equal(t, int64(2148), report.FreedBytes)

	_, err = os.Stat(oldOut.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newOut.Path)
	assert.NoError(t, err)
	_, err = os.Stat(up.Path)
	assert.NoError(t, err, "uploads are not swept by age cleanup")
}

func TestStartJanitor(t *testing.T) {
	store := newTestStore(t)
	out, err := store.NewOutput("stale", "pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(out.Path, []byte("x"), 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(out.Path, past, past))

	ctx, cancel := context.WithCancel(context.Background())
	done := store.StartJanitor(ctx, 10*time.Millisecond, time.Minute)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(out.Path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}

	disabled := store.StartJanitor(context.Background(), 0, time.Minute)
	_, open := <-disabled
	assert.False(t, open)
}

func TestZipFolder(t *testing.T) {
	store := newTestStore(t)
	id := "6f1c1b7e-0000-4000-8000-000000000003"
	dir, err := store.NewOutputDir(id, "_images")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image_1.png"), []byte("one"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image_2.png"), []byte("two"), 0o600))

	zipPath, err := store.ZipFolder(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.Root().WorkDir(), filepath.Dir(zipPath))
	assert.True(t, strings.HasPrefix(filepath.Base(zipPath), id+"-"))
	assert.Equal(t, ".zip", filepath.Ext(zipPath))

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"image_1.png", "image_2.png"}, names)

	_, err = store.ZipFolder(context.Background(), "6f1c1b7e-0000-4000-8000-000000000009")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.ZipFolder(context.Background(), "../../etc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":           "report.pdf",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\file.pdf`: "file.pdf",
		"my file (1).pdf":      "my_file_1_.pdf",
		"":                     "upload",
		"...":                  "upload",
		"résumé final.docx":    "r_sum_final.docx",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, SanitizeName(in), in)
	}
}

func TestContentMatches(t *testing.T) {
	assert.True(t, ContentMatches("pdf", pdfBytes))
	assert.False(t, ContentMatches("pdf", []byte("hello")))
	assert.True(t, ContentMatches("html", []byte("<p>")))
	assert.True(t, ContentMatches("doc", []byte("unknown legacy bytes")))
	assert.Equal(t, "application/pdf", DetectMIME(pdfBytes))
	assert.Equal(t, "application/octet-stream", DetectMIME([]byte("??")))
}

func TestZipFolderConcurrent(t *testing.T) {
	store := newTestStore(t)
	id := "6f1c1b7e-0000-4000-8000-000000000004"
	dir, err := store.NewOutputDir(id, "_split")
	require.NoError(t, err)
	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("page_%d.pdf", i+1)), bytes.Repeat([]byte("x"), 4096), 0o600))
	}

	paths := make([]string, 8)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range paths {
		g.Go(func() error {
			var err error
			paths[i], err = store.ZipFolder(ctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool)
	for _, p := range paths {
		assert.False(t, seen[p], "archive path reused: %s", p)
		seen[p] = true

		zr, err := zip.OpenReader(p)
		require.NoError(t, err)
		assert.Len(t, zr.File, 5)
		_ = zr.Close()
	}
}
