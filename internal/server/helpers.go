package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/storage"
	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const tooLargeMessage = "File too large. Maximum file size allowed."

// fileRef identifies a generated artifact in a response.
type fileRef struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

func refFor(out storage.Output) fileRef {
	return fileRef{FileID: out.ID, Filename: out.Name, DownloadURL: out.DownloadURL()}
}

func (s *Server) ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, response.Success(message, data))
}

// fail writes a failure envelope. Client errors keep their own message; operation
// and internal failures use fallback.
func (s *Server) fail(c *gin.Context, fallback string, err error) {
	message := fallback
	var e *response.Error
	if errors.As(err, &e) && e.Message != "" {
		switch e.Kind {
		case response.KindBadRequest, response.KindNotFound, response.KindTooLarge:
			message = e.Message
		}
	}

	status := response.StatusFor(err)
	entry := s.logger.WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"request_id": requestIDFrom(c),
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error(fallback)
	} else {
		entry.Debug(message)
	}

	c.AbortWithStatusJSON(status, response.Failure(message, err))
}

// run executes one delegated operation inside a span and records its metrics.
// Failures are appended to the operation error log.
func (s *Server) run(c *gin.Context, operation string, args map[string]any, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := telemetry.StartOperationSpan(c.Request.Context(), operation, telemetry.TransportHTTP, args)
	err := fn(ctx)
	telemetry.EndOperationSpan(span, err)
	telemetry.RecordOperation(ctx, operation, telemetry.TransportHTTP, time.Since(start), err)
	if err != nil {
		s.errlog.Log(operation, args, err, telemetry.TransportHTTP)
	}
	return err
}

// uploadError converts multipart parsing failures into client errors.
func uploadError(err error, missing string) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return response.TooLarge(tooLargeMessage, err)
	}
	return response.BadRequest(missing, err)
}

// parseForm reads the multipart body up front so size violations surface as 413
// rather than as missing fields.
func parseForm(c *gin.Context, missing string) error {
	if _, err := c.MultipartForm(); err != nil {
		return uploadError(err, missing)
	}
	return nil
}

// saveFile stores the single file in field. When exts are given the file must carry
// one of them.
func (s *Server) saveFile(c *gin.Context, field, missing string, exts ...string) (*storage.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, uploadError(err, missing)
	}
	if fh.Filename == "" {
		return nil, response.BadRequest(missing, nil)
	}
	if len(exts) > 0 && !storage.HasExtension(fh.Filename, exts...) {
		return nil, response.BadRequest("Invalid file",
			fmt.Errorf("%w: expected %s", storage.ErrExtension, strings.Join(exts, ", ")))
	}

	up, err := s.store.SaveUpload(fh)
	if err != nil {
		return nil, err
	}
	telemetry.RecordUpload(c.Request.Context(), up.Ext, up.Size)
	return up, nil
}

// formFiles returns the files in field, falling back to the singular "file" field.
func formFiles(c *gin.Context, field, missing string) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, uploadError(err, missing)
	}
	files := form.File[field]
	if len(files) == 0 {
		files = form.File["file"]
	}
	var named []*multipart.FileHeader
	for _, fh := range files {
		if fh.Filename != "" {
			named = append(named, fh)
		}
	}
	if len(named) == 0 {
		return nil, response.BadRequest(missing, nil)
	}
	return named, nil
}

// saveBatch stores every file and fails on the first rejection.
func (s *Server) saveBatch(c *gin.Context, files []*multipart.FileHeader, exts ...string) (storage.Batch, error) {
	var batch storage.Batch
	if len(exts) > 0 {
		batch = s.store.SaveUploadsAs(files, exts...)
	} else {
		batch = s.store.SaveUploads(files)
	}
	for _, up := range batch.Saved {
		telemetry.RecordUpload(c.Request.Context(), up.Ext, up.Size)
	}
	if len(batch.Rejected) > 0 {
		rej := batch.Rejected[0]
		for _, up := range batch.Saved {
			_, _ = s.store.Delete(up.ID)
		}
		err := rej.Err()
		if response.KindOf(err) == response.KindTooLarge {
			return batch, err
		}
		return batch, response.BadRequest(fmt.Sprintf("Invalid file %q: %s", rej.OriginalName, rej.Reason), err)
	}
	return batch, nil
}

func formPages(c *gin.Context, key string) (pagerange.Selection, error) {
	sel, err := pagerange.Parse(c.PostForm(key))
	if err != nil {
		return pagerange.Selection{}, response.BadRequest(err.Error(), err)
	}
	return sel, nil
}

func formInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Accept integral floats such as "90.0".
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, response.BadRequest(fmt.Sprintf("%s must be a whole number", key), err)
		}
		v = int(f)
	}
	return v, nil
}

func formFloat(c *gin.Context, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, response.BadRequest(fmt.Sprintf("%s must be a number", key), err)
	}
	return v, nil
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	return err == nil && v
}
