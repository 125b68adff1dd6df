package testutils

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// FormFile is one file part of a multipart request.
type FormFile struct {
	Field string
	Name  string
	Data  []byte
}

// FileFromDisk reads path into a FormFile with the given field and client file name.
func FileFromDisk(t *testing.T, field, name, path string) FormFile {
	t.Helper()
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	return FormFile{Field: field, Name: name, Data: data}
}

// MultipartBody encodes files and fields as multipart/form-data and returns the body and
// its content type.
func MultipartBody(t *testing.T, files []FormFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		AssertNoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(f.Data))
		AssertNoError(t, err)
	}
	for k, v := range fields {
		AssertNoError(t, w.WriteField(k, v))
	}
	AssertNoError(t, w.Close())
	return body, w.FormDataContentType()
}

// NewMultipartRequest builds a POST request carrying files and fields.
func NewMultipartRequest(t *testing.T, target string, files []FormFile, fields map[string]string) *http.Request {
	t.Helper()
	body, contentType := MultipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// FileHeaders parses files into multipart headers, as a server would see them.
func FileHeaders(t *testing.T, files ...FormFile) []*multipart.FileHeader {
	t.Helper()

	req := NewMultipartRequest(t, "/", files, nil)
	AssertNoError(t, req.ParseMultipartForm(32<<20))

	var headers []*multipart.FileHeader
	seen := map[string]bool{}
	for _, f := range files {
		if seen[f.Field] {
			continue
		}
		seen[f.Field] = true
		headers = append(headers, req.MultipartForm.File[f.Field]...)
	}
	return headers
}
