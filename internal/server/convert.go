package server

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/convert"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/storage"
)

var (
	imageExtensions  = []string{"jpg", "jpeg", "png", "bmp", "gif", "tif", "tiff", "webp"}
	officeExtensions = []string{"doc", "docx", "ppt", "pptx", "xls", "xlsx", "odt", "ods", "odp", "rtf"}
)

// maxHTMLBytes bounds inline HTML read from an uploaded file.
const maxHTMLBytes = 16 << 20

func (s *Server) pdfToImages(format convert.ImageFormat) gin.HandlerFunc {
	label := strings.ToUpper(string(format))
	suffix := "_" + string(format)

	return func(c *gin.Context) {
		failure := "Error converting PDF to " + label
		up, err := s.saveFile(c, "file", noPDF, "pdf")
		if err != nil {
			s.fail(c, failure, err)
			return
		}
		dpi, err := formInt(c, "dpi", convert.DefaultDPI)
		if err != nil {
			s.fail(c, failure, err)
			return
		}
		sel, err := formPages(c, "pages")
		if err != nil {
			s.fail(c, failure, err)
			return
		}
		dir, err := s.store.NewOutputDir(up.ID, suffix)
		if err != nil {
			s.fail(c, failure, err)
			return
		}

		var res *convert.ImagesResult
		err = s.run(c, "pdf_to_"+string(format), map[string]any{"file_id": up.ID, "dpi": dpi, "pages": sel.String()},
			func(ctx context.Context) error {
				var err error
				res, err = s.converter.ToImages(ctx, up.Path, dir, format, dpi, sel)
				return err
			})
		if err != nil {
			_ = os.RemoveAll(dir)
			s.fail(c, "Failed to convert PDF to "+label, err)
			return
		}

		s.ok(c, "PDF converted to "+label+" successfully", map[string]any{
			"file_id":      up.ID,
			"images":       res.Files,
			"count":        len(res.Files),
			"format":       res.Format,
			"dpi":          res.DPI,
			"renderer":     res.Renderer,
			"download_url": storage.ZipURL(up.ID),
		})
	}
}

func (s *Server) pdfToWord(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error converting PDF to Word", err)
		return
	}
	out, err := s.store.NewOutput("converted", "docx")
	if err != nil {
		s.fail(c, "Error converting PDF to Word", err)
		return
	}

	var res *convert.WordResult
	err = s.run(c, "pdf_to_word", map[string]any{"file_id": up.ID}, func(ctx context.Context) error {
		var err error
		res, err = s.converter.PDFToWord(ctx, up.Path, out.Path)
		return err
	})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Failed to convert PDF to Word", err)
		return
	}

	s.ok(c, "PDF converted to Word successfully", struct {
		fileRef
		*convert.WordResult
	}{refFor(out), res})
}

func (s *Server) imageToPDF(c *gin.Context) {
	files, err := formFiles(c, "files", "No image files provided")
	if err != nil {
		s.fail(c, "Error converting images to PDF", err)
		return
	}
	orientation, err := convert.ParseOrientation(c.PostForm("orientation"))
	if err != nil {
		s.fail(c, "Error converting images to PDF", err)
		return
	}
	batch, err := s.saveBatch(c, files, imageExtensions...)
	if err != nil {
		s.fail(c, "Error converting images to PDF", err)
		return
	}
	out, err := s.store.NewOutput("converted", "pdf")
	if err != nil {
		s.fail(c, "Error converting images to PDF", err)
		return
	}

	var res *convert.PDFResult
	err = s.run(c, "images_to_pdf", map[string]any{"images": len(batch.Saved), "orientation": string(orientation)},
		func(ctx context.Context) error {
			var err error
			res, err = s.converter.ImagesToPDF(ctx, batch.Paths(), out.Path, orientation)
			return err
		})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Failed to convert images to PDF", err)
		return
	}

	s.ok(c, "Images converted to PDF successfully", struct {
		fileRef
		*convert.PDFResult
	}{refFor(out), res})
}

func (s *Server) officeToPDF(c *gin.Context) {
	up, err := s.saveFile(c, "file", "No Word file provided", officeExtensions...)
	if err != nil {
		s.fail(c, "Error converting Word to PDF", err)
		return
	}
	out, err := s.store.NewOutput("converted", "pdf")
	if err != nil {
		s.fail(c, "Error converting Word to PDF", err)
		return
	}

	err = s.run(c, "office_to_pdf", map[string]any{"file_id": up.ID, "extension": up.Ext}, func(ctx context.Context) error {
		return s.converter.OfficeToPDF(ctx, up.Path, out.Path)
	})
	if err != nil {
		s.fail(c, "Failed to convert Word to PDF", err)
		return
	}
	s.ok(c, "Word document converted to PDF successfully", refFor(out))
}

func (s *Server) htmlToPDF(c *gin.Context) {
	if err := parseForm(c, "No HTML content provided"); err != nil && response.KindOf(err) == response.KindTooLarge {
		s.fail(c, "Error converting HTML to PDF", err)
		return
	}

	html := c.PostForm("html")
	if _, err := c.FormFile("file"); err == nil {
		up, err := s.saveFile(c, "file", "No HTML content provided", "html", "htm")
		if err != nil {
			s.fail(c, "Error converting HTML to PDF", err)
			return
		}
		if html, err = readText(up.Path, maxHTMLBytes); err != nil {
			s.fail(c, "Error converting HTML to PDF", err)
			return
		}
	}
	if strings.TrimSpace(html) == "" {
		s.fail(c, "Error converting HTML to PDF", response.BadRequest("No HTML content provided", nil))
		return
	}

	out, err := s.store.NewOutput("converted", "pdf")
	if err != nil {
		s.fail(c, "Error converting HTML to PDF", err)
		return
	}
	pageSize := c.PostForm("page_size")

	err = s.run(c, "html_to_pdf", map[string]any{"html": html, "page_size": pageSize}, func(ctx context.Context) error {
		return s.converter.HTMLToPDF(ctx, html, pageSize, out.Path)
	})
	if err != nil {
		s.fail(c, "Failed to convert HTML to PDF", err)
		return
	}
	s.ok(c, "HTML converted to PDF successfully", refFor(out))
}

func (s *Server) resizeImage(c *gin.Context) {
	up, err := s.saveFile(c, "file", "No image file provided", imageExtensions...)
	if err != nil {
		s.fail(c, "Error resizing image", err)
		return
	}
	width, err := formInt(c, "width", 0)
	if err != nil {
		s.fail(c, "Error resizing image", err)
		return
	}
	height, err := formInt(c, "height", 0)
	if err != nil {
		s.fail(c, "Error resizing image", err)
		return
	}

	ext := up.Ext
	if ext == "gif" || ext == "webp" {
		ext = "png"
	}
	out, err := s.store.NewOutput("resized", ext)
	if err != nil {
		s.fail(c, "Error resizing image", err)
		return
	}

	var res *convert.ResizeResult
	err = s.run(c, "resize_image", map[string]any{"file_id": up.ID, "width": width, "height": height}, func(context.Context) error {
		var err error
		res, err = s.converter.ResizeImage(up.Path, out.Path, width, height)
		return err
	})
	if err != nil {
		s.fail(c, "Failed to resize image", err)
		return
	}

	s.ok(c, "Image resized successfully", struct {
		fileRef
		*convert.ResizeResult
	}{refFor(out), res})
}

func readText(path string, limit int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", response.Internal("failed to open upload", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", response.Internal("failed to read upload", err)
	}
	return string(data), nil
}
