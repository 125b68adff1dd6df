package server

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/storage"
)

const noPDF = "No PDF file provided"

func (s *Server) merge(c *gin.Context) {
	files, err := formFiles(c, "files", "No PDF files provided")
	if err != nil {
		s.fail(c, "Error merging PDFs", err)
		return
	}
	if len(files) < 2 {
		s.fail(c, "Error merging PDFs", response.BadRequest("At least 2 PDF files required for merging", nil))
		return
	}

	batch, err := s.saveBatch(c, files, "pdf")
	if err != nil {
		s.fail(c, "Error merging PDFs", err)
		return
	}
	out, err := s.store.NewOutput("merged", "pdf")
	if err != nil {
		s.fail(c, "Error merging PDFs", err)
		return
	}

	var res *pdfops.MergeResult
	err = s.run(c, "merge", map[string]any{"inputs": len(files)}, func(ctx context.Context) error {
		var err error
		res, err = s.pdf.Merge(ctx, batch.Paths(), out.Path)
		return err
	})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Failed to merge PDFs", err)
		return
	}

	s.ok(c, "PDFs merged successfully", struct {
		fileRef
		*pdfops.MergeResult
	}{refFor(out), res})
}

func (s *Server) split(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error splitting PDF", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error splitting PDF", err)
		return
	}
	dir, err := s.store.NewOutputDir(up.ID, "_split")
	if err != nil {
		s.fail(c, "Error splitting PDF", err)
		return
	}

	var res *pdfops.SplitResult
	err = s.run(c, "split", map[string]any{"file_id": up.ID, "pages": sel.String()}, func(ctx context.Context) error {
		var err error
		res, err = s.pdf.Split(ctx, up.Path, sel, dir)
		return err
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		s.fail(c, "Failed to split PDF", err)
		return
	}

	s.ok(c, "PDF split successfully", struct {
		FileID      string `json:"file_id"`
		DownloadURL string `json:"download_url"`
		Count       int    `json:"count"`
		*pdfops.SplitResult
	}{up.ID, storage.ZipURL(up.ID), len(res.Files), res})
}

// pageOp runs a single-input, single-output PDF operation.
func (s *Server) pageOp(c *gin.Context, operation, suffix, success, failure string, args map[string]any,
	up *storage.Upload, fn func(ctx context.Context, in, out string) (any, error)) {
	out, err := s.store.NewOutput(suffix, "pdf")
	if err != nil {
		s.fail(c, failure, err)
		return
	}
	args["file_id"] = up.ID

	var res any
	err = s.run(c, operation, args, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx, up.Path, out.Path)
		return err
	})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, failure, err)
		return
	}

	data := map[string]any{
		"file_id":      out.ID,
		"filename":     out.Name,
		"download_url": out.DownloadURL(),
	}
	if res != nil {
		data["result"] = res
	}
	s.ok(c, success, data)
}

func (s *Server) rotate(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error rotating PDF", err)
		return
	}
	angle, err := formInt(c, "angle", pdfops.DefaultRotation)
	if err != nil {
		s.fail(c, "Error rotating PDF", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error rotating PDF", err)
		return
	}

	s.pageOp(c, "rotate", "rotated", "PDF rotated successfully", "Failed to rotate PDF",
		map[string]any{"angle": angle, "pages": sel.String()}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return s.pdf.Rotate(ctx, in, out, angle, sel)
		})
}

func (s *Server) compress(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error compressing PDF", err)
		return
	}

	opts := pdfops.CompressOptions{}
	if opts.Quality, err = pdfops.ParseQuality(c.PostForm("quality")); err != nil {
		s.fail(c, "Error compressing PDF", err)
		return
	}
	if opts.TargetReduction, err = formFloat(c, "target_reduction", 0); err != nil {
		s.fail(c, "Error compressing PDF", err)
		return
	}
	if opts.TargetReduction < 0 || opts.TargetReduction >= 100 {
		s.fail(c, "Error compressing PDF", response.BadRequest("target_reduction must be between 0 and 100", nil))
		return
	}
	if opts.TargetReduction > 0 && c.PostForm("quality") == "" {
		opts.Quality = pdfops.QualityForTarget(opts.TargetReduction)
	}

	out, err := s.store.NewOutput("compressed", "pdf")
	if err != nil {
		s.fail(c, "Error compressing PDF", err)
		return
	}

	var res *pdfops.CompressResult
	err = s.run(c, "compress", map[string]any{"file_id": up.ID, "quality": string(opts.Quality), "target_reduction": opts.TargetReduction},
		func(ctx context.Context) error {
			var err error
			res, err = s.pdf.Compress(ctx, up.Path, out.Path, opts)
			return err
		})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Failed to compress PDF", err)
		return
	}

	s.ok(c, "PDF compressed successfully", struct {
		fileRef
		*pdfops.CompressResult
	}{refFor(out), res})
}

func (s *Server) watermark(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error adding watermark", err)
		return
	}

	opts := pdfops.DefaultWatermarkOptions()
	if text := c.PostForm("text"); text != "" {
		opts.Text = text
	}
	if color := c.PostForm("color"); color != "" {
		opts.Color = color
	}
	if opts.Opacity, err = formFloat(c, "opacity", opts.Opacity); err == nil {
		if opts.Angle, err = formInt(c, "angle", opts.Angle); err == nil {
			if opts.FontSize, err = formInt(c, "font_size", opts.FontSize); err == nil {
				opts.Pages, err = formPages(c, "pages")
			}
		}
	}
	if err != nil {
		s.fail(c, "Error adding watermark", err)
		return
	}

	s.pageOp(c, "watermark", "watermarked", "Watermark added successfully", "Failed to add watermark",
		map[string]any{"text": opts.Text, "opacity": opts.Opacity, "angle": opts.Angle}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return s.pdf.Watermark(ctx, in, out, opts)
		})
}

func (s *Server) pageNumbers(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error adding page numbers", err)
		return
	}

	opts := pdfops.DefaultPageNumberOptions()
	if format := c.PostForm("format"); format != "" {
		opts.Format = format
	}
	if position := c.PostForm("position"); position != "" {
		opts.Position = position
	}
	if opts.Start, err = formInt(c, "start", opts.Start); err == nil {
		if opts.FontSize, err = formInt(c, "font_size", opts.FontSize); err == nil {
			opts.Pages, err = formPages(c, "pages")
		}
	}
	if err != nil {
		s.fail(c, "Error adding page numbers", err)
		return
	}

	s.pageOp(c, "page_numbers", "numbered", "Page numbers added successfully", "Failed to add page numbers",
		map[string]any{"format": opts.Format, "position": opts.Position, "start": opts.Start}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return s.pdf.PageNumbers(ctx, in, out, opts)
		})
}

func (s *Server) removePages(c *gin.Context) {
	if err := parseForm(c, noPDF); err != nil {
		s.fail(c, "Error removing pages", err)
		return
	}
	if c.PostForm("pages") == "" {
		s.fail(c, "Error removing pages", response.BadRequest("No pages specified for removal", nil))
		return
	}
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error removing pages", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error removing pages", err)
		return
	}

	s.pageOp(c, "remove_pages", "modified", "Pages removed successfully", "Failed to remove pages",
		map[string]any{"pages": sel.String()}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return s.pdf.RemovePages(ctx, in, out, sel)
		})
}

func (s *Server) rearrange(c *gin.Context) {
	if err := parseForm(c, noPDF); err != nil {
		s.fail(c, "Error rearranging pages", err)
		return
	}
	raw := c.PostForm("order")
	if raw == "" {
		s.fail(c, "Error rearranging pages", response.BadRequest("No page order specified", nil))
		return
	}
	order, err := pagerange.ParseOrder(raw)
	if err != nil {
		s.fail(c, "Error rearranging pages", response.BadRequest(err.Error(), err))
		return
	}
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error rearranging pages", err)
		return
	}

	s.pageOp(c, "rearrange", "rearranged", "Pages rearranged successfully", "Failed to rearrange pages",
		map[string]any{"order": raw}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return s.pdf.Rearrange(ctx, in, out, order)
		})
}

func (s *Server) protect(c *gin.Context) {
	s.security(c, "protect", "protected", "PDF protected successfully", "Failed to protect PDF", s.pdf.Protect)
}

func (s *Server) unlock(c *gin.Context) {
	s.security(c, "unlock", "unlocked", "PDF unlocked successfully", "Failed to unlock PDF. Check password.", s.pdf.Unlock)
}

func (s *Server) security(c *gin.Context, operation, suffix, success, failure string,
	fn func(ctx context.Context, in, out, password string) error) {
	if err := parseForm(c, noPDF); err != nil {
		s.fail(c, failure, err)
		return
	}
	password := c.PostForm("password")
	if password == "" {
		s.fail(c, failure, response.BadRequest("Password is required", nil))
		return
	}
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, failure, err)
		return
	}

	s.pageOp(c, operation, suffix, success, failure, map[string]any{"password": password}, up,
		func(ctx context.Context, in, out string) (any, error) {
			return nil, fn(ctx, in, out, password)
		})
}

func (s *Server) properties(c *gin.Context) {
	path, err := s.store.Resolve(c.Param("file_id"))
	if err != nil {
		s.fail(c, "Error getting PDF properties", err)
		return
	}
	if !storage.HasExtension(path, "pdf") {
		s.fail(c, "Error getting PDF properties", response.BadRequest("File is not a PDF", storage.ErrExtension))
		return
	}

	var props *pdfops.Properties
	err = s.run(c, "properties", map[string]any{"file_id": c.Param("file_id")}, func(ctx context.Context) error {
		var err error
		props, err = s.pdf.Properties(ctx, path)
		return err
	})
	if err != nil {
		s.fail(c, "Error getting PDF properties", err)
		return
	}
	s.ok(c, "PDF properties retrieved", props)
}

func (s *Server) extractText(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error extracting text", err)
		return
	}
	format, err := extract.ParseFormat(c.PostForm("format"))
	if err != nil {
		s.fail(c, "Error extracting text", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error extracting text", err)
		return
	}
	opts := extract.TextOptions{Pages: sel, UseOCR: formBool(c, "use_ocr")}

	out, err := s.store.NewOutput("text", string(format))
	if err != nil {
		s.fail(c, "Error extracting text", err)
		return
	}

	var res *extract.TextResult
	err = s.run(c, "extract_text", map[string]any{"file_id": up.ID, "format": string(format), "use_ocr": opts.UseOCR},
		func(ctx context.Context) error {
			var err error
			if res, err = s.extractor.Text(ctx, up.Path, opts); err != nil {
				return err
			}
			if err := extract.WriteTextFile(out.Path, res, format, up.OriginalName); err != nil {
				return response.Internal("failed to write extracted text", err)
			}
			return nil
		})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Error extracting text", err)
		return
	}

	text := res.Text()
	preview, truncated := extract.Preview(text, extract.PreviewLimit)
	s.ok(c, "Text extracted successfully", struct {
		fileRef
		Format         extract.Format `json:"format"`
		Text           string         `json:"text"`
		Truncated      bool           `json:"truncated"`
		FullTextLength int            `json:"full_text_length"`
		WordCount      int            `json:"word_count"`
		PageCount      int            `json:"page_count"`
		Strategy       string         `json:"strategy"`
		Warnings       []string       `json:"warnings,omitempty"`
	}{refFor(out), format, preview, truncated, res.FullTextLength, res.WordCount, res.PageCount, res.Strategy, res.Warnings})
}

func (s *Server) extractImages(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error extracting images", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error extracting images", err)
		return
	}
	dir, err := s.store.NewOutputDir(up.ID, "_images")
	if err != nil {
		s.fail(c, "Error extracting images", err)
		return
	}

	var res *pdfops.ImagesResult
	err = s.run(c, "extract_images", map[string]any{"file_id": up.ID, "pages": sel.String()}, func(ctx context.Context) error {
		var err error
		res, err = s.pdf.ExtractImages(ctx, up.Path, dir, sel)
		return err
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		s.fail(c, "No images found or failed to extract", err)
		return
	}

	s.ok(c, "Images extracted successfully", map[string]any{
		"file_id":      up.ID,
		"images":       res.Files,
		"pages":        res.Pages,
		"count":        len(res.Files),
		"download_url": storage.ZipURL(up.ID),
	})
}

func (s *Server) extractTables(c *gin.Context) {
	up, err := s.saveFile(c, "file", noPDF, "pdf")
	if err != nil {
		s.fail(c, "Error extracting tables", err)
		return
	}
	format, err := extract.ParseTableFormat(c.PostForm("format"))
	if err != nil {
		s.fail(c, "Error extracting tables", err)
		return
	}
	sel, err := formPages(c, "pages")
	if err != nil {
		s.fail(c, "Error extracting tables", err)
		return
	}

	out, err := s.store.NewOutput("tables", format.Extension())
	if err != nil {
		s.fail(c, "Error extracting tables", err)
		return
	}

	var res *extract.TablesResult
	err = s.run(c, "extract_tables", map[string]any{"file_id": up.ID, "format": string(format)}, func(ctx context.Context) error {
		var err error
		if res, err = s.extractor.Tables(ctx, up.Path, sel); err != nil {
			return err
		}
		f, err := os.OpenFile(out.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return response.Internal("failed to create output", err)
		}
		if err := extract.WriteTables(f, res.Tables, format); err != nil {
			_ = f.Close()
			return response.OperationFailed("failed to write tables", err)
		}
		return f.Close()
	})
	if err != nil {
		_ = os.Remove(out.Path)
		s.fail(c, "Error extracting tables", err)
		return
	}

	s.ok(c, "Tables extracted successfully", struct {
		fileRef
		Format extract.TableFormat `json:"format"`
		Count  int                 `json:"count"`
		*extract.TablesResult
	}{refFor(out), format, len(res.Tables), res})
}
