// Package server exposes the document operations over HTTP with gin. Every JSON
// response uses the envelope from the response package.
package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sammcj/pdfmaster/internal/cache"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/convert"
	"github.com/sammcj/pdfmaster/internal/errorlog"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/session"
	"github.com/sammcj/pdfmaster/internal/storage"
	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators a Server dispatches to.
type Deps struct {
	Config    config.Config
	Session   *session.Root
	Store     *storage.Store
	Processor *pdfops.Processor
	Extractor *extract.Extractor
	Converter *convert.Converter
	Cache     *cache.Cache
	ErrorLog  *errorlog.Logger
	Logger    *logrus.Logger
	Version   string
}

// Server is the HTTP surface.
type Server struct {
	cfg       config.Config
	session   *session.Root
	store     *storage.Store
	pdf       *pdfops.Processor
	extractor *extract.Extractor
	converter *convert.Converter
	cache     *cache.Cache
	errlog    *errorlog.Logger
	logger    *logrus.Logger
	version   string
	started   time.Time
	engine    *gin.Engine
}

// Endpoint is one registered route.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// New builds the gin engine with middleware and routes.
func New(d Deps) *Server {
	if d.ErrorLog == nil {
		d.ErrorLog = errorlog.Disabled()
	}
	if d.Version == "" {
		d.Version = "dev"
	}

	s := &Server{
		cfg:       d.Config,
		session:   d.Session,
		store:     d.Store,
		pdf:       d.Processor,
		extractor: d.Extractor,
		converter: d.Converter,
		cache:     d.Cache,
		errlog:    d.ErrorLog,
		logger:    d.Logger,
		version:   d.Version,
		started:   time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.HandleMethodNotAllowed = false

	r.Use(
		requestID(),
		accessLog(s.logger),
		recovery(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		rateLimit(s.cfg.RateLimit, s.cfg.RateBurst),
		bodyLimit(s.cfg.MaxRequestSize()),
		bearerAuth(s.cfg.AuthToken, s.logger),
	)

	s.engine = r
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", s.index)
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.GET("/status", s.status)
	api.POST("/upload", s.upload)

	pdf := api.Group("/pdf")
	pdf.POST("/merge", s.merge)
	pdf.POST("/split", s.split)
	pdf.POST("/rotate", s.rotate)
	pdf.POST("/compress", s.compress)
	pdf.POST("/watermark", s.watermark)
	pdf.POST("/page-numbers", s.pageNumbers)
	pdf.POST("/extract-text", s.extractText)
	pdf.POST("/extract-images", s.extractImages)
	pdf.POST("/extract-tables", s.extractTables)
	pdf.POST("/remove-pages", s.removePages)
	pdf.POST("/rearrange", s.rearrange)
	pdf.GET("/properties/:file_id", s.properties)

	conv := api.Group("/convert")
	conv.POST("/pdf-to-jpg", s.pdfToImages(convert.FormatJPEG))
	conv.POST("/pdf-to-png", s.pdfToImages(convert.FormatPNG))
	conv.POST("/pdf-to-word", s.pdfToWord)
	conv.POST("/image-to-pdf", s.imageToPDF)
	conv.POST("/word-to-pdf", s.officeToPDF)
	conv.POST("/html-to-pdf", s.htmlToPDF)

	api.POST("/image/resize", s.resizeImage)

	sec := api.Group("/security")
	sec.POST("/protect", s.protect)
	sec.POST("/unlock", s.unlock)

	api.GET("/files/recent", s.recentFiles)
	api.DELETE("/files/:id", s.deleteFile)
	api.GET("/storage/stats", s.storageStats)
	api.POST("/cleanup", s.cleanup)

	r.GET("/download/:filename", s.download)
	r.GET("/download-zip/:id", s.downloadZip)
	api.GET("/download/:filename", s.download)
	api.GET("/download/:filename/:id", s.legacyZip)

	r.NoRoute(s.notFound)
}

// Handler returns the engine, instrumented when tracing is enabled.
func (s *Server) Handler() http.Handler {
	return telemetry.WrapHandler(s.engine)
}

// HTTPServer returns an http.Server listening on the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Endpoints lists the registered routes sorted by path.
func (s *Server) Endpoints() []Endpoint {
	routes := s.engine.Routes()
	out := make([]Endpoint, 0, len(routes))
	for _, r := range routes {
		out = append(out, Endpoint{Method: r.Method, Path: r.Path})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path == out[j].Path {
			return out[i].Method < out[j].Method
		}
		return out[i].Path < out[j].Path
	})
	return out
}
