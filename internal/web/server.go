// Package web serves the brochure site: localized pages, the customizable
// images, the contact form, and operational endpoints.
package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/cmstory/internal/content"
	"github.com/roach88/cmstory/internal/gallery"
	"github.com/roach88/cmstory/internal/imaging"
	"github.com/roach88/cmstory/internal/inquiry"
	"github.com/roach88/cmstory/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Images is the display-layer image state.
type Images interface {
	Resolve(key store.Key) gallery.Asset
	Image(key store.Key) (imaging.Image, error)
	Upload(ctx context.Context, key store.Key, r io.Reader, contentType string) (<-chan store.Outcome, error)
	Loaded() bool
}

// Inquiries records contact form submissions.
type Inquiries interface {
	Submit(ctx context.Context, form inquiry.Form) (inquiry.Inquiry, error)
}

// Config wires a Server.
type Config struct {
	Site        *content.Site
	Images      Images
	Inquiries   Inquiries
	Store       StoreStatus
	DefaultLang content.Lang
	Logger      *slog.Logger

	// UploadToken must accompany image uploads, as the "token" form field
	// or a bearer Authorization header. Uploads are refused when empty.
	UploadToken string

	// Registry receives the server's collectors. A fresh registry is used
	// when nil.
	Registry *prometheus.Registry
}

// Server is the HTTP surface.
type Server struct {
	site        *content.Site
	images      Images
	inquiries   Inquiries
	store       StoreStatus
	defaultLang content.Lang
	uploadToken string
	logger      *slog.Logger

	tmpl     *template.Template
	metrics  *Metrics
	registry *prometheus.Registry
	router   *mux.Router
}

// New builds a Server and its routes.
func New(cfg Config) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		site:        cfg.Site,
		images:      cfg.Images,
		inquiries:   cfg.Inquiries,
		store:       cfg.Store,
		defaultLang: cfg.DefaultLang,
		uploadToken: cfg.UploadToken,
		logger:      cfg.Logger,
		tmpl:        tmpl,
		metrics:     NewMetrics(),
		registry:    cfg.Registry,
	}
	if s.site == nil {
		s.site = content.Default()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
	}

	s.registry.MustRegister(s.metrics)
	if s.store != nil {
		s.registry.MustRegister(NewStoreCollector(s.store))
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.accessLog, s.instrument)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet, http.MethodHead)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/images/{key}", s.handleImage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/images/{key}", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/contact", s.handleContact).Methods(http.MethodPost)

	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/{page}", s.handlePage).Methods(http.MethodGet, http.MethodHead)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
