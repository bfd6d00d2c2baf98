package ui

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"flowdash/adapters/excel"
	"flowdash/app"
	"flowdash/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
)

// ServerOptions holds the request limits of the page controller
type ServerOptions struct {
	MaxUploadBytes int64
	SampleRows     int
	// DemoFile is loaded into every new session when set
	DemoFile *DemoFile
}

// DemoFile is a file preloaded into new sessions
type DemoFile struct {
	Name string
	Data []byte
}

// Server is the dashboard's page controller. Every user interaction has
// its own named handler that reads the session state, recomputes what it
// needs through the dashboard service and responds.
type Server struct {
	router    *gin.Engine
	templates *template.Template
	files     fs.FS
	dashboard *app.DashboardService
	sessions  *session.Store
	options   ServerOptions
	help      template.HTML
}

// NewServer creates the server. files must contain ui/templates and
// ui/static as laid out in the repository.
func NewServer(files fs.FS, dashboard *app.DashboardService, sessions *session.Store, options ServerOptions) (*Server, error) {
	s := &Server{
		router:    gin.New(),
		files:     files,
		dashboard: dashboard,
		sessions:  sessions,
		options:   options,
	}

	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Router exposes the gin engine, mostly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) loadTemplates() error {
	funcMap := template.FuncMap{
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
		"accept": func() string {
			return strings.Join(excel.AcceptedExtensions, ",")
		},
		"fileSize": func(n int64) string {
			return fmt.Sprintf("%d MB", n/(1024*1024))
		},
	}

	templatesFS, err := fs.Sub(s.files, "ui/templates")
	if err != nil {
		return fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	s.templates, err = template.New("").Funcs(funcMap).ParseFS(templatesFS, "*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	helpText, err := fs.ReadFile(templatesFS, "help.md")
	if err != nil {
		return fmt.Errorf("failed to read help text: %w", err)
	}
	s.help = template.HTML(markdown.ToHTML(helpText, nil, nil))

	log.Printf("[loadTemplates] Parsed templates: %s", s.templates.DefinedTemplates())
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	pages := s.router.Group("/", s.sessionMiddleware())
	{
		pages.GET("/", s.handleDashboard)
		pages.GET("/preview", s.handlePreview)
		pages.POST("/upload", s.handleUpload)
		pages.POST("/sheet", s.handleSelectSheet)
		pages.POST("/reset", s.handleReset)
		pages.GET("/chart/:renderer", s.handleChart)
	}

	api := s.router.Group("/api", s.sessionMiddleware())
	{
		api.GET("/columns", s.handleColumns)
		api.GET("/filters/:column", s.handleFilterValues)
		api.GET("/sankey", s.handleSankey)
		api.GET("/uploads", s.handleUploads)
	}
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Start] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("[Start] Shutting down")
	return srv.Shutdown(shutdownCtx)
}
