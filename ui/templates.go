package ui

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"flowdash/app"
	"flowdash/domain/columns"
	"flowdash/domain/flow"
	"flowdash/domain/table"
	"flowdash/internal/session"

	"github.com/gin-gonic/gin"
)

// pageData is shared by the dashboard and preview pages
type pageData struct {
	Title     string
	Active    string
	Flash     session.Flash
	FileName  string
	Sheets    []string
	Sheet     string
	Loaded    bool
	MaxUpload int64
	Renderers []string
	Renderer  string
	Error     string
	Info      string

	Columns   *app.ColumnsView
	Selection columns.Selection
	Overall   *chartPanel
	Panels    []*chartPanel

	Preview   *table.Table
	TotalRows int
	Help      template.HTML
}

// chartPanel is one diagram slot on the dashboard
type chartPanel struct {
	Column   string
	Value    string
	Options  []string
	Title    string
	Height   int
	URL      string
	Summary  flow.Summary
	Warnings []string
}

func (s *Server) newPage(c *gin.Context, active string) (*pageData, session.State) {
	sess := currentSession(c)
	st := sess.Snapshot()
	return &pageData{
		Title:     "Data Visualization Dashboard",
		Active:    active,
		Flash:     sess.TakeFlash(),
		FileName:  st.FileName(),
		Sheets:    st.Sheets,
		Sheet:     st.Sheet,
		Loaded:    st.Loaded(),
		MaxUpload: s.options.MaxUploadBytes,
		Renderers: s.dashboard.RendererNames(),
		Renderer:  s.dashboard.Options().DefaultRenderer,
	}, st
}

// chartURL addresses the iframe-embeddable diagram for a selection
func chartURL(renderer string, sel columns.Selection, filterColumn, filterValue string) string {
	q := url.Values{}
	q.Set("source", sel.Source)
	q.Set("target", sel.Target)
	q.Set("value", sel.Value)
	if filterColumn != "" {
		q.Set("filter_column", filterColumn)
		q.Set("filter_value", filterValue)
	}
	return "/chart/" + url.PathEscape(renderer) + "?" + q.Encode()
}

// renderTemplate executes a template into a buffer first so a failing
// template never produces a half-written page
func (s *Server) renderTemplate(c *gin.Context, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[renderTemplate] Template error for %s: %v", templateName, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Template rendering failed", "code": "INTERNAL_ERROR"})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("[renderTemplate] Error writing template response: %v", err)
	}
}
