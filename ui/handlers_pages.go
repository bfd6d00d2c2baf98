package ui

import (
	stderrors "errors"
	"io"
	"log"
	"net/http"
	"strings"

	"flowdash/app"
	"flowdash/domain/columns"
	"flowdash/internal/errors"
	"flowdash/internal/session"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is allowed on top of the file size cap for the form
// envelope
const multipartOverhead = 1 << 20

// handleDashboard shows the overall diagram and one diagram per filter
// column
func (s *Server) handleDashboard(c *gin.Context) {
	page, st := s.newPage(c, "dashboard")
	if !st.Loaded() {
		page.Info = errors.NoData().Message
		s.renderTemplate(c, "dashboard.html", page)
		return
	}

	if renderer := c.Query("renderer"); renderer != "" {
		page.Renderer = renderer
	}
	sel := selectionFromQuery(c)

	dash, err := s.dashboard.Dashboard(c.Request.Context(), st.Table, sel, c.QueryMap("filter"))
	if err != nil {
		log.Printf("[handleDashboard] Selection %+v rejected: %v", sel, err)
		page.Error = errors.UserMessage(err)
		// Fall back to the default picks so the pickers stay usable
		dash, err = s.dashboard.Dashboard(c.Request.Context(), st.Table, columns.Selection{}, c.QueryMap("filter"))
		if err != nil {
			page.Error = errors.UserMessage(err)
			s.renderTemplate(c, "dashboard.html", page)
			return
		}
	}

	page.Columns = dash.Columns
	page.Selection = dash.Selection
	page.Overall = panelFor(page.Renderer, dash.Selection, "", "", dash.Overall)
	for _, p := range dash.Panels {
		panel := panelFor(page.Renderer, dash.Selection, p.Column, p.Value, p.Flow)
		panel.Options = p.Options
		page.Panels = append(page.Panels, panel)
	}
	s.renderTemplate(c, "dashboard.html", page)
}

func panelFor(renderer string, sel columns.Selection, column, value string, result *app.FlowResult) *chartPanel {
	panel := &chartPanel{
		Column: column,
		Value:  value,
		URL:    chartURL(renderer, sel, column, value),
		Height: app.FilteredHeight,
	}
	if result != nil {
		panel.Title = result.Title
		panel.Height = result.Height
		panel.Summary = result.Summary
		panel.Warnings = result.Warnings
	}
	return panel
}

// handlePreview shows the first rows of the loaded table
func (s *Server) handlePreview(c *gin.Context) {
	page, st := s.newPage(c, "preview")
	page.Help = s.help
	if !st.Loaded() {
		page.Info = errors.NoData().Message
	} else {
		page.Preview = st.Table.Head(s.options.SampleRows)
		page.TotalRows = st.Table.RowCount()
	}
	s.renderTemplate(c, "preview.html", page)
}

// handleUpload replaces the session's table with the uploaded file. The
// previous table is kept when the new file cannot be read.
func (s *Server) handleUpload(c *gin.Context) {
	sess := currentSession(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.options.MaxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.uploadFailed(c, sess, errors.TooLarge(c.Request.ContentLength, s.options.MaxUploadBytes))
			return
		}
		s.uploadFailed(c, sess, errors.InvalidInput("No file uploaded"))
		return
	}
	if fileHeader.Size > s.options.MaxUploadBytes {
		s.uploadFailed(c, sess, errors.TooLarge(fileHeader.Size, s.options.MaxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.uploadFailed(c, sess, errors.ParseFailure(fileHeader.Filename, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.uploadFailed(c, sess, errors.ParseFailure(fileHeader.Filename, err))
		return
	}

	loaded, err := s.dashboard.LoadUpload(fileHeader.Filename, data)
	if err != nil {
		s.uploadFailed(c, sess, err)
		return
	}
	_ = sess.Update(func(st *session.State) error {
		*st = loaded
		return nil
	})
	s.dashboard.RecordUpload(c.Request.Context(), sess.ID(), loaded)
	log.Printf("[handleUpload] Session %s loaded %s (%d rows)", sess.ID(), loaded.FileName(), loaded.Table.RowCount())

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"file_name": loaded.FileName(),
			"sheets":    loaded.Sheets,
			"sheet":     loaded.Sheet,
			"rows":      loaded.Table.RowCount(),
			"columns":   loaded.Table.ColumnCount(),
		})
		return
	}
	sess.SetFlash(session.FlashSuccess, "File uploaded successfully!")
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) uploadFailed(c *gin.Context, sess *session.Session, err error) {
	log.Printf("[handleUpload] Upload rejected: %v", err)
	if wantsJSON(c) {
		respondError(c, err)
		return
	}
	sess.SetFlash(session.FlashError, errors.UserMessage(err))
	c.Redirect(http.StatusSeeOther, "/")
}

// handleSelectSheet reloads the table from another sheet of the uploaded
// workbook
func (s *Server) handleSelectSheet(c *gin.Context) {
	sess := currentSession(c)
	sheet := c.PostForm("sheet")

	err := sess.Update(func(st *session.State) error {
		return s.dashboard.SelectSheet(st, sheet)
	})
	if err != nil {
		log.Printf("[handleSelectSheet] Sheet %q rejected: %v", sheet, err)
		if wantsJSON(c) {
			respondError(c, err)
			return
		}
		sess.SetFlash(session.FlashError, errors.UserMessage(err))
		c.Redirect(http.StatusSeeOther, redirectTarget(c))
		return
	}

	st := sess.Snapshot()
	s.dashboard.RecordUpload(c.Request.Context(), sess.ID(), st)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"sheet": st.Sheet, "rows": st.Table.RowCount(), "columns": st.Table.ColumnCount()})
		return
	}
	sess.SetFlash(session.FlashSuccess, "Loaded sheet "+sheet)
	c.Redirect(http.StatusSeeOther, redirectTarget(c))
}

// handleReset forgets the uploaded file
func (s *Server) handleReset(c *gin.Context) {
	sess := currentSession(c)
	sess.Clear()
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
		return
	}
	sess.SetFlash(session.FlashInfo, "Session cleared")
	c.Redirect(http.StatusSeeOther, "/")
}

func selectionFromQuery(c *gin.Context) columns.Selection {
	return columns.Selection{
		Source: c.Query("source"),
		Target: c.Query("target"),
		Value:  c.Query("value"),
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// redirectTarget sends the user back to the preview page when the form
// came from there
func redirectTarget(c *gin.Context) string {
	if c.PostForm("return") == "preview" {
		return "/preview"
	}
	return "/"
}
