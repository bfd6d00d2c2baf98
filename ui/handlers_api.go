package ui

import (
	"bytes"
	"log"
	"net/http"
	"strconv"

	"flowdash/app"
	"flowdash/internal/errors"

	"github.com/gin-gonic/gin"
)

// respondError writes the JSON error envelope used by every API endpoint
func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[respondError] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": errors.UserMessage(err),
		"code":  errors.GetCode(err),
	})
}

// handleColumns returns the classification of the loaded table's labels
func (s *Server) handleColumns(c *gin.Context) {
	st := currentSession(c).Snapshot()
	view, err := s.dashboard.Columns(st.Table)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleFilterValues returns the sorted distinct values of one column
func (s *Server) handleFilterValues(c *gin.Context) {
	column := c.Param("column")
	st := currentSession(c).Snapshot()
	values, err := s.dashboard.FilterValues(st.Table, column)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": column, "values": values})
}

func flowRequestFromQuery(c *gin.Context) app.FlowRequest {
	return app.FlowRequest{
		Selection:    selectionFromQuery(c),
		FilterColumn: c.Query("filter_column"),
		FilterValue:  c.Query("filter_value"),
	}
}

// handleSankey returns one diagram dataset. nodes and links follow the
// renderer wire shape; the other fields describe the diagram.
func (s *Server) handleSankey(c *gin.Context) {
	st := currentSession(c).Snapshot()
	result, err := s.dashboard.Flow(st.Table, flowRequestFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes":        result.Dataset.Nodes,
		"links":        result.Dataset.Links,
		"title":        result.Title,
		"height":       result.Height,
		"value_column": result.ValueColumn,
		"summary":      result.Summary,
		"warnings":     result.Warnings,
	})
}

// handleChart renders one diagram as a standalone HTML page
func (s *Server) handleChart(c *gin.Context) {
	st := currentSession(c).Snapshot()
	result, err := s.dashboard.Flow(st.Table, flowRequestFromQuery(c))
	if err != nil {
		c.String(errors.HTTPStatus(err), errors.UserMessage(err))
		return
	}

	var buf bytes.Buffer
	if err := s.dashboard.Render(&buf, c.Param("renderer"), result); err != nil {
		log.Printf("[handleChart] Render failed: %v", err)
		c.String(errors.HTTPStatus(err), errors.UserMessage(err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// handleUploads lists the upload history of the caller's session, or of
// every session with scope=all
func (s *Server) handleUploads(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		respondError(c, errors.InvalidInput("limit must be a positive integer"))
		return
	}

	sessionID := currentSession(c).ID()
	if c.Query("scope") == "all" {
		sessionID = ""
	}
	records, err := s.dashboard.RecentUploads(c.Request.Context(), sessionID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": records})
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"history":  s.dashboard.HistoryEnabled(),
	})
}
