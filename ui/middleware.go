package ui

import (
	"io/fs"
	"log"
	"net/http"
	"time"

	"flowdash/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	sessionCookie = "flowdash_session"
	sessionKey    = "session"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Logger(), gin.Recovery())

	staticFS, err := fs.Sub(s.files, "ui/static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// sessionMiddleware attaches the caller's session, creating one (and its
// cookie) on first contact or after expiry
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(sessionCookie)
		sess, created := s.sessions.GetOrCreate(id)
		if created {
			maxAge := int(s.sessions.TTL() / time.Second)
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, sess.ID(), maxAge, "/", "", false, true)
			s.preloadDemo(sess)
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) preloadDemo(sess *session.Session) {
	demo := s.options.DemoFile
	if demo == nil {
		return
	}
	loaded, err := s.dashboard.LoadUpload(demo.Name, demo.Data)
	if err != nil {
		log.Printf("[preloadDemo] Could not load %s: %v", demo.Name, err)
		return
	}
	_ = sess.Update(func(st *session.State) error {
		*st = loaded
		return nil
	})
}
