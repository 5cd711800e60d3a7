package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"iplogin/database"
	"iplogin/gate"
)

const (
	sessionCookie = "iplogin_session"
	sessionKey    = "session"
)

// Classify maps a request path to the gate's resource classes.
func Classify(path string) gate.Target {
	switch {
	case path == "/":
		return gate.FrontPage
	case path == "/admin/ajax" || strings.HasPrefix(path, "/admin/ajax/"):
		return gate.Async
	case path == "/login":
		return gate.Login
	case path == "/admin" || strings.HasPrefix(path, "/admin/"):
		return gate.Admin
	default:
		return gate.Other
	}
}

// GateMiddleware runs the access gate before any handler.
func (s *Server) GateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := gate.Request{
			IP:       c.ClientIP(),
			Target:   Classify(c.Request.URL.Path),
			QueryKey: c.Query("key"),
		}

		d, err := s.gate.Evaluate(req)
		if err != nil {
			s.logger.Error("gate evaluation failed", "err", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		switch d.Action {
		case gate.RedirectToLogin:
			if d.Whitelisted {
				s.logger.Info("ip whitelisted via secret key", "ip", req.IP)
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		case gate.RedirectToHome:
			s.logger.Debug("gated request refused", "ip", req.IP, "target", req.Target, "reason", d.Reason)
			c.Redirect(http.StatusFound, "/")
			c.Abort()
		default:
			c.Next()
		}
	}
}

// AdminAuthMiddleware requires a live session. Browsers are sent to the
// login page, async callers get 401.
func (s *Server) AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err == nil && token != "" {
			sess, err := s.db.GetSession(token)
			if err == nil {
				c.Set(sessionKey, sess)
				c.Next()
				return
			}
			if !errors.Is(err, database.ErrNotFound) {
				s.logger.Error("session lookup failed", "err", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		if Classify(c.Request.URL.Path) == gate.Async {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

// RequestLogger logs one line per request through the server's logger.
func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"took", time.Since(start),
		)
	}
}
