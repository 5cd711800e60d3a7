package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"iplogin/database"
)

func (s *Server) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"SiteName": s.site.Name})
}

func (s *Server) Login(c *gin.Context) {
	clientIP := c.ClientIP()

	failedAttempts, err := s.db.GetRecentFailedAttempts(clientIP, LockoutDuration)
	if err != nil {
		s.logger.Error("failed to check login attempts", "err", err)
	}
	if failedAttempts >= MaxFailedAttempts {
		c.HTML(http.StatusTooManyRequests, "login.html", gin.H{
			"SiteName": s.site.Name,
			"Error":    "Too many failed attempts. Please try again later.",
		})
		return
	}

	var req struct {
		Email    string `form:"email" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"SiteName": s.site.Name, "Error": "Email and password are required."})
		return
	}

	admin, err := s.db.GetAdminByEmail(req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Error("failed to load admin", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		if err := s.db.RecordLoginAttempt(clientIP, false); err != nil {
			s.logger.Error("failed to record login attempt", "err", err)
		}
		s.logger.Warn("admin login failed", "ip", clientIP, "email", req.Email)
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"SiteName": s.site.Name, "Error": "Invalid email or password."})
		return
	}

	if err := s.db.RecordLoginAttempt(clientIP, true); err != nil {
		s.logger.Error("failed to record login attempt", "err", err)
	}

	sess, err := s.db.CreateSession(admin.ID, s.sessionTTL)
	if err != nil {
		s.logger.Error("failed to create session", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	s.logger.Info("admin logged in", "ip", clientIP, "email", admin.Email)
	c.SetCookie(sessionCookie, sess.Token, int(s.sessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusSeeOther, "/admin/settings")
}

func (s *Server) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := s.db.DeleteSession(token); err != nil {
			s.logger.Error("failed to delete session", "err", err)
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, "/")
}
