package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"iplogin/models"
	"iplogin/options"
	"iplogin/secretkey"
	"iplogin/settings"
)

const settingsAction = "settings-update"

func currentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*models.Session)
	return sess
}

type adminOption struct {
	Email   string
	Checked bool
}

func (s *Server) SettingsPage(c *gin.Context) {
	sess := currentSession(c)

	allowed, err := s.db.Get(options.AllowedIPs, "")
	if err != nil {
		s.logger.Error("failed to read allow-list", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	rec, err := s.keys.Current()
	if err != nil {
		s.logger.Error("failed to read secret key", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	admins, err := s.db.ListAdmins()
	if err != nil {
		s.logger.Error("failed to list admins", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	recipients := make([]adminOption, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, adminOption{Email: a.Email, Checked: true})
	}

	editable := secretkey.StateFor(rec.LastChangedDate, s.keys.Today()) == secretkey.Editable

	c.HTML(http.StatusOK, "settings.html", gin.H{
		"SiteName":     s.site.Name,
		"SiteURL":      s.site.URL,
		"AllowedIPs":   allowed,
		"SecretKey":    rec.Key,
		"WhitelistURL": s.site.WhitelistURL(rec.Key),
		"Editable":     editable,
		"Admins":       recipients,
		"CSRFToken":    s.csrf.Token(sess.Token, settingsAction),
		"Status":       c.Query("status"),
		"UpdateNotice": s.notice(),
		"User":         sess.Email,
	})
}

func (s *Server) SaveSettings(c *gin.Context) {
	sess := currentSession(c)

	if err := s.csrf.Verify(sess.Token, settingsAction, c.PostForm("csrf_token")); err != nil {
		s.logger.Warn("settings submission rejected", "email", sess.Email, "err", err)
		c.String(http.StatusForbidden, "Security check failed.")
		c.Abort()
		return
	}

	recipients, err := s.knownAdmins(c.PostFormArray("admin_emails[]"))
	if err != nil {
		s.logger.Error("failed to list admins", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	out, err := s.settings.Apply(settings.Submission{
		AllowedIPs:  c.PostForm("allowed_ips"),
		SecretKey:   c.PostForm("secret_key"),
		AdminEmails: recipients,
		Actor:       sess.Email,
	})
	if err != nil {
		s.logger.Error("failed to save settings", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	status := "saved"
	kc := out.KeyChange
	switch {
	case kc.Accepted:
		failed := 0
		for _, o := range kc.Outcomes {
			if o.Err != nil {
				failed++
			}
		}
		s.logger.Info("secret key changed", "by", sess.Email, "notified", len(kc.Outcomes)-failed, "failed", failed)
	case errors.Is(kc.Reason, secretkey.ErrAlreadyChangedToday):
		status = "locked"
	case errors.Is(kc.Reason, secretkey.ErrEmptyKey):
		status = "empty-key"
	}
	s.logger.Info("allow-list saved", "by", sess.Email, "entries", len(out.AllowedIPs))

	c.Redirect(http.StatusSeeOther, "/admin/settings?status="+status)
}

// knownAdmins keeps only addresses that belong to administrators.
func (s *Server) knownAdmins(selected []string) ([]string, error) {
	admins, err := s.db.ListAdmins()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(admins))
	for _, a := range admins {
		known[a.Email] = true
	}
	out := make([]string, 0, len(selected))
	for _, email := range selected {
		if known[email] {
			out = append(out, email)
		}
	}
	return out, nil
}

func (s *Server) GenerateKey(c *gin.Context) {
	key, err := secretkey.Generate()
	if err != nil {
		s.logger.Error("failed to generate key", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": s.site.WhitelistURL(key)})
}
