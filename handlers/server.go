// Package handlers is the HTTP host around the access gate: it classifies
// requests, runs the gate on every one of them, and serves the login page
// and the administrator settings page.
package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"iplogin/database"
	"iplogin/gate"
	"iplogin/notify"
	"iplogin/secretkey"
	"iplogin/settings"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	MaxFailedAttempts = 5
	LockoutDuration   = 15 * time.Minute
)

type Server struct {
	db         *database.DB
	gate       *gate.Gate
	keys       *secretkey.Manager
	settings   *settings.Service
	site       notify.Site
	csrf       *CSRF
	sessionTTL time.Duration
	logger     *log.Logger

	mu           sync.RWMutex
	updateNotice string
}

type Options struct {
	DB         *database.DB
	Gate       *gate.Gate
	Keys       *secretkey.Manager
	Settings   *settings.Service
	Site       notify.Site
	CSRF       *CSRF
	SessionTTL time.Duration
	Logger     *log.Logger
}

func NewServer(o Options) *Server {
	return &Server{
		db:         o.DB,
		gate:       o.Gate,
		keys:       o.Keys,
		settings:   o.Settings,
		site:       o.Site,
		csrf:       o.CSRF,
		sessionTTL: o.SessionTTL,
		logger:     o.Logger,
	}
}

// SetUpdateNotice sets the banner shown on the settings page.
func (s *Server) SetUpdateNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateNotice = msg
}

func (s *Server) notice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateNotice
}

// Router builds the gin engine. trustedProxies may be nil, in which case
// forwarding headers are ignored.
func (s *Server) Router(trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.RequestLogger())
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	router.Use(s.GateMiddleware())

	router.GET("/", s.HomePage)
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/login", s.LoginPage)
	router.POST("/login", s.Login)
	router.GET("/logout", s.Logout)

	admin := router.Group("/admin")
	admin.Use(s.AdminAuthMiddleware())
	{
		admin.GET("", func(c *gin.Context) { c.Redirect(http.StatusFound, "/admin/settings") })
		admin.GET("/settings", s.SettingsPage)
		admin.POST("/settings", s.SaveSettings)
		admin.GET("/ajax/generate-key", s.GenerateKey)
	}

	return router, nil
}

func (s *Server) HomePage(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{"SiteName": s.site.Name})
}
