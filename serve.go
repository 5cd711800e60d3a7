package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"iplogin/allowlist"
	"iplogin/config"
	"iplogin/database"
	"iplogin/gate"
	"iplogin/handlers"
	"iplogin/logging"
	"iplogin/notify"
	"iplogin/secretkey"
	"iplogin/settings"
	"iplogin/updates"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(os.Stderr, cfg.LogLevel)
	return cfg, nil
}

func openDB(cfg config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.Infof("Starting iplogin %s...", version)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	site := notify.Site{Name: cfg.Site.Name, URL: cfg.Site.URL}

	var mailer notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		logging.Warnf("smtp.host is not set; key change emails are logged, not sent")
		mailer = notify.LogMailer{Logger: logging.L.WithPrefix("mail")}
	}
	if cfg.OperatorEmail == "" {
		logging.Warnf("operator_email is not set; failed notifications will not be escalated")
	}
	dispatcher := notify.NewDispatcher(mailer, site, cfg.OperatorEmail, logging.L.WithPrefix("notify"))

	keys := secretkey.NewManager(db, dispatcher)
	csrf, err := handlers.NewCSRF(cfg.CSRFSecret)
	if err != nil {
		return err
	}

	server := handlers.NewServer(handlers.Options{
		DB:         db,
		Gate:       gate.New(db),
		Keys:       keys,
		Settings:   settings.NewService(allowlist.NewEngine(db), keys),
		Site:       site,
		CSRF:       csrf,
		SessionTTL: cfg.SessionTTL,
		Logger:     logging.L.WithPrefix("http"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cleanupWorker(ctx, db)
	if cfg.Updates.Enabled {
		go updateWorker(ctx, cfg.Updates, server)
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := server.Router(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted_proxies: %w", err)
	}

	logging.Infof("Server starting on %s", cfg.ListenAddr)
	return router.Run(cfg.ListenAddr)
}

func cleanupWorker(ctx context.Context, db *database.DB) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		logging.Debugf("Running cleanup tasks...")

		if err := db.CleanupExpiredSessions(); err != nil {
			logging.Errorf("Error cleaning up expired sessions: %v", err)
		}

		if err := db.CleanupOldLoginAttempts(); err != nil {
			logging.Errorf("Error cleaning up old login attempts: %v", err)
		}
	}
}

// updateWorker checks for a newer release at startup and then daily.
func updateWorker(ctx context.Context, cfg config.Updates, server *handlers.Server) {
	checker := updates.NewChecker(cfg.Owner, cfg.Repo, cfg.Token)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		rel, newer, err := checker.Check(ctx, version)
		switch {
		case err != nil:
			logging.Warnf("Update check failed: %v", err)
		case newer:
			logging.Infof("A new version is available: %s (%s)", rel.TagName, rel.HTMLURL)
			server.SetUpdateNotice(fmt.Sprintf("Version %s is available: %s", rel.TagName, rel.HTMLURL))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
