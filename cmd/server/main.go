package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/handler"
	"github.com/amoshaviv/flow-tester-sub001/internal/logger"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
	"github.com/amoshaviv/flow-tester-sub001/internal/websocket"
)

const sessionSweepInterval = time.Hour

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.toml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal("failed to load config", "path", configPath, "error", err)
	}

	l := logger.FromConfig(cfg.Log, handler.ServiceName)
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := repository.OpenDatabase(cfg.Database)
	if err != nil {
		l.Fatal("failed to open database", "error", err)
	}
	if err := repository.Migrate(db); err != nil {
		l.Fatal("failed to migrate database", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	testRepo := repository.NewTestRepository(db)
	suiteRepo := repository.NewTestSuiteRepository(db)
	versionRepo := repository.NewTestSuiteVersionRepository(db)
	runRepo := repository.NewTestRunRepository(db)
	suiteRunRepo := repository.NewTestSuiteRunRepository(db)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	dispatcher := dispatch.New(cfg.Agent.WebhookURL, cfg.Agent.Token, cfg.Agent.WebhookTimeout(), l)

	// Initialize services
	svc := handler.Services{
		Auth:     service.NewAuthService(userRepo, sessionRepo, inviteRepo, cfg.Auth, l),
		Access:   service.NewAccessService(orgRepo, projectRepo),
		Orgs:     service.NewOrganizationService(orgRepo, userRepo, inviteRepo, cfg.Auth, l),
		Projects: service.NewProjectService(projectRepo, l),
		Tests:    service.NewTestService(testRepo, l),
		Suites:   service.NewSuiteService(suiteRepo, versionRepo, suiteRunRepo, l),
		Runs:     service.NewRunService(testRepo, suiteRepo, versionRepo, runRepo, suiteRunRepo, dispatcher, hub, l),
		Analyses: service.NewAnalysisService(repository.NewAnalysisRepository(db), dispatcher, hub, l),
	}
	if cfg.Agent.Token == "" {
		l.Warn("agent token is empty, agent reports are disabled")
	}

	go sweepSessions(ctx, sessionRepo, l)

	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           handler.NewRouter(svc, hub, cfg, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("starting server", "addr", srv.Addr, "database", cfg.Database.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("graceful shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// sweepSessions deletes expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions repository.SessionRepository, l *log.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, now)
			if err != nil {
				l.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				l.Debug("expired sessions removed", "count", n)
			}
		}
	}
}
