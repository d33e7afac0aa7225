// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the services together and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fischmanb/memduo-gate/internal/config"
	"github.com/fischmanb/memduo-gate/internal/database"
	"github.com/fischmanb/memduo-gate/internal/handlers"
	"github.com/fischmanb/memduo-gate/internal/i18n"
	"github.com/fischmanb/memduo-gate/internal/repository"
	"github.com/fischmanb/memduo-gate/internal/services/email"
	"github.com/fischmanb/memduo-gate/internal/services/identity"
	"github.com/fischmanb/memduo-gate/internal/services/lifecycle"
	"github.com/fischmanb/memduo-gate/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// sweepInterval is how often expired sessions and magic links are purged.
const sweepInterval = time.Hour

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	// Email is optional: without SMTP, invitations log instead of sending.
	var emails *email.Service
	if cfg.SMTP.Host != "" {
		emails, err = email.NewService(&cfg.SMTP)
		if err != nil {
			return fmt.Errorf("failed to create email service: %w", err)
		}
	} else {
		slog.Warn("SMTP not configured, invitation emails disabled")
	}

	managed := identity.NewManaged(repo, resetSender(emails))

	sessions, err := session.NewManager(&cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	// The server itself is the bearer API, so the lifecycle passes no
	// bearer backend: the managed registration already lands here.
	lc := lifecycle.NewService(repo, managed, nil, emailSender(emails), cfg.Server.BaseURL)

	if err := seedAdmin(ctx, repo, managed, &cfg.Auth); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e)
	setupRoutes(e, repo, managed, sessions, lc)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpired(sweepCtx, repo)

	return startWithGracefulShutdown(e, cfg)
}

// resetSender narrows the optional email service to the managed backend's
// dependency; a typed-nil wrapped in a non-nil interface would defeat the
// backend's nil check.
func resetSender(emails *email.Service) identity.ResetSender {
	if emails == nil {
		return nil
	}
	return emails
}

func emailSender(emails *email.Service) lifecycle.EmailSender {
	if emails == nil {
		return nil
	}
	return emails
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, managed *identity.Managed, sessions *session.Manager, lc *lifecycle.Service) {
	h := handlers.New(repo)
	auth := handlers.NewAuth(managed, sessions)
	setup := handlers.NewSetup(lc, repo)
	waitlist := handlers.NewWaitlist(repo)
	admin := handlers.NewAdmin(repo, lc, managed, sessions)

	e.GET("/health", h.Health)

	e.POST("/waitlist", waitlist.Submit)

	e.GET("/setup/validate", setup.Validate)
	e.POST("/setup/consume", setup.Consume)

	e.POST("/auth/login", auth.Login)
	e.POST("/auth/register", auth.Register)
	e.GET("/auth/me", auth.Me)
	e.POST("/auth/reset", auth.Reset)
	e.POST("/auth/logout", auth.Logout)

	g := e.Group("/admin", admin.RequireAdmin)
	g.GET("/waitlist", admin.ListWaitlist)
	g.POST("/waitlist/:id/approve", admin.Approve)
	g.POST("/waitlist/:id/reject", admin.Reject)
	g.POST("/waitlist/:id/resend", admin.Resend)
	g.DELETE("/accounts/:email", admin.Cleanup)
}

// seedAdmin creates the configured operator account if it does not exist
// yet. An existing account only gets its admin flag ensured; the password
// is never overwritten.
func seedAdmin(ctx context.Context, repo *repository.Repository, managed *identity.Managed, cfg *config.AuthConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	exists, err := repo.UserExists(ctx, cfg.AdminEmail)
	if err != nil {
		return err
	}
	if !exists {
		if cfg.AdminPassword == "" {
			return fmt.Errorf("admin-password is required to seed %s", cfg.AdminEmail)
		}
		if _, err := managed.Register(ctx,
			identity.Profile{FirstName: "Admin"},
			identity.Credential{Email: cfg.AdminEmail, Password: cfg.AdminPassword}); err != nil {
			return err
		}
		slog.Info("admin account created", "email", cfg.AdminEmail)
	}

	return repo.SetUserAdmin(ctx, cfg.AdminEmail, true)
}

// sweepExpired periodically drops expired backend sessions and magic links.
func sweepExpired(ctx context.Context, repo *repository.Repository) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.DeleteExpiredBackendSessions(ctx); err != nil {
				slog.Warn("session sweep failed", "error", err)
			}
			if err := repo.DeleteExpiredMagicLinks(ctx); err != nil {
				slog.Warn("magic link sweep failed", "error", err)
			}
		}
	}
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
