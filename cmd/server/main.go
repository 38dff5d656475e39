package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/yukikurage/maintenance-tracker/internal/config"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
	"github.com/yukikurage/maintenance-tracker/internal/database"
	"github.com/yukikurage/maintenance-tracker/internal/handlers"
	"github.com/yukikurage/maintenance-tracker/internal/logger"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"github.com/yukikurage/maintenance-tracker/internal/repository"
	"github.com/yukikurage/maintenance-tracker/internal/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tracker",
		Short:        "Maintenance task tracker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe()
			},
		},
		newExportCmd(),
		newWipeCmd(),
	)
	return root
}

// app holds the wired services shared by every command
type app struct {
	cfg      *config.Config
	services handlers.Services
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel, cfg.LogFile)

	if err := database.Connect(cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	osFs := afero.NewOsFs()
	store, err := media.NewStore(osFs, cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open media directory: %w", err)
	}

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	svc := handlers.Services{
		Auth:           services.NewAuthService(userRepo),
		Tasks:          services.NewTaskService(taskRepo, store),
		Users:          services.NewUserService(userRepo, cfg.BootstrapAdmin),
		Reports:        services.NewReportService(taskRepo, store),
		Admin:          services.NewAdminService(store, osFs, cfg.SQLitePath()),
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	}

	if _, err := svc.Users.EnsureBootstrapAdmin(cfg.BootstrapPasswd); err != nil {
		return nil, fmt.Errorf("failed to seed admin: %w", err)
	}

	return &app{cfg: cfg, services: svc}, nil
}

func runServe() error {
	a, err := setup()
	if err != nil {
		logrus.WithError(err).Error("startup failed")
		return err
	}
	defer database.Close()

	cfg := a.cfg
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(logger.GinLogger(), gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store, err := sessionStore(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to create session store")
		return err
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: 2, // Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Maintenance tracker is running",
		})
	})

	handlers.RegisterRoutes(r, a.services)

	logrus.WithField("port", cfg.Port).Info("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logrus.WithError(err).Error("server stopped")
		return err
	}
	return nil
}

// sessionStore uses redis when REDIS_HOST is set and signed cookies otherwise
func sessionStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.RedisHost == "" {
		return cookie.NewStore([]byte(cfg.SessionSecret)), nil
	}

	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	return redisStore.NewStore(
		10,        // pool size
		"tcp",     // network type
		redisAddr, // address
		"",        // username
		"",        // password
		[]byte(cfg.SessionSecret),
	)
}

// systemSession acts as an admin for maintenance commands run on the host
var systemSession = services.Session{Username: "system", Role: models.RoleAdmin}

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the full backup archive to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			_, archive, err := a.services.Reports.BuildReport(context.Background())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, archive, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			logrus.WithField("file", out).Info("backup written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", constants.BackupFileName, "destination file")
	return cmd
}

func newWipeCmd() *cobra.Command {
	var confirm string

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every task and media file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer database.Close()

			return a.services.Tasks.WipeAll(systemSession, confirm)
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", fmt.Sprintf("type %q to confirm", constants.WipeConfirmationPhrase))
	return cmd
}
