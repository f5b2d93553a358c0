package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/medicalrecord"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/payment"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/midtrans"
)

// apptSourceAdapter adapts the appointment service to the
// medicalrecord.AppointmentSource interface, avoiding a dependency between
// the two domain packages.
type apptSourceAdapter struct {
	svc *appointment.Service
}

func (a *apptSourceAdapter) Lookup(ctx context.Context, id int64) (int64, int64, error) {
	appt, err := a.svc.Get(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return appt.PatientID, appt.DoctorID, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Multi-branch clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(branchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to every branch database",
		RunE: func(cmd *cobra.Command, args []string) error {
			only, _ := cmd.Flags().GetString("branch")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			branches, err := cfg.Branches()
			if err != nil {
				return err
			}

			ctx := context.Background()
			for name, url := range branches {
				if only != "" && name != only {
					continue
				}
				pool, err := db.NewPool(ctx, url, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return fmt.Errorf("connect branch %q: %w", name, err)
				}
				count, err := db.NewMigrator(pool, dir).Up(ctx)
				pool.Close()
				if err != nil {
					return fmt.Errorf("migrate branch %q: %w", name, err)
				}
				fmt.Printf("branch %s: applied %d migration(s)\n", name, count)
			}
			return nil
		},
	}
	upCmd.Flags().String("branch", "", "Migrate only this branch")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status per branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			branches, err := cfg.Branches()
			if err != nil {
				return err
			}

			ctx := context.Background()
			for name, url := range branches {
				pool, err := db.NewPool(ctx, url, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return fmt.Errorf("connect branch %q: %w", name, err)
				}
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				pool.Close()
				if err != nil {
					return fmt.Errorf("status for branch %q: %w", name, err)
				}

				fmt.Printf("branch: %s\n", name)
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				fmt.Println()
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func branchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Manage clinic branches",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Prepare a database for a new branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			url, _ := cmd.Flags().GetString("database-url")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" || url == "" {
				return fmt.Errorf("--name and --database-url are required")
			}
			if !db.ValidBranchName(name) {
				return fmt.Errorf("invalid branch name %q", name)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, url, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect branch database: %w", err)
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migrate branch %q: %w", name, err)
			}
			fmt.Printf("branch %s ready, applied %d migration(s)\n", name, count)
			fmt.Printf("add it to the server config: BRANCH_DATABASES=%s=%s\n", name, url)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Branch identifier (lowercase alphanumeric)")
	createCmd.Flags().String("database-url", "", "PostgreSQL URL for the branch database")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			branches, err := cfg.Branches()
			if err != nil {
				return err
			}
			for name := range branches {
				marker := ""
				if name == cfg.DefaultBranch {
					marker = " (default)"
				}
				fmt.Printf("%s%s\n", name, marker)
			}
			return nil
		},
	}

	cmd.AddCommand(createCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func runServer() error {
	// Config
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Pretty logs in development, JSON everywhere else
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Branch databases
	ctx := context.Background()
	branches, err := cfg.Branches()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse branch databases")
	}
	provider, err := db.NewProvider(ctx, branches, cfg.DefaultBranch, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open branch databases")
	}
	defer provider.Close()
	logger.Info().Strs("branches", provider.Branches()).Msg("connected to branch databases")

	// Payment gateway client
	gateway := midtrans.NewClient(
		cfg.MidtransBaseURL,
		cfg.MidtransSnapURL,
		cfg.MidtransServerKey,
		time.Duration(cfg.GatewayTimeoutSec)*time.Second,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Branch"},
	}))

	// Public routes skip auth entirely: login, and the gateway notification
	// callback which authenticates by signature.
	public := e.Group("/api/v1")
	public.Use(db.BranchMiddleware(provider))

	// Authenticated API
	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware(cfg.SecretKey, cfg.DefaultBranch))
	} else {
		api.Use(auth.JWTMiddleware(cfg.SecretKey))
	}
	api.Use(db.BranchMiddleware(provider))

	// Domain wiring
	tokenTTL := time.Duration(cfg.TokenTTLMinutes) * time.Minute

	staffSvc := staff.NewService(staff.NewRepoPG(), cfg.SecretKey, tokenTTL)
	patientSvc := patient.NewService(patient.NewRepoPG())
	apptSvc := appointment.NewService(appointment.NewRepoPG(), patientSvc, staffSvc)
	recordSvc := medicalrecord.NewService(medicalrecord.NewRepoPG(), &apptSourceAdapter{svc: apptSvc})
	paymentSvc := payment.NewService(
		payment.NewRepoPG(),
		apptSvc,
		gateway,
		payment.NewSignatureVerifier(cfg.MidtransServerKey),
		logger,
	)

	staff.NewHandler(staffSvc).RegisterRoutes(api, public)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(api)
	payment.NewHandler(paymentSvc).RegisterRoutes(api, public)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
