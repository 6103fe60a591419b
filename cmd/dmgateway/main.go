package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/spf13/cobra"

	"github.com/neomorfeo/dmgateway/internal/adapter/custodian"
	"github.com/neomorfeo/dmgateway/internal/adapter/fsm"
	"github.com/neomorfeo/dmgateway/internal/adapter/graph"
	"github.com/neomorfeo/dmgateway/internal/adapter/mdm"
	telemetry "github.com/neomorfeo/dmgateway/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/dmgateway/internal/adapter/river"
	"github.com/neomorfeo/dmgateway/internal/adapter/sqlite"
	"github.com/neomorfeo/dmgateway/internal/adapter/storage"
	"github.com/neomorfeo/dmgateway/internal/app"
	"github.com/neomorfeo/dmgateway/internal/config"
	"github.com/neomorfeo/dmgateway/internal/domain"

	handler "github.com/neomorfeo/dmgateway/internal/adapter/http"
)

const (
	serviceName    = "dmgateway"
	serviceVersion = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Document-management provisioning gateway",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: ./config.yaml if present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the folder job tracker",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		checkNameCmd(),
		cacheKeyCmd(),
	)
	return root
}

func checkNameCmd() *cobra.Command {
	var root bool

	cmd := &cobra.Command{
		Use:   "check-name NAME",
		Short: "Check a site or folder name against the directory naming rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			violations := domain.SharePointNames.Violations(args[0], root)
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return fmt.Errorf("%q breaks %d naming rule(s)", args[0], len(violations))
		},
	}
	cmd.Flags().BoolVar(&root, "root", false, "Also apply the names reserved at the library root")
	return cmd
}

func cacheKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-key PARENT_FOLDER_ID FOLDER_NAME",
		Short: "Print the folder job cache key for a parent folder and name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parent folder id: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), domain.CacheKey(parent, args[1]))
			return nil
		},
	}
}

// run starts the gateway and blocks until SIGINT or SIGTERM.
func run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogRedact))

	// --- OpenTelemetry ---
	providers, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv(cfg.Environment))
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := telemetry.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()
	jobs := telemetry.NewTracingLedger(repo)

	directory, err := graph.New(graph.Config{
		BaseURL:      cfg.Graph.BaseURL,
		TokenURL:     cfg.Graph.TokenURL,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Scopes:       cfg.Graph.Scopes,
		Hostname:     cfg.Graph.Hostname,
		Timeout:      cfg.HTTPTimeout,
		MaxRedirects: cfg.HTTPMaxRedirects,
		MaxRetries:   cfg.Graph.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("directory client: %w", err)
	}

	custodianClient, err := custodian.New(custodian.Config{
		BaseURL:      cfg.Custodian.BaseURL,
		APIKey:       cfg.Custodian.APIKey,
		TemplateID:   cfg.Custodian.TemplateID,
		Timeout:      cfg.HTTPTimeout,
		MaxRedirects: cfg.HTTPMaxRedirects,
		MaxRetries:   cfg.Custodian.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("provisioning client: %w", err)
	}
	provisioning := telemetry.NewTracingProvisioning(custodianClient)

	numbering, err := mdm.New(mdm.Config{
		BaseURL:      cfg.MDM.BaseURL,
		APIKey:       cfg.MDM.APIKey,
		Timeout:      cfg.HTTPTimeout,
		MaxRedirects: cfg.HTTPMaxRedirects,
	})
	if err != nil {
		return fmt.Errorf("numbering client: %w", err)
	}

	bucket, err := storage.New(ctx, storage.Config{
		Bucket:    cfg.Storage.Bucket,
		Prefix:    cfg.Storage.Prefix,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Timeout:   cfg.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	ids, err := domain.NewIDFormatValidator(cfg.Environment)
	if err != nil {
		return err
	}

	// --- River (background tracking) ---
	validator := fsm.New()
	worker := riveradapter.NewFolderJobWorker(provisioning, jobs, validator, cfg.Tracking.PollInterval, cfg.Tracking.Deadline)
	riverClient, err := riveradapter.Setup(ctx, repo.DB(), worker, cfg.Tracking.Workers)
	if err != nil {
		return fmt.Errorf("river setup: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Error("river stop", "error", err)
		}
	}()
	tracker := telemetry.NewTracingTracker(riveradapter.NewTracker(riverClient))

	// --- Application ---
	dir := telemetry.NewTracingDirectory(directory)
	lists := app.Lists{
		TfisSite:          cfg.Lists.TfisSite,
		CaseSitesList:     cfg.Lists.CaseSitesList,
		MarketTermsList:   cfg.Lists.MarketTermsList,
		FacilityTermsList: cfg.Lists.FacilityTermsList,
		CaseLibrary:       cfg.Lists.CaseLibrary,
	}
	provisioner := app.NewFolderProvisioner(provisioning, jobs, tracker, validator, cfg.Custodian.SubmitTimeout)
	services := handler.Services{
		Sites:     app.NewSiteService(dir, numbering, ids, lists, cfg.MDM.Requester),
		Folders:   app.NewFolderService(dir, provisioner, jobs, lists, cfg.DocumentTypes),
		Terms:     app.NewTermService(dir, lists),
		Documents: app.NewDocumentService(dir, bucket, lists, cfg.DocumentTypes, cfg.Storage.MaxFileSize),
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(serviceName, serviceVersion))
	handler.Register(api, services, handler.Options{APIKey: cfg.APIKey, IDs: ids})
	handler.RegisterOpenAPI(router, api)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dmgateway listening", "port", cfg.Port, "environment", cfg.Environment)
		slog.Info("API docs", "url", fmt.Sprintf("http://localhost:%d/docs", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}

	slog.Info("stopped")
	return nil
}

// secretKeys are attribute names masked when redaction is on.
var secretKeys = []string{"apikey", "clientsecret", "token", "secretkey", "authorization", "password"}

func newLogger(level slog.Level, redact bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if redact {
		opts.ReplaceAttr = redactSecrets
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(a.Key))
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}
