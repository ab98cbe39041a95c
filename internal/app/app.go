package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docdash/internal/api"
	"docdash/internal/config"
	"docdash/internal/database"
	"docdash/internal/llm"
	"docdash/internal/repository"
	"docdash/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired server and the resources it owns.
type App struct {
	DB     *sql.DB
	Server *http.Server
}

// Run is the server entry point. It returns the process exit code.
func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to start application", "error", err)
		return 1
	}
	defer app.Close()

	if err := app.Serve(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		return 1
	}
	slog.Info("Server stopped.")
	return 0
}

// NewApp opens the database, builds the provider and services and returns
// an App ready to Serve.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:      cfg.LLMProvider,
		DefaultModel:  cfg.DefaultModel,
		OllamaURL:     cfg.OllamaURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	if provider.Name() == llm.ProviderOllama {
		waitForOllama(ctx, cfg.OllamaURL)
	}

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	repo := repository.NewSQLiteRepository(db)
	settingsService := service.NewSettingsService(db, provider)

	appSettings, err := settingsService.InitAndGet(ctx, cfg.InitialSystemPrompt, cfg.DefaultModel)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize application settings: %w", err)
	}
	slog.Info("Loaded application settings", "provider", provider.Name(), "main_model", appSettings.MainModel)

	chatService := service.NewChatService(repo, provider, settingsService)
	modelService := service.NewModelService(provider)

	chatHandler := api.NewChatHandler(chatService, settingsService, api.WithKeepAlive(cfg.StreamKeepAlive))
	modelHandler := api.NewModelHandler(modelService)
	router := api.NewRouter(chatHandler, modelHandler, cfg.AllowedOrigins())

	return &App{
		DB: db,
		Server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.AppPort),
			Handler:           router,
			ReadHeaderTimeout: 20 * time.Second,
			WriteTimeout:      0, // Disabled for streaming endpoints
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully, letting in-flight replies finish within shutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the database.
func (a *App) Close() {
	if err := a.DB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}

func logConfigSource(cfg *config.Config) {
	if cfg.ConfigFile != "" {
		slog.Info("Successfully loaded configuration from file.", "file", cfg.ConfigFile)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})))
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to INFO.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// waitForOllama blocks until Ollama answers or ctx ends. Startup carries on
// either way; replies fail with a provider error until it is reachable.
func waitForOllama(ctx context.Context, ollamaURL string) {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			slog.Warn("Invalid Ollama URL, not waiting", "url", ollamaURL, "error", err)
			return
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("Ollama is ready.")
				return
			}
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)

		select {
		case <-ctx.Done():
			slog.Warn("Stopped waiting for Ollama", "error", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}
