package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	app_errors "docdash/internal/errors"
	"docdash/internal/llm"
)

const (
	keySystemPrompt = "system_prompt"
	keyMainModel    = "main_model"
)

// Settings holds the runtime settings persisted in the settings table.
type Settings struct {
	SystemPrompt string `json:"system_prompt"`
	MainModel    string `json:"main_model" validate:"required"`
}

type SettingsService struct {
	db  *sql.DB
	llm llm.LLMProvider
}

func NewSettingsService(db *sql.DB, llmProvider llm.LLMProvider) *SettingsService {
	return &SettingsService{db: db, llm: llmProvider}
}

// InitAndGet returns the stored settings, seeding them on first start. When
// no default model is configured the provider's first listed model is used.
func (s *SettingsService) InitAndGet(ctx context.Context, defaultPrompt, defaultModel string) (*Settings, error) {
	settings, err := s.Get(ctx)
	if err == nil {
		slog.Info("Found existing settings.")
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	slog.Info("No settings found. Performing initialization...")
	if defaultModel == "" {
		defaultModel = s.discoverModel(ctx)
	}
	settings = &Settings{SystemPrompt: defaultPrompt, MainModel: defaultModel}
	if err := s.save(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save initial settings: %w", err)
	}
	return settings, nil
}

// Get reads the settings. It returns sql.ErrNoRows when none are stored, and
// fills in a main model if the stored one is empty.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := &Settings{}
	found := false
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		found = true
		switch key {
		case keySystemPrompt:
			settings.SystemPrompt = value
		case keyMainModel:
			settings.MainModel = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !found {
		return nil, sql.ErrNoRows
	}

	if settings.MainModel == "" {
		if discovered := s.discoverModel(ctx); discovered != "" {
			settings.MainModel = discovered
			if err := s.save(ctx, settings); err != nil {
				return nil, fmt.Errorf("failed to save discovered model: %w", err)
			}
		}
	}
	return settings, nil
}

// Save validates the main model against the provider before storing.
func (s *SettingsService) Save(ctx context.Context, settings *Settings) error {
	available, err := s.llm.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not list models: %w", app_errors.ErrUpstream, err)
	}
	names := make([]string, len(available.Models))
	for i, m := range available.Models {
		names[i] = m.Name
	}
	if !slices.Contains(names, settings.MainModel) {
		return fmt.Errorf("%w: main model '%s' is not available", app_errors.ErrValidation, settings.MainModel)
	}
	return s.save(ctx, settings)
}

func (s *SettingsService) discoverModel(ctx context.Context) string {
	models, err := s.llm.ListModels(ctx)
	if err != nil {
		slog.Warn("Could not list models to pick a default.", "provider", s.llm.Name(), "error", err)
		return ""
	}
	if len(models.Models) == 0 {
		slog.Warn("Provider has no models to pick a default from.", "provider", s.llm.Name())
		return ""
	}
	slog.Info("Selected default model.", "model", models.Models[0].Name)
	return models.Models[0].Name
}

func (s *SettingsService) save(ctx context.Context, settings *Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, kv := range [][2]string{
		{keyMainModel, settings.MainModel},
		{keySystemPrompt, settings.SystemPrompt},
	} {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("could not save setting %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}
