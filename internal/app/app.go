// Package app wires configuration into the repository, integrations and use cases
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/config"
	"github.com/abelzeko/garden-bot/internal/integration"
	"github.com/abelzeko/garden-bot/internal/integration/genai"
	"github.com/abelzeko/garden-bot/internal/integration/openai"
	"github.com/abelzeko/garden-bot/internal/repository"
	"github.com/abelzeko/garden-bot/internal/usecases"
)

// App holds the long-lived components shared by the bot, the reminder job and the CLI
type App struct {
	Config     config.Config
	Repo       *repository.SQLiteGardenRepository
	Resolver   *calendar.PlantingDateResolver
	Aggregator *calendar.Aggregator
	UseCase    *usecases.GardenUseCase
	Location   *time.Location
}

// New builds the application from cfg. Close must be called to release the database.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	openAIService, err := openai.NewOpenAIService(openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		ImageModel: cfg.OpenAI.ImageModel,
		BaseURL:    cfg.OpenAI.BaseURL,
		MaxRetries: 2,
	}, logger.Named("openai"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI service: %w", err)
	}

	recommender, err := newRecommender(ctx, cfg, openAIService, logger)
	if err != nil {
		return nil, err
	}

	var frost calendar.FrostSource
	if cfg.Frost.Enabled {
		frost = integration.NewFrostScraper(cfg.Frost.URL, logger.Named("frost"))
	}

	repo, err := repository.NewSQLiteGardenRepository(cfg.Database.Path, logger.Named("repository"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	resolver := calendar.NewPlantingDateResolver(recommender, frost, logger.Named("resolver"))
	aggregator := calendar.NewAggregator(logger.Named("aggregator"))
	clock := func() time.Time { return time.Now().In(loc) }

	return &App{
		Config:     cfg,
		Repo:       repo,
		Resolver:   resolver,
		Aggregator: aggregator,
		UseCase:    usecases.NewGardenUseCase(repo, openAIService, openAIService, resolver, aggregator, logger.Named("usecase"), clock),
		Location:   loc,
	}, nil
}

func newRecommender(ctx context.Context, cfg config.Config, openAIService openai.OpenAIService, logger *zap.Logger) (calendar.Recommender, error) {
	switch cfg.Recommender.Provider {
	case config.ProviderGenAI:
		rec, err := genai.NewRecommender(ctx, genai.Config{
			APIKey:  cfg.GenAI.APIKey,
			Model:   cfg.GenAI.Model,
			BaseURL: cfg.GenAI.BaseURL,
		}, logger.Named("genai"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini recommender: %w", err)
		}
		logger.Info("Using Gemini planting date recommender", zap.String("recommender", rec.Name()))
		return rec, nil
	default:
		logger.Info("Using OpenAI planting date recommender")
		return openAIService, nil
	}
}

// Close releases the database
func (a *App) Close() error {
	return a.Repo.Close()
}
