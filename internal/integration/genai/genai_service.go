// Package genai recommends planting dates with Google's Gemini models.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/integration"
)

// DefaultModel is used when no Gemini model is configured
const DefaultModel = "gemini-2.0-flash"

// Config holds Gemini client settings
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Recommender implements calendar.Recommender on top of the Gemini API
type Recommender struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var plantingDateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"planting_date": {
			Type:        genai.TypeString,
			Description: "Recommended planting day as MM-DD, without a year",
		},
	},
	Required: []string{"planting_date"},
}

// NewRecommender creates a Gemini-backed recommender
func NewRecommender(ctx context.Context, cfg Config, logger *zap.Logger) (*Recommender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Recommender{client: client, model: cfg.Model, logger: logger}, nil
}

// RecommendPlantingDate asks Gemini for an MM-DD planting day
func (r *Recommender) RecommendPlantingDate(ctx context.Context, req calendar.RecommendationRequest) (string, error) {
	result, err := r.client.Models.GenerateContent(ctx, r.model,
		genai.Text(integration.PlantingPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(integration.PlantingSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    plantingDateSchema,
			Temperature:       genai.Ptr[float32](0.7),
		})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("received empty response from GenAI")
	}

	var answer integration.PlantingDateAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		r.logger.Error("Failed to unmarshal GenAI response", zap.Error(err), zap.String("raw", text))
		return "", fmt.Errorf("error unmarshalling GenAI response: %w", err)
	}

	r.logger.Debug("GenAI planting date recommendation",
		zap.String("plant", req.PlantName), zap.String("planting_date", answer.PlantingDate))
	return strings.TrimSpace(answer.PlantingDate), nil
}

// Name returns the recommender name for logs
func (r *Recommender) Name() string {
	return fmt.Sprintf("genai:%s", r.model)
}
