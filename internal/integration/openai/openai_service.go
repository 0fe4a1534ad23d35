package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/integration"
)

// ProfileResponse defines the structured output of the plant profile generator.
type ProfileResponse struct {
	Exists             bool   `json:"exists" jsonschema_description:"Whether the input names a real plant that can be grown in a garden"`
	Name               string `json:"name" jsonschema_description:"Common name of the plant"`
	SunPreference      string `json:"sun_preference" jsonschema_description:"One of Full Sun, Partial Sun, Partial Shade, Full Shade, Dappled Sunlight"`
	WateringPreference string `json:"watering_preference" jsonschema_description:"One of Keep Soil Moist, Drought-Tolerant, High Water Needs, Water When Dry, Water Sparingly"`
	GeneralInformation string `json:"general_information" jsonschema_description:"Three to five conversational sentences of care information"`
}

// LocationResponse defines the structured output of the location lookup.
type LocationResponse struct {
	Exists    bool    `json:"exists" jsonschema_description:"Whether the input identifies a real populated place"`
	City      string  `json:"city" jsonschema_description:"City or nearest town, in English"`
	Country   string  `json:"country" jsonschema_description:"Country, in English"`
	Latitude  float64 `json:"latitude" jsonschema_description:"Approximate latitude of the place in decimal degrees"`
	Longitude float64 `json:"longitude" jsonschema_description:"Approximate longitude of the place in decimal degrees"`
}

// Config holds OpenAI client settings.
type Config struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string // Overrides the API endpoint, mainly for tests
	MaxRetries int
}

// OpenAIService defines the interface for the OpenAI-backed gardening agent.
type OpenAIService interface {
	calendar.Recommender
	GeneratePlantProfile(ctx context.Context, plantName string) (*ProfileResponse, error)
	GeneratePlantImage(ctx context.Context, plantName string) (string, error)
	LookupLocation(ctx context.Context, query string) (*LocationResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client        openai.Client
	model         string
	imageModel    string
	dateSchema    interface{}
	profileSchema interface{}
	placeSchema   interface{}
	logger        *zap.Logger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(cfg Config, logger *zap.Logger) (OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4o)
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = string(openai.ImageModelDallE3)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openAIServiceImpl{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		imageModel:    cfg.ImageModel,
		dateSchema:    GenerateSchema[integration.PlantingDateAnswer](),
		profileSchema: GenerateSchema[ProfileResponse](),
		placeSchema:   GenerateSchema[LocationResponse](),
		logger:        logger,
	}, nil
}

// RecommendPlantingDate asks the model once for an MM-DD planting day. The
// trimmed answer is returned unvalidated; validating it is the resolver's job.
func (s *openAIServiceImpl) RecommendPlantingDate(ctx context.Context, req calendar.RecommendationRequest) (string, error) {
	var answer integration.PlantingDateAnswer
	err := s.complete(ctx, integration.PlantingSystemPrompt, integration.PlantingPrompt(req),
		"planting_date", "Recommended planting day as MM-DD", s.dateSchema, &answer, option.WithMaxRetries(0))
	if err != nil {
		return "", err
	}

	s.logger.Debug("OpenAI planting date recommendation",
		zap.String("plant", req.PlantName), zap.String("planting_date", answer.PlantingDate))
	return strings.TrimSpace(answer.PlantingDate), nil
}

// GeneratePlantProfile checks that plantName is a real garden plant and returns its care profile.
func (s *openAIServiceImpl) GeneratePlantProfile(ctx context.Context, plantName string) (*ProfileResponse, error) {
	var profile ProfileResponse
	err := s.complete(ctx, integration.ProfileSystemPrompt, integration.ProfilePrompt(plantName),
		"plant_profile", "Structured plant profile with existence flag", s.profileSchema, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// LookupLocation resolves a typed place or a pair of coordinates to a city, country and coordinates.
func (s *openAIServiceImpl) LookupLocation(ctx context.Context, query string) (*LocationResponse, error) {
	var loc LocationResponse
	err := s.complete(ctx, integration.LocationSystemPrompt, integration.LocationPrompt(query),
		"location", "Geocoded place with existence flag", s.placeSchema, &loc)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// GeneratePlantImage renders a plant illustration and returns its URL.
func (s *openAIServiceImpl) GeneratePlantImage(ctx context.Context, plantName string) (string, error) {
	resp, err := s.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: integration.ImagePrompt(plantName),
		Model:  openai.ImageModel(s.imageModel),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return "", fmt.Errorf("error calling OpenAI images API: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("received no image from OpenAI")
	}
	return resp.Data[0].URL, nil
}

// complete runs a chat completion constrained to schema and decodes the JSON answer into out.
func (s *openAIServiceImpl) complete(ctx context.Context, systemPrompt, userPrompt, name, description string, schema interface{}, out interface{}, opts ...option.RequestOption) error {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModel(s.model),
		Temperature:    openai.Float(0.7),
	}, opts...)
	if err != nil {
		return fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return errors.New("received empty response from OpenAI")
	}

	content := chat.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		s.logger.Error("Failed to unmarshal OpenAI response", zap.Error(err), zap.String("raw", content))
		return fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	return nil
}
