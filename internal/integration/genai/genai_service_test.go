package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/garden-bot/internal/calendar"
)

func mockGeminiServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
			}},
		})
	}))
}

func TestNewRecommenderRequiresKey(t *testing.T) {
	_, err := NewRecommender(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestRecommendPlantingDate(t *testing.T) {
	server := mockGeminiServer(t, `{"planting_date": "04-20"}`)
	defer server.Close()

	rec, err := NewRecommender(context.Background(), Config{APIKey: "test-key", BaseURL: server.URL + "/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "genai:"+DefaultModel, rec.Name())

	got, err := rec.RecommendPlantingDate(context.Background(), calendar.RecommendationRequest{PlantName: "Basil"})
	require.NoError(t, err)
	assert.Equal(t, "04-20", got)
}

func TestRecommendPlantingDateRejectsProse(t *testing.T) {
	server := mockGeminiServer(t, "Plant basil in late April.")
	defer server.Close()

	rec, err := NewRecommender(context.Background(), Config{APIKey: "test-key", BaseURL: server.URL + "/"}, nil)
	require.NoError(t, err)

	_, err = rec.RecommendPlantingDate(context.Background(), calendar.RecommendationRequest{PlantName: "Basil"})
	assert.Error(t, err)
}
