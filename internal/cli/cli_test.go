package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOpenAI answers profile requests with a tomato profile and planting
// date requests with plantingDate.
func mockOpenAI(t *testing.T, plantingDate string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		if strings.HasSuffix(r.URL.Path, "/images/generations") {
			json.NewEncoder(w).Encode(map[string]any{
				"created": 1700000000,
				"data":    []map[string]any{{"url": "https://images.example/tomato.png"}},
			})
			return
		}

		content := `{"exists":true,"name":"Tomato","sun_preference":"Full Sun","watering_preference":"Keep Soil Moist","general_information":"Warm soil."}`
		if strings.Contains(string(body), `"name":"planting_date"`) {
			content = fmt.Sprintf(`{"planting_date":%q}`, plantingDate)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GARDEN_RECOMMENDER", "openai")
	t.Setenv("GARDEN_DB_PATH", filepath.Join(dir, "garden.db"))
	t.Setenv("GARDEN_FROST_URL", "")
	t.Setenv("GARDEN_TIMEZONE", "UTC")

	path := filepath.Join(dir, "garden.yaml")
	cfg := fmt.Sprintf(`
openai:
  api_key: test-key
  base_url: %s/
logging:
  level: error
`, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	server := mockOpenAI(t, "03-15")
	path := writeConfig(t, server.URL)

	out, err := run(t, "resolve", "tomato", "--city", "Belgrade", "--country", "Serbia", "--config", path)
	require.NoError(t, err)

	now := time.Now().UTC()
	year := now.Year()
	if !now.Before(time.Date(year, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		year++
	}
	assert.Equal(t, fmt.Sprintf("Tomato: %d-03-15\n", year), out)
}

func TestResolveCommandInvalidRecommendation(t *testing.T) {
	server := mockOpenAI(t, "02-30")
	path := writeConfig(t, server.URL)

	_, err := run(t, "resolve", "tomato", "--city", "Belgrade", "--config", path)
	assert.ErrorContains(t, err, "02-30")
}

func TestResolveCommandRequiresLocation(t *testing.T) {
	server := mockOpenAI(t, "03-15")
	path := writeConfig(t, server.URL)

	_, err := run(t, "resolve", "tomato", "--config", path)
	assert.ErrorContains(t, err, "--city or --country is required")
}

func TestMonthCommand(t *testing.T) {
	server := mockOpenAI(t, "03-15")
	path := writeConfig(t, server.URL)

	out, err := run(t, "month", "2025-03", "--user", "42", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "March 2025\nNo plantings scheduled this month.\n", out)

	_, err = run(t, "month", "March", "--user", "42", "--config", path)
	assert.ErrorContains(t, err, "month must look like 2025-03")

	_, err = run(t, "month", "2025-03", "--config", path)
	assert.Error(t, err)
}

func TestBotCommandRequiresToken(t *testing.T) {
	server := mockOpenAI(t, "03-15")
	path := writeConfig(t, server.URL)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := run(t, "bot", "--config", path)
	assert.ErrorContains(t, err, "TELEGRAM_BOT_TOKEN")

	_, err = run(t, "reminder", "--once", "--config", path)
	assert.ErrorContains(t, err, "TELEGRAM_BOT_TOKEN")
}
