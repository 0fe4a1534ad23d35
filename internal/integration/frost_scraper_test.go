package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
)

const frostHTML = `
<!DOCTYPE html>
<html>
<body>
  <h2 class="station">BELGRADE OBSERVATORY</h2>
  <table>
    <tr><th>Last Spring Frost</th><td> Apr 10 </td></tr>
    <tr><th>First Fall Frost</th><td>Oct
      25</td></tr>
    <tr><th>Growing Season</th><td>197 days</td></tr>
  </table>
</body>
</html>`

// mockHTMLServer creates a test server that serves a fixed HTML response and records the last query
func mockHTMLServer(html string, status int, lastQuery *string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lastQuery != nil {
			*lastQuery = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		io.WriteString(w, html)
	}))
}

func TestFrostDatesWithMock(t *testing.T) {
	var query string
	server := mockHTMLServer(frostHTML, http.StatusOK, &query)
	defer server.Close()

	lat, lon := 44.8125, 20.4612
	scraper := NewFrostScraper(server.URL, nil)
	dates, err := scraper.FrostDates(context.Background(), entities.Location{
		City: "Belgrade", Country: "Serbia", Latitude: &lat, Longitude: &lon,
	})
	require.NoError(t, err)

	assert.Equal(t, calendar.FrostDates{
		LastSpringFrost: "Apr 10",
		FirstFallFrost:  "Oct 25",
		Station:         "BELGRADE OBSERVATORY",
	}, dates)
	assert.Contains(t, query, "city=Belgrade")
	assert.Contains(t, query, "country=Serbia")
	assert.Contains(t, query, "lat=44.8125")
}

func TestFrostDatesCachedPerLocation(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		io.WriteString(w, frostHTML)
	}))
	defer server.Close()

	scraper := NewFrostScraper(server.URL, nil)
	belgrade := entities.Location{City: "Belgrade", Country: "Serbia"}

	for i := 0; i < 3; i++ {
		dates, err := scraper.FrostDates(context.Background(), belgrade)
		require.NoError(t, err)
		assert.Equal(t, "Apr 10", dates.LastSpringFrost)
	}
	assert.Equal(t, 1, hits)

	_, err := scraper.FrostDates(context.Background(), entities.Location{City: "Nis", Country: "Serbia"})
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestFrostDatesNoTable(t *testing.T) {
	server := mockHTMLServer("<html><body><p>Location not found</p></body></html>", http.StatusOK, nil)
	defer server.Close()

	_, err := NewFrostScraper(server.URL, nil).FrostDates(context.Background(), entities.Location{City: "Nowhere"})
	assert.Error(t, err)
}

func TestFrostDatesBadStatus(t *testing.T) {
	server := mockHTMLServer("oops", http.StatusBadGateway, nil)
	defer server.Close()

	_, err := NewFrostScraper(server.URL, nil).FrostDates(context.Background(), entities.Location{City: "Belgrade"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestExtractFrostDatesStationRow(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
<table>
  <caption>ignored caption</caption>
  <tr><td>Nearest station</td><td>NOVI SAD</td></tr>
  <tr><td>Last frost (50%)</td><td>Apr 2</td></tr>
</table>`))
	require.NoError(t, err)

	dates := NewFrostScraper("", nil).ExtractFrostDates(doc)
	assert.Equal(t, "NOVI SAD", dates.Station)
	assert.Equal(t, "Apr 2", dates.LastSpringFrost)
	assert.Empty(t, dates.FirstFallFrost)
}

func TestPlantingPrompt(t *testing.T) {
	req := calendar.RecommendationRequest{
		PlantName:          "Tomato",
		SunPreference:      entities.SunFull,
		WateringPreference: entities.WaterKeepMoist,
		City:               "Belgrade",
		Country:            "Serbia",
	}

	prompt := PlantingPrompt(req)
	assert.Contains(t, prompt, "Tomato in Belgrade, Serbia")
	assert.Contains(t, prompt, "Sun: Full Sun")
	assert.NotContains(t, prompt, "Frost dates")

	req.Frost = calendar.FrostDates{LastSpringFrost: "Apr 10", Station: "BELGRADE"}
	prompt = PlantingPrompt(req)
	assert.Contains(t, prompt, "Frost dates (BELGRADE)")
	assert.Contains(t, prompt, "Last spring frost: Apr 10")
	assert.NotContains(t, prompt, "First fall frost")
}

func TestFrostScraperDefaultsSourceURL(t *testing.T) {
	assert.Equal(t, DefaultFrostURL, NewFrostScraper("", nil).sourceURL)
	assert.Equal(t, "http://frost.local", NewFrostScraper("http://frost.local", nil).sourceURL)
}

func TestPlantingPromptUsesCoordinates(t *testing.T) {
	lat, lon := 44.8125, 20.4612
	prompt := PlantingPrompt(calendar.RecommendationRequest{PlantName: "Tomato", Latitude: &lat, Longitude: &lon})
	assert.Contains(t, prompt, "Tomato in coordinates 44.8125, 20.4612")
}

func TestProfilePromptListsChoices(t *testing.T) {
	prompt := ProfilePrompt("Basil")
	for _, s := range entities.SunPreferences {
		assert.Contains(t, prompt, s)
	}
	assert.Contains(t, prompt, `"Basil"`)
}
