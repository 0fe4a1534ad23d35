// Package integration handles external service interactions
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
)

// DefaultFrostURL is the almanac page queried when no source URL is configured
const DefaultFrostURL = "https://www.almanac.com/gardening/frostdates"

// frostCacheTTL bounds how long a fetched frost table is reused
const frostCacheTTL = 24 * time.Hour

type cachedFrost struct {
	dates     calendar.FrostDates
	fetchedAt time.Time
}

// FrostScraper reads last and first frost dates for a location from an almanac HTML page
type FrostScraper struct {
	sourceURL string
	client    *http.Client
	logger    *zap.Logger

	mutex sync.RWMutex
	cache map[string]cachedFrost
}

// NewFrostScraper creates a new frost date scraper
func NewFrostScraper(sourceURL string, logger *zap.Logger) *FrostScraper {
	if sourceURL == "" {
		sourceURL = DefaultFrostURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrostScraper{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
		cache:     make(map[string]cachedFrost),
	}
}

// FrostDates returns the frost table for loc, fetching it when the cached copy is missing or stale
func (fs *FrostScraper) FrostDates(ctx context.Context, loc entities.Location) (calendar.FrostDates, error) {
	pageURL, err := fs.pageURL(loc)
	if err != nil {
		return calendar.FrostDates{}, err
	}

	fs.mutex.RLock()
	cached, ok := fs.cache[pageURL]
	fs.mutex.RUnlock()
	if ok && time.Since(cached.fetchedAt) < frostCacheTTL {
		fs.logger.Debug("Using cached frost dates", zap.String("url", pageURL),
			zap.Time("fetched_at", cached.fetchedAt))
		return cached.dates, nil
	}

	dates, err := fs.fetch(ctx, pageURL, loc)
	if err != nil {
		return calendar.FrostDates{}, err
	}

	fs.mutex.Lock()
	fs.cache[pageURL] = cachedFrost{dates: dates, fetchedAt: time.Now()}
	fs.mutex.Unlock()
	return dates, nil
}

func (fs *FrostScraper) fetch(ctx context.Context, pageURL string, loc entities.Location) (calendar.FrostDates, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return calendar.FrostDates{}, fmt.Errorf("failed to build frost request: %w", err)
	}

	fs.logger.Debug("Fetching frost dates", zap.String("url", pageURL))
	res, err := fs.client.Do(req)
	if err != nil {
		return calendar.FrostDates{}, fmt.Errorf("failed to fetch frost dates: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return calendar.FrostDates{}, fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return calendar.FrostDates{}, fmt.Errorf("failed to parse frost page: %w", err)
	}

	dates := fs.ExtractFrostDates(doc)
	if dates.IsZero() {
		return calendar.FrostDates{}, fmt.Errorf("no frost dates found for %s, %s", loc.City, loc.Country)
	}

	fs.logger.Info("Fetched frost dates",
		zap.String("city", loc.City),
		zap.String("station", dates.Station),
		zap.String("last_spring_frost", dates.LastSpringFrost),
		zap.String("first_fall_frost", dates.FirstFallFrost))
	return dates, nil
}

func (fs *FrostScraper) pageURL(loc entities.Location) (string, error) {
	u, err := url.Parse(fs.sourceURL)
	if err != nil {
		return "", fmt.Errorf("invalid frost source url %q: %w", fs.sourceURL, err)
	}
	q := u.Query()
	if loc.City != "" {
		q.Set("city", loc.City)
	}
	if loc.Country != "" {
		q.Set("country", loc.Country)
	}
	if loc.HasCoordinates() {
		q.Set("lat", strconv.FormatFloat(*loc.Latitude, 'f', 4, 64))
		q.Set("lon", strconv.FormatFloat(*loc.Longitude, 'f', 4, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractFrostDates reads label/value rows from the frost table. Labels are
// matched case-insensitively so minor wording changes on the page survive.
func (fs *FrostScraper) ExtractFrostDates(doc *goquery.Document) calendar.FrostDates {
	var dates calendar.FrostDates

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		value := strings.Join(strings.Fields(cells.Eq(1).Text()), " ")
		if value == "" {
			return
		}

		switch {
		case strings.Contains(label, "last") && strings.Contains(label, "frost"):
			dates.LastSpringFrost = value
		case strings.Contains(label, "first") && strings.Contains(label, "frost"):
			dates.FirstFallFrost = value
		case strings.Contains(label, "station"):
			dates.Station = value
		}
	})

	if dates.Station == "" {
		for _, selector := range []string{"table caption", "h2.station", "h2"} {
			if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
				dates.Station = text
				break
			}
		}
	}

	return dates
}
