package calendar

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/entities"
)

var (
	// ErrInvalidRecommendation is returned when the recommender answers with something other than a real MM-DD day
	ErrInvalidRecommendation = errors.New("invalid planting date recommendation")
	// ErrRecommendationUnavailable wraps any failure of the recommender call itself
	ErrRecommendationUnavailable = errors.New("planting date recommendation unavailable")

	monthDayPattern = regexp.MustCompile(`^(\d{2})-(\d{2})$`)
)

// leapSearchLimit bounds the walk forward for 02-29; a leap day is never more than eight years away
const leapSearchLimit = 8

// FrostDates is the frost context for a location, as free text from the source
type FrostDates struct {
	LastSpringFrost string
	FirstFallFrost  string
	Station         string
}

// IsZero reports whether no frost information is present
func (f FrostDates) IsZero() bool {
	return f.LastSpringFrost == "" && f.FirstFallFrost == ""
}

// RecommendationRequest is everything a recommender is told about a plant and where it grows
type RecommendationRequest struct {
	PlantName          string
	SunPreference      string
	WateringPreference string
	City               string
	Country            string
	Latitude           *float64
	Longitude          *float64
	Frost              FrostDates
}

// Recommender suggests a season-relative planting day as an MM-DD string
type Recommender interface {
	RecommendPlantingDate(ctx context.Context, req RecommendationRequest) (string, error)
}

// FrostSource looks up frost dates for a location
type FrostSource interface {
	FrostDates(ctx context.Context, loc entities.Location) (FrostDates, error)
}

// PlantingDateResolver turns a recommendation into the next concrete planting date
type PlantingDateResolver struct {
	recommender Recommender
	frost       FrostSource
	logger      *zap.Logger
}

// NewPlantingDateResolver creates a resolver. frost may be nil.
func NewPlantingDateResolver(recommender Recommender, frost FrostSource, logger *zap.Logger) *PlantingDateResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlantingDateResolver{
		recommender: recommender,
		frost:       frost,
		logger:      logger,
	}
}

// Resolve asks the recommender once and returns the next occurrence of the
// recommended month/day as YYYY-MM-DD. A recommendation for today or any
// earlier day this year rolls over to next year.
func (r *PlantingDateResolver) Resolve(ctx context.Context, profile entities.PlantProfile, loc entities.Location, now time.Time) (string, error) {
	req := RecommendationRequest{
		PlantName:          profile.DisplayName,
		SunPreference:      profile.SunPreference,
		WateringPreference: profile.WateringPreference,
		City:               loc.City,
		Country:            loc.Country,
		Latitude:           loc.Latitude,
		Longitude:          loc.Longitude,
	}

	if r.frost != nil {
		frost, err := r.frost.FrostDates(ctx, loc)
		if err != nil {
			r.logger.Warn("Frost dates unavailable, recommending without them",
				zap.String("city", loc.City), zap.String("country", loc.Country), zap.Error(err))
		} else {
			req.Frost = frost
		}
	}

	raw, err := r.recommender.RecommendPlantingDate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecommendationUnavailable, err)
	}

	month, day, err := ParseMonthDay(raw)
	if err != nil {
		return "", err
	}

	date := NextOccurrence(month, day, now)
	r.logger.Debug("Resolved planting date",
		zap.String("plant", profile.DisplayName),
		zap.String("recommendation", raw),
		zap.String("date", date.String()))
	return date.String(), nil
}

// ParseMonthDay validates an MM-DD recommendation taken verbatim. The day
// must exist in the month; February accepts 29.
func ParseMonthDay(s string) (time.Month, int, error) {
	m := monthDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q is not MM-DD", ErrInvalidRecommendation, s)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])

	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %02d out of range", ErrInvalidRecommendation, month)
	}
	// 2000 is a leap year, so this admits 02-29 and nothing else that rolls over.
	if day < 1 || day > DaysIn(2000, time.Month(month)) {
		return 0, 0, fmt.Errorf("%w: %q is not a day of the month", ErrInvalidRecommendation, s)
	}
	return time.Month(month), day, nil
}

// NextOccurrence returns the first date strictly after now's calendar day
// with the given month and day.
func NextOccurrence(month time.Month, day int, now time.Time) Date {
	today := DateOf(now)
	for year := today.Year; year <= today.Year+leapSearchLimit; year++ {
		if day > DaysIn(year, month) {
			continue
		}
		candidate := Date{Year: year, Month: month, Day: day}
		if candidate.After(today) {
			return candidate
		}
	}
	// Unreachable for inputs accepted by ParseMonthDay.
	return Date{Year: today.Year + 1, Month: month, Day: day}
}
