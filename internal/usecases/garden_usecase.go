// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
	"github.com/abelzeko/garden-bot/internal/integration"
	"github.com/abelzeko/garden-bot/internal/integration/openai"
	"github.com/abelzeko/garden-bot/internal/repository"
)

var (
	// ErrLocationNotSet is returned when a user tries to plan before telling us where they garden
	ErrLocationNotSet = errors.New("location not set")
	// ErrUnknownPlant is returned when the profile generator does not recognise the name as a garden plant
	ErrUnknownPlant = errors.New("not a known garden plant")
	// ErrUnknownLocation is returned when a typed city and country do not name a real place
	ErrUnknownLocation = errors.New("not a known location")
)

// ProfileGenerator creates plant profiles and illustrations for names not in the catalogue
type ProfileGenerator interface {
	GeneratePlantProfile(ctx context.Context, plantName string) (*openai.ProfileResponse, error)
	GeneratePlantImage(ctx context.Context, plantName string) (string, error)
}

// Geocoder checks typed places and names shared coordinates
type Geocoder interface {
	LookupLocation(ctx context.Context, query string) (*openai.LocationResponse, error)
}

// DateResolver resolves a planting date for a plant at a location
type DateResolver interface {
	Resolve(ctx context.Context, profile entities.PlantProfile, loc entities.Location, now time.Time) (string, error)
}

// PlantAdded is delivered to subscribers after a calendar entry was stored
type PlantAdded struct {
	UserID string
	Entry  entities.CalendarEntry
}

// Reminder is a planting due today, addressed to the chat of its owner
type Reminder struct {
	ChatID  int64
	UserID  string
	Entry   entities.CalendarEntry
	Message string
}

// GardenUseCase handles business logic related to a user's planting calendar
type GardenUseCase struct {
	repo       repository.GardenRepository
	generator  ProfileGenerator
	geocoder   Geocoder
	resolver   DateResolver
	aggregator *calendar.Aggregator
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	listeners []func(PlantAdded)
}

// NewGardenUseCase creates a new garden use case. geocoder may be nil to store
// locations as given; now may be nil to use the wall clock.
func NewGardenUseCase(repo repository.GardenRepository, generator ProfileGenerator, geocoder Geocoder, resolver DateResolver,
	aggregator *calendar.Aggregator, logger *zap.Logger, now func() time.Time) *GardenUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if aggregator == nil {
		aggregator = calendar.NewAggregator(logger)
	}
	if now == nil {
		now = time.Now
	}
	return &GardenUseCase{
		repo:       repo,
		generator:  generator,
		geocoder:   geocoder,
		resolver:   resolver,
		aggregator: aggregator,
		logger:     logger,
		now:        now,
	}
}

// Subscribe registers fn to be called after every successful AddPlant
func (uc *GardenUseCase) Subscribe(fn func(PlantAdded)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.listeners = append(uc.listeners, fn)
}

func (uc *GardenUseCase) notify(ev PlantAdded) {
	uc.mu.RLock()
	listeners := append([]func(PlantAdded){}, uc.listeners...)
	uc.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Today returns the current calendar date as YYYY-MM-DD
func (uc *GardenUseCase) Today() string {
	return calendar.DateOf(uc.now()).String()
}

// SetLocation stores where a user gardens and which chat reaches them. A
// typed city and country are checked with the geocoder and gain coordinates;
// shared coordinates gain a city and country. A geocoder failure keeps the
// location as given.
func (uc *GardenUseCase) SetLocation(ctx context.Context, userID string, chatID int64, loc entities.Location) error {
	loc.City = strings.TrimSpace(loc.City)
	loc.Country = strings.TrimSpace(loc.Country)
	if loc.IsZero() {
		return errors.New("city, country or coordinates are required")
	}

	if uc.geocoder != nil {
		resolved, err := uc.geocode(ctx, loc)
		if err != nil {
			return err
		}
		loc = resolved
	}

	logger := uc.logger.With(zap.String("user_id", userID), zap.String("city", loc.City), zap.String("country", loc.Country))
	if loc.HasCoordinates() {
		logger = logger.With(zap.Float64("latitude", *loc.Latitude), zap.Float64("longitude", *loc.Longitude))
	}
	logger.Info("Updating user location")

	return uc.repo.SaveUser(entities.UserProfile{
		ID:        userID,
		ChatID:    chatID,
		Location:  loc,
		UpdatedAt: uc.now(),
	})
}

func (uc *GardenUseCase) geocode(ctx context.Context, loc entities.Location) (entities.Location, error) {
	typed := loc.City != "" || loc.Country != ""

	query := strings.Trim(loc.City+", "+loc.Country, ", ")
	if !typed {
		query = integration.CoordinatesQuery(*loc.Latitude, *loc.Longitude)
	}

	found, err := uc.geocoder.LookupLocation(ctx, query)
	if err != nil {
		uc.logger.Warn("Location lookup failed, storing location as given", zap.String("query", query), zap.Error(err))
		return loc, nil
	}
	if !found.Exists {
		if typed {
			return entities.Location{}, fmt.Errorf("%q: %w", query, ErrUnknownLocation)
		}
		return loc, nil
	}

	if found.City != "" {
		loc.City = found.City
	}
	if found.Country != "" {
		loc.Country = found.Country
	}
	if !loc.HasCoordinates() {
		lat, lon := found.Latitude, found.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	return loc, nil
}

// GetLocation returns the user's stored location or ErrLocationNotSet
func (uc *GardenUseCase) GetLocation(userID string) (entities.Location, error) {
	user, err := uc.repo.GetUser(userID)
	if errors.Is(err, repository.ErrNotFound) {
		return entities.Location{}, ErrLocationNotSet
	}
	if err != nil {
		return entities.Location{}, err
	}
	if user.Location.IsZero() {
		return entities.Location{}, ErrLocationNotSet
	}
	return user.Location, nil
}

// SearchPlants looks up catalogue plants whose name starts with term
func (uc *GardenUseCase) SearchPlants(term string) ([]entities.PlantProfile, error) {
	return uc.repo.SearchPlants(term)
}

// FindOrCreatePlant returns the catalogue plant matching name exactly, or
// generates and stores a new profile for it and then attaches an illustration.
func (uc *GardenUseCase) FindOrCreatePlant(ctx context.Context, userID, name string) (entities.PlantProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entities.PlantProfile{}, errors.New("plant name is required")
	}

	matches, err := uc.repo.SearchPlants(name)
	if err != nil {
		return entities.PlantProfile{}, err
	}
	for _, p := range matches {
		if p.NormalizedName == entities.NormalizeName(name) {
			uc.logger.Debug("Found plant in catalogue", zap.String("plant_id", p.ID))
			return p, nil
		}
	}

	uc.logger.Info("Generating plant profile", zap.String("query", name))
	generated, err := uc.generator.GeneratePlantProfile(ctx, name)
	if err != nil {
		return entities.PlantProfile{}, fmt.Errorf("failed to generate plant profile: %w", err)
	}
	if !generated.Exists || strings.TrimSpace(generated.Name) == "" {
		return entities.PlantProfile{}, fmt.Errorf("%q: %w", name, ErrUnknownPlant)
	}

	// The generator may return a canonical name that is already catalogued.
	if existing, err := uc.repo.GetPlant(entities.PlantIDFromName(generated.Name)); err == nil {
		return existing, nil
	}

	now := uc.now()
	profile := entities.PlantProfile{
		ID:                 entities.PlantIDFromName(generated.Name),
		DisplayName:        strings.TrimSpace(generated.Name),
		NormalizedName:     entities.NormalizeName(generated.Name),
		SunPreference:      generated.SunPreference,
		WateringPreference: generated.WateringPreference,
		GeneralInformation: generated.GeneralInformation,
		UserQuery:          name,
		CreatedBy:          userID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if strings.Trim(profile.ID, "-") == "" {
		profile.ID = uuid.NewString()
	}

	if err := uc.repo.SavePlant(profile); err != nil {
		return entities.PlantProfile{}, err
	}

	imageURL, err := uc.generator.GeneratePlantImage(ctx, profile.DisplayName)
	if err != nil {
		uc.logger.Warn("Plant image generation failed, keeping profile without image",
			zap.String("plant_id", profile.ID), zap.Error(err))
		return profile, nil
	}
	if err := uc.repo.AttachPlantImage(profile.ID, imageURL); err != nil {
		uc.logger.Warn("Failed to attach plant image", zap.String("plant_id", profile.ID), zap.Error(err))
		return profile, nil
	}
	profile.ImageURL = imageURL
	return profile, nil
}

// AddPlant resolves a planting date for the named plant at the user's
// location and stores it in the user's calendar. Nothing is stored when the
// date cannot be resolved.
func (uc *GardenUseCase) AddPlant(ctx context.Context, userID, name string) (entities.CalendarEntry, error) {
	loc, err := uc.GetLocation(userID)
	if err != nil {
		return entities.CalendarEntry{}, err
	}

	plant, err := uc.FindOrCreatePlant(ctx, userID, name)
	if err != nil {
		return entities.CalendarEntry{}, err
	}

	date, err := uc.resolver.Resolve(ctx, plant, loc, uc.now())
	if err != nil {
		uc.logger.Warn("Planting date resolution failed",
			zap.String("user_id", userID), zap.String("plant_id", plant.ID), zap.Error(err))
		return entities.CalendarEntry{}, err
	}

	entry := entities.CalendarEntry{
		ID:        plant.ID,
		Date:      date,
		Plant:     plant,
		Title:     entities.EntryTitle(plant),
		CreatedAt: uc.now(),
	}
	if err := uc.repo.UpsertEntry(userID, entry); err != nil {
		return entities.CalendarEntry{}, err
	}

	uc.logger.Info("Added plant to calendar",
		zap.String("user_id", userID), zap.String("plant_id", plant.ID), zap.String("date", date))
	uc.notify(PlantAdded{UserID: userID, Entry: entry})
	return entry, nil
}

// RemovePlant deletes a plant's entry from the user's calendar
func (uc *GardenUseCase) RemovePlant(userID, plantID string) error {
	plantID = strings.TrimSpace(plantID)
	if err := uc.repo.DeleteEntry(userID, plantID); err != nil {
		return err
	}
	uc.logger.Info("Removed plant from calendar", zap.String("user_id", userID), zap.String("plant_id", plantID))
	return nil
}

// Garden returns every calendar entry of the user sorted by date. Entries
// with malformed dates are left out.
func (uc *GardenUseCase) Garden(userID string) ([]entities.CalendarEntry, error) {
	entries, err := uc.repo.ListEntries(userID)
	if err != nil {
		return nil, err
	}

	type dated struct {
		date  calendar.Date
		entry entities.CalendarEntry
	}
	var valid []dated
	for _, e := range entries {
		d, err := calendar.ParseDate(e.Date)
		if err != nil {
			uc.logger.Warn("Skipping calendar entry with malformed stored date",
				zap.String("entry_id", e.ID), zap.String("date", e.Date))
			continue
		}
		valid = append(valid, dated{d, e})
	}
	slices.SortStableFunc(valid, func(a, b dated) int { return a.date.Compare(b.date) })

	out := make([]entities.CalendarEntry, 0, len(valid))
	for _, v := range valid {
		out = append(out, v.entry)
	}
	return out, nil
}

// MonthView reads the user's whole calendar and computes the view of one
// month. selected may be empty; it defaults to today.
func (uc *GardenUseCase) MonthView(userID string, year int, month time.Month, selected string) (calendar.MonthView, error) {
	entries, err := uc.repo.ListEntries(userID)
	if err != nil {
		return calendar.MonthView{}, err
	}
	today := uc.Today()
	if selected == "" {
		selected = today
	}
	return uc.aggregator.MonthView(entries, year, month, selected, today), nil
}

// DuePlantings returns a reminder for every entry scheduled on day
func (uc *GardenUseCase) DuePlantings(day calendar.Date) ([]Reminder, error) {
	due, err := uc.repo.EntriesOn(day.String())
	if err != nil {
		return nil, err
	}

	reminders := make([]Reminder, 0, len(due))
	for _, d := range due {
		reminders = append(reminders, Reminder{
			ChatID:  d.ChatID,
			UserID:  d.UserID,
			Entry:   d.Entry,
			Message: fmt.Sprintf("🌱 Time to plant your %s!", d.Entry.Plant.DisplayName),
		})
	}
	uc.logger.Info("Collected due plantings", zap.String("date", day.String()), zap.Int("count", len(reminders)))
	return reminders, nil
}
