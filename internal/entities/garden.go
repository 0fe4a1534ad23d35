// Package entities contains the core domain objects for the garden-bot application
package entities

import (
	"strings"
	"time"
)

// Sun preferences a plant profile may carry
const (
	SunFull      = "Full Sun"
	SunPartial   = "Partial Sun"
	ShadePartial = "Partial Shade"
	ShadeFull    = "Full Shade"
	SunDappled   = "Dappled Sunlight"
)

// Watering preferences a plant profile may carry
const (
	WaterKeepMoist       = "Keep Soil Moist"
	WaterDroughtTolerant = "Drought-Tolerant"
	WaterHighNeeds       = "High Water Needs"
	WaterWhenDry         = "Water When Dry"
	WaterSparingly       = "Water Sparingly"
)

// SunPreferences lists every accepted sun preference in display order
var SunPreferences = []string{SunFull, SunPartial, ShadePartial, ShadeFull, SunDappled}

// WateringPreferences lists every accepted watering preference in display order
var WateringPreferences = []string{WaterKeepMoist, WaterDroughtTolerant, WaterHighNeeds, WaterWhenDry, WaterSparingly}

// PlantProfile describes a plant's care needs. It is created once and only
// ever gains an ImageURL afterwards.
type PlantProfile struct {
	ID                 string    `json:"id"`
	DisplayName        string    `json:"displayName"`        // Common name returned by the generator
	NormalizedName     string    `json:"normalizedName"`     // Lower-cased DisplayName used for search
	SunPreference      string    `json:"sunPreference"`      // One of SunPreferences
	WateringPreference string    `json:"wateringPreference"` // One of WateringPreferences
	GeneralInformation string    `json:"generalInformation"` // Free-form care notes
	ImageURL           string    `json:"imageUrl"`           // Possibly empty
	UserQuery          string    `json:"userQuery"`          // Name the user originally typed
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Location is the place a user gardens in. Coordinates are optional.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
}

// HasCoordinates reports whether both latitude and longitude are known
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsZero reports whether neither a place name nor coordinates are known
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.City) == "" && strings.TrimSpace(l.Country) == "" && !l.HasCoordinates()
}

// CalendarEntry is a persisted planting event, keyed by plant id within a user's calendar
type CalendarEntry struct {
	ID        string       `json:"id"`
	Date      string       `json:"date"` // YYYY-MM-DD
	Plant     PlantProfile `json:"plant"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"createdAt"`
}

// UserProfile ties a Telegram user to a chat and a gardening location
type UserProfile struct {
	ID        string
	ChatID    int64
	Location  Location
	UpdatedAt time.Time
}

// PlantIDFromName builds the document id for a plant name: lower-cased with
// every character outside [a-z0-9] replaced by a dash.
func PlantIDFromName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// NormalizeName returns the search key for a plant name
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EntryTitle is the calendar title shown for a plant's planting event
func EntryTitle(p PlantProfile) string {
	return "Plant " + p.DisplayName
}
