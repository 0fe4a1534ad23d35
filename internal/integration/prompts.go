package integration

import (
	"fmt"
	"strings"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
)

// PlantingSystemPrompt frames the model for planting date recommendations
const PlantingSystemPrompt = "You are a gardening expert. Respond only with JSON containing a planting_date in MM-DD format."

// ProfileSystemPrompt frames the model for plant profile generation
const ProfileSystemPrompt = "You are a professional botanist and gardening expert who provides accurate, structured plant information."

// LocationSystemPrompt frames the model for place lookups
const LocationSystemPrompt = "You are a geographer. Identify places precisely and never invent one that does not exist."

// PlantingDateAnswer is the structured answer expected from a recommender model
type PlantingDateAnswer struct {
	PlantingDate string `json:"planting_date" jsonschema_description:"Recommended planting day as MM-DD, without a year"`
}

// PlantingPrompt renders the user prompt for a planting date recommendation
func PlantingPrompt(req calendar.RecommendationRequest) string {
	var b strings.Builder
	where := place(req.City, req.Country)
	if req.City == "" && req.Country == "" && req.Latitude != nil && req.Longitude != nil {
		where = CoordinatesQuery(*req.Latitude, *req.Longitude)
	}
	fmt.Fprintf(&b, "Recommend the best day of the year to plant %s in %s.\n", req.PlantName, where)
	b.WriteString("Reference the Farmer's Almanac and the typical growing season and climate for the location.\n\n")
	fmt.Fprintf(&b, "Growing requirements:\n- Sun: %s\n- Water: %s\n", req.SunPreference, req.WateringPreference)

	if !req.Frost.IsZero() {
		b.WriteString("\nFrost dates")
		if req.Frost.Station != "" {
			fmt.Fprintf(&b, " (%s)", req.Frost.Station)
		}
		b.WriteString(":\n")
		if req.Frost.LastSpringFrost != "" {
			fmt.Fprintf(&b, "- Last spring frost: %s\n", req.Frost.LastSpringFrost)
		}
		if req.Frost.FirstFallFrost != "" {
			fmt.Fprintf(&b, "- First fall frost: %s\n", req.Frost.FirstFallFrost)
		}
	}

	b.WriteString("\nReturn only the month and day as MM-DD, no year and no other text.")
	return b.String()
}

// ProfilePrompt renders the prompt asking whether name is a real garden plant and, if so, for its profile
func ProfilePrompt(name string) string {
	return fmt.Sprintf(`Determine if the following input is the name of a real plant that can be grown in a garden.
If it is not, set exists to false and leave the other fields empty.
If it is, set exists to true and fill in:
- name: the common name of the plant
- sun_preference: one of %s
- watering_preference: one of %s
- general_information: 3-5 sentences in a brief, conversational tone covering spacing, soil, temperature tolerance, lifespan and good companion plants.

Input: %q`, strings.Join(entities.SunPreferences, ", "), strings.Join(entities.WateringPreferences, ", "), name)
}

// LocationPrompt renders the place lookup prompt. query is either "City, Country" or "coordinates LAT, LON".
func LocationPrompt(query string) string {
	return fmt.Sprintf(`Determine whether the following input identifies a real populated place.
If it does not, set exists to false and leave the other fields empty.
If it does, set exists to true and fill in the city (or nearest town), the country and the approximate latitude and longitude.

Input: %q`, query)
}

// CoordinatesQuery formats coordinates for LocationPrompt
func CoordinatesQuery(lat, lon float64) string {
	return fmt.Sprintf("coordinates %.4f, %.4f", lat, lon)
}

// ImagePrompt renders the image generation prompt for a plant
func ImagePrompt(name string) string {
	return fmt.Sprintf("A cartoon-style rendering of a single %s plant in the center of a completely blank white background. "+
		"Show its typical leaf shape, color and texture so it is recognizable, with clean natural details and nothing else in the image.", name)
}

func place(city, country string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	case country != "":
		return country
	}
	return "an unspecified location"
}
