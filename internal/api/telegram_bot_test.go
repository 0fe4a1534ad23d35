package api

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/entities"
	"github.com/abelzeko/garden-bot/internal/integration/openai"
	"github.com/abelzeko/garden-bot/internal/repository"
	"github.com/abelzeko/garden-bot/internal/usecases"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

// lastMessage returns the most recent text message sent
func (f *fakeSender) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg
		}
	}
	t.Fatal("no text message was sent")
	return tgbotapi.MessageConfig{}
}

type stubGenerator struct {
	exists bool
}

func (s stubGenerator) GeneratePlantProfile(_ context.Context, name string) (*openai.ProfileResponse, error) {
	return &openai.ProfileResponse{
		Exists:             s.exists,
		Name:               name,
		SunPreference:      entities.SunFull,
		WateringPreference: entities.WaterKeepMoist,
		GeneralInformation: "Loves warm soil.",
	}, nil
}

func (stubGenerator) GeneratePlantImage(context.Context, string) (string, error) {
	return "https://images.example/plant.png", nil
}

type stubResolver struct {
	date string
	err  error
}

func (s stubResolver) Resolve(context.Context, entities.PlantProfile, entities.Location, time.Time) (string, error) {
	return s.date, s.err
}

type stubGeocoder struct {
	found openai.LocationResponse
}

func (s stubGeocoder) LookupLocation(context.Context, string) (*openai.LocationResponse, error) {
	found := s.found
	return &found, nil
}

func newTestBot(t *testing.T, gen stubGenerator, res stubResolver) (*TelegramBot, *fakeSender) {
	t.Helper()
	bot, sender, _ := newGeocodingTestBot(t, gen, res, nil)
	return bot, sender
}

func newGeocodingTestBot(t *testing.T, gen stubGenerator, res stubResolver, geo usecases.Geocoder) (*TelegramBot, *fakeSender, *usecases.GardenUseCase) {
	t.Helper()
	repo, err := repository.NewSQLiteGardenRepository(filepath.Join(t.TempDir(), "bot.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	now := func() time.Time { return time.Date(2025, time.January, 10, 8, 0, 0, 0, time.UTC) }
	uc := usecases.NewGardenUseCase(repo, gen, geo, res, nil, nil, now)

	sender := &fakeSender{}
	return NewTelegramBotWithSender(sender, uc, nil, time.Second), sender, uc
}

func command(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "gardener"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func text(chatID int64, s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: s,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "gardener"},
	}}
}

func send(t *testing.T, bot *TelegramBot, sender *fakeSender, update tgbotapi.Update) tgbotapi.MessageConfig {
	t.Helper()
	bot.HandleUpdate(context.Background(), update)
	return sender.lastMessage(t)
}

func TestStartAndHelp(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{})

	assert.Contains(t, send(t, bot, sender, command(1, "/start")).Text, "Welcome to Garden Bot")
	assert.Contains(t, send(t, bot, sender, command(1, "/help")).Text, "/month [YYYY-MM] [DD]")
	assert.Contains(t, send(t, bot, sender, command(1, "/weather")).Text, "Unknown command")
}

func TestPlantRequiresLocation(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{date: "2025-03-15"})

	msg := send(t, bot, sender, command(1, "/plant Tomato"))
	assert.Contains(t, msg.Text, "set your location first")
	assert.Equal(t, int64(1), msg.ChatID)
}

func TestLocationAndPlant(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{date: "2025-03-15"})

	assert.Contains(t, send(t, bot, sender, command(1, "/location")).Text, "Please specify your location")
	assert.Contains(t, send(t, bot, sender, command(1, "/location Belgrade, Serbia")).Text, "Location set to Belgrade, Serbia")
	assert.Contains(t, send(t, bot, sender, command(1, "/location")).Text, "Your location is Belgrade, Serbia")

	msg := send(t, bot, sender, command(1, "/plant Tomato"))
	assert.Contains(t, msg.Text, "Tomato added to your calendar for 2025-03-15")
	assert.Contains(t, msg.Text, "/month 2025-03")

	var photos int
	for _, c := range sender.sent {
		if photo, ok := c.(tgbotapi.PhotoConfig); ok {
			photos++
			assert.Equal(t, "Tomato", photo.Caption)
		}
	}
	assert.Equal(t, 1, photos)

	garden := send(t, bot, sender, command(1, "/garden")).Text
	assert.Contains(t, garden, "2025-03-15 - Tomato (id: tomato)")

	assert.Contains(t, send(t, bot, sender, command(1, "/remove tomato")).Text, "Removed 'tomato'")
	assert.Contains(t, send(t, bot, sender, command(1, "/remove tomato")).Text, "No plant 'tomato'")
	assert.Contains(t, send(t, bot, sender, command(1, "/garden")).Text, "Your garden is empty")
}

func TestSharedLocation(t *testing.T) {
	geo := stubGeocoder{found: openai.LocationResponse{
		Exists: true, City: "Belgrade", Country: "Serbia", Latitude: 44.8, Longitude: 20.5,
	}}
	bot, sender, uc := newGeocodingTestBot(t, stubGenerator{exists: true}, stubResolver{}, geo)

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		From:     &tgbotapi.User{ID: 7, UserName: "gardener"},
		Location: &tgbotapi.Location{Latitude: 44.8125, Longitude: 20.4612},
	}}
	msg := send(t, bot, sender, update)
	assert.Contains(t, msg.Text, "Location set to Belgrade, Serbia")
	assert.Equal(t, int64(7), msg.ChatID)

	loc, err := uc.GetLocation("7")
	require.NoError(t, err)
	require.True(t, loc.HasCoordinates())
	assert.InDelta(t, 44.8125, *loc.Latitude, 1e-9)
	assert.InDelta(t, 20.4612, *loc.Longitude, 1e-9)
}

func TestSharedLocationWithoutGeocoder(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{})

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		From:     &tgbotapi.User{ID: 7, UserName: "gardener"},
		Location: &tgbotapi.Location{Latitude: 44.8125, Longitude: 20.4612},
	}}
	assert.Contains(t, send(t, bot, sender, update).Text, "Location set to 44.8125, 20.4612")
	assert.Contains(t, send(t, bot, sender, command(7, "/location")).Text, "44.8125, 20.4612")
}

func TestLocationUnknownPlace(t *testing.T) {
	bot, sender, uc := newGeocodingTestBot(t, stubGenerator{exists: true}, stubResolver{}, stubGeocoder{})

	msg := send(t, bot, sender, command(1, "/location Atlantis"))
	assert.Contains(t, msg.Text, "I couldn't find 'Atlantis'")

	_, err := uc.GetLocation("1")
	assert.ErrorIs(t, err, usecases.ErrLocationNotSet)
}

func TestPlantShowsResolutionFailureReason(t *testing.T) {
	failure := fmt.Errorf("%w: %q is not MM-DD", calendar.ErrInvalidRecommendation, "March 15")
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{err: failure})
	send(t, bot, sender, command(1, "/location Belgrade, Serbia"))

	msg := send(t, bot, sender, command(1, "/plant Tomato"))
	assert.Contains(t, msg.Text, "Couldn't determine a planting date for Tomato")
	assert.Contains(t, msg.Text, `"March 15" is not MM-DD`)
}

func TestPlantUnknown(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: false}, stubResolver{date: "2025-03-15"})
	send(t, bot, sender, command(1, "/location Belgrade"))

	assert.Contains(t, send(t, bot, sender, command(1, "/plant Dragon")).Text, "couldn't find a garden plant called 'Dragon'")
	assert.Contains(t, send(t, bot, sender, command(1, "/plant")).Text, "Please specify a plant name")
}

func TestMonthCommand(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{date: "2025-03-15"})
	send(t, bot, sender, command(1, "/location Belgrade, Serbia"))
	send(t, bot, sender, command(1, "/plant Tomato"))

	msg := send(t, bot, sender, command(1, "/month 2025-03 15"))
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "March 2025")
	assert.Contains(t, msg.Text, "[15]")
	assert.Contains(t, msg.Text, "Mar 15: Tomato")
	assert.Contains(t, msg.Text, "Plant Tomato (tomato)")

	current := send(t, bot, sender, command(1, "/month"))
	assert.Contains(t, current.Text, "January 2025")
	assert.Contains(t, current.Text, "[10]")
	assert.Contains(t, current.Text, "No plantings scheduled this month.")

	assert.Contains(t, send(t, bot, sender, command(1, "/month 2025-02 30")).Text, "Invalid arguments")
}

func TestNonCommandSuggestsPlants(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{exists: true}, stubResolver{date: "2025-03-15"})

	assert.Contains(t, send(t, bot, sender, text(1, "tom")).Text, "I don't understand. Use /help")

	send(t, bot, sender, command(1, "/location Belgrade, Serbia"))
	send(t, bot, sender, command(1, "/plant Tomato"))

	msg := send(t, bot, sender, text(1, "tom"))
	assert.Contains(t, msg.Text, "I know these plants")
	assert.Contains(t, msg.Text, "• Tomato")
}

func TestNotify(t *testing.T) {
	bot, sender := newTestBot(t, stubGenerator{}, stubResolver{})

	require.NoError(t, bot.Notify(context.Background(), 7, "🌱 Time to plant your Tomato!"))
	msg := sender.lastMessage(t)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Equal(t, "🌱 Time to plant your Tomato!", msg.Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bot.Notify(ctx, 7, "late"), context.Canceled)

	sender.err = fmt.Errorf("forbidden: bot was blocked by the user")
	assert.Error(t, bot.Notify(context.Background(), 7, "hello"))
}
