// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/config"
	"github.com/abelzeko/garden-bot/internal/entities"
	"github.com/abelzeko/garden-bot/internal/repository"
	"github.com/abelzeko/garden-bot/internal/usecases"
)

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/location City, Country - Set where you garden (or share your location)\n" +
	"/plant [name] - Add a plant to your planting calendar\n" +
	"/month [YYYY-MM] [DD] - Show a month of your calendar\n" +
	"/garden - List all your plantings\n" +
	"/remove [id] - Remove a plant from your calendar\n" +
	"/help - Show this help message"

// MessageSender is the part of the Telegram client used to reply
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot            *tgbotapi.BotAPI
	sender         MessageSender
	useCase        *usecases.GardenUseCase
	logger         *zap.Logger
	updateTimeout  int
	requestTimeout time.Duration
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(cfg config.Config, useCase *usecases.GardenUseCase, logger *zap.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	t := NewTelegramBotWithSender(bot, useCase, logger, cfg.RequestTimeout())
	t.bot = bot
	t.updateTimeout = cfg.Telegram.UpdateTimeout
	return t, nil
}

// NewTelegramBotWithSender creates a bot that replies through sender without polling Telegram itself
func NewTelegramBotWithSender(sender MessageSender, useCase *usecases.GardenUseCase, logger *zap.Logger, requestTimeout time.Duration) *TelegramBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = 45 * time.Second
	}
	return &TelegramBot{
		sender:         sender,
		useCase:        useCase,
		logger:         logger,
		updateTimeout:  60,
		requestTimeout: requestTimeout,
	}
}

// Start listens for Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("Authorized on Telegram account", zap.String("username", t.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Bot is now listening for messages")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			t.HandleUpdate(ctx, update)
		}
	}
}

// Notify sends a plain text message to a chat
func (t *TelegramBot) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// HandleUpdate processes a single Telegram message update
func (t *TelegramBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	logger := t.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.Int64("chat_id", message.Chat.ID),
		zap.String("user_id", userID(message)),
	)
	logger.Info("Received message", zap.String("text", message.Text))

	ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	msg := tgbotapi.NewMessage(message.Chat.ID, "")
	switch {
	case message.Location != nil:
		t.handleSharedLocation(ctx, logger, message, &msg)
	case message.IsCommand():
		t.handleCommand(ctx, logger, message, &msg)
	default:
		t.handleNonCommand(logger, message, &msg)
	}

	if _, err := t.sender.Send(msg); err != nil {
		logger.Error("Error sending message", zap.Error(err))
	}
}

func userID(message *tgbotapi.Message) string {
	if message.From != nil {
		return strconv.FormatInt(message.From.ID, 10)
	}
	return strconv.FormatInt(message.Chat.ID, 10)
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	args := strings.TrimSpace(message.CommandArguments())
	logger = logger.With(zap.String("command", message.Command()))
	logger.Debug("Handling command", zap.String("args", args))

	switch message.Command() {
	case "start":
		msg.Text = "Welcome to Garden Bot! Tell me where you garden with /location Belgrade, Serbia " +
			"or by sharing your location, then add plants with /plant Tomato. Use /help for more information."

	case "help":
		msg.Text = helpText

	case "location":
		t.handleLocationCommand(ctx, logger, message, args, msg)

	case "plant":
		t.handlePlantCommand(ctx, logger, message, args, msg)

	case "month":
		t.handleMonthCommand(logger, message, args, msg)

	case "garden":
		entries, err := t.useCase.Garden(userID(message))
		if err != nil {
			logger.Error("Error fetching garden", zap.Error(err))
			msg.Text = "Error fetching your garden. Please try again later."
			return
		}
		msg.Text = FormatGarden(entries)

	case "remove":
		t.handleRemoveCommand(logger, message, args, msg)

	default:
		logger.Info("Received unknown command")
		msg.Text = "Unknown command. Use /help to see available commands."
	}
}

func (t *TelegramBot) handleLocationCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, args string, msg *tgbotapi.MessageConfig) {
	if args == "" {
		loc, err := t.useCase.GetLocation(userID(message))
		if err != nil {
			msg.Text = "Please specify your location. Example: /location Belgrade, Serbia\nYou can also share your location from the attachment menu."
			return
		}
		msg.Text = fmt.Sprintf("📍 Your location is %s. Change it with /location City, Country", describeLocation(loc))
		return
	}

	t.saveLocation(ctx, logger, message, parseLocation(args), msg)
}

// handleSharedLocation stores a location sent from the Telegram attachment menu
func (t *TelegramBot) handleSharedLocation(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	lat, lon := message.Location.Latitude, message.Location.Longitude
	logger.Info("Received shared location", zap.Float64("latitude", lat), zap.Float64("longitude", lon))
	t.saveLocation(ctx, logger, message, entities.Location{Latitude: &lat, Longitude: &lon}, msg)
}

func (t *TelegramBot) saveLocation(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, loc entities.Location, msg *tgbotapi.MessageConfig) {
	if err := t.useCase.SetLocation(ctx, userID(message), message.Chat.ID, loc); err != nil {
		if errors.Is(err, usecases.ErrUnknownLocation) {
			msg.Text = fmt.Sprintf("I couldn't find '%s'. Please check the spelling. Example: /location Belgrade, Serbia", formatPlace(loc.City, loc.Country))
			return
		}
		logger.Error("Error saving location", zap.Error(err))
		msg.Text = "Error saving your location. Please try again later."
		return
	}

	saved, err := t.useCase.GetLocation(userID(message))
	if err != nil {
		logger.Error("Error reading saved location", zap.Error(err))
		saved = loc
	}
	msg.Text = fmt.Sprintf("📍 Location set to %s. Now add plants with /plant Tomato", describeLocation(saved))
}

// describeLocation names a location by place when known, otherwise by coordinates
func describeLocation(loc entities.Location) string {
	if place := formatPlace(loc.City, loc.Country); place != "" {
		return place
	}
	if loc.HasCoordinates() {
		return fmt.Sprintf("%.4f, %.4f", *loc.Latitude, *loc.Longitude)
	}
	return "an unknown place"
}

func formatPlace(city, country string) string {
	if city != "" && country != "" {
		return city + ", " + country
	}
	return city + country
}

// handlePlantCommand processes the /plant [name] command
func (t *TelegramBot) handlePlantCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message, name string, msg *tgbotapi.MessageConfig) {
	if name == "" {
		msg.Text = "Please specify a plant name. Example: /plant Tomato"
		return
	}

	if _, err := t.sender.Send(tgbotapi.NewChatAction(message.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		logger.Debug("Failed to send typing action", zap.Error(err))
	}

	entry, err := t.useCase.AddPlant(ctx, userID(message), name)
	switch {
	case errors.Is(err, usecases.ErrLocationNotSet):
		msg.Text = "Please set your location first. Example: /location Belgrade, Serbia"
		return
	case errors.Is(err, usecases.ErrUnknownPlant):
		msg.Text = fmt.Sprintf("I couldn't find a garden plant called '%s'.", name)
		return
	case errors.Is(err, calendar.ErrInvalidRecommendation), errors.Is(err, calendar.ErrRecommendationUnavailable):
		msg.Text = fmt.Sprintf("Couldn't determine a planting date for %s: %v", name, err)
		return
	case err != nil:
		logger.Error("Error adding plant", zap.Error(err))
		msg.Text = "Error adding plant. Please try again later."
		return
	}

	if entry.Plant.ImageURL != "" {
		photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileURL(entry.Plant.ImageURL))
		photo.Caption = entry.Plant.DisplayName
		if _, err := t.sender.Send(photo); err != nil {
			logger.Warn("Failed to send plant image", zap.Error(err))
		}
	}
	msg.Text = FormatPlantAdded(entry)
}

// handleMonthCommand processes the /month [YYYY-MM] [DD] command
func (t *TelegramBot) handleMonthCommand(logger *zap.Logger, message *tgbotapi.Message, args string, msg *tgbotapi.MessageConfig) {
	year, month, selected, err := parseMonthArgs(args, t.useCase.Today())
	if err != nil {
		msg.Text = fmt.Sprintf("Invalid arguments: %v. Example: /month 2025-03 15", err)
		return
	}

	view, err := t.useCase.MonthView(userID(message), year, month, selected)
	if err != nil {
		logger.Error("Error building month view", zap.Error(err))
		msg.Text = "Error fetching your calendar. Please try again later."
		return
	}
	msg.Text = FormatMonth(view)
	msg.ParseMode = tgbotapi.ModeHTML
}

// handleRemoveCommand processes the /remove [id] command
func (t *TelegramBot) handleRemoveCommand(logger *zap.Logger, message *tgbotapi.Message, plantID string, msg *tgbotapi.MessageConfig) {
	if plantID == "" {
		msg.Text = "Please specify a plant id. Use /garden to see your plants."
		return
	}

	err := t.useCase.RemovePlant(userID(message), plantID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		msg.Text = fmt.Sprintf("No plant '%s' in your calendar. Use /garden to see plant ids.", plantID)
	case err != nil:
		logger.Error("Error removing plant", zap.Error(err))
		msg.Text = "Error removing plant. Please try again later."
	default:
		msg.Text = fmt.Sprintf("🗑 Removed '%s' from your calendar.", plantID)
	}
}

// handleNonCommand suggests catalogue plants matching the message text
func (t *TelegramBot) handleNonCommand(logger *zap.Logger, message *tgbotapi.Message, msg *tgbotapi.MessageConfig) {
	const fallback = "I don't understand. Use /help to see available commands."

	plants, err := t.useCase.SearchPlants(message.Text)
	if err != nil {
		logger.Error("Error searching plants", zap.Error(err))
		msg.Text = fallback
		return
	}
	if len(plants) == 0 {
		msg.Text = fallback
		return
	}

	var response strings.Builder
	response.WriteString("I don't understand, but I know these plants:\n\n")
	for _, p := range plants {
		response.WriteString("• " + p.DisplayName + "\n")
	}
	response.WriteString("\nAdd one with /plant [name].")
	msg.Text = response.String()
}
