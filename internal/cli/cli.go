// Package cli defines the garden-bot command line
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abelzeko/garden-bot/internal/api"
	"github.com/abelzeko/garden-bot/internal/app"
	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/config"
	"github.com/abelzeko/garden-bot/internal/entities"
	"github.com/abelzeko/garden-bot/internal/logging"
	"github.com/abelzeko/garden-bot/internal/reminder"
	"github.com/abelzeko/garden-bot/internal/usecases"
)

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the garden command tree
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "garden",
		Short:        "Planting calendar bot for home gardeners",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the YAML config file")

	root.AddCommand(
		newBotCommand(&configPath),
		newReminderCommand(&configPath),
		newResolveCommand(&configPath),
		newMonthCommand(&configPath),
	)
	return root
}

func newBotCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunBot(cmd.Context(), *configPath)
		},
	}
}

func newReminderCommand(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Send planting reminders on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunReminder(cmd.Context(), *configPath, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "send today's reminders and exit")
	return cmd
}

func newResolveCommand(configPath *string) *cobra.Command {
	var city, country string
	cmd := &cobra.Command{
		Use:   "resolve <plant>",
		Short: "Resolve the next planting date for a plant at a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return resolve(cmd.Context(), cmd.OutOrStdout(), a, args[0], entities.Location{City: city, Country: country})
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "city to plant in")
	cmd.Flags().StringVar(&country, "country", "", "country to plant in")
	return cmd
}

func newMonthCommand(configPath *string) *cobra.Command {
	var userID, selected string
	cmd := &cobra.Command{
		Use:   "month <YYYY-MM>",
		Short: "Print a user's planting calendar for one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := time.Parse("2006-01", args[0])
			if err != nil {
				return fmt.Errorf("month must look like 2025-03: %w", err)
			}

			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.UseCase.MonthView(userID, month.Year(), month.Month(), selected)
			if err != nil {
				return err
			}
			printMonth(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Telegram user id")
	cmd.Flags().StringVar(&selected, "selected", "", "selected day as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func setup(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// RunBot serves Telegram updates until ctx is cancelled
func RunBot(ctx context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("Starting Garden Bot")

	if cfg.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.UseCase.Subscribe(func(ev usecases.PlantAdded) {
		logger.Info("Plant scheduled",
			zap.String("user_id", ev.UserID),
			zap.String("plant_id", ev.Entry.ID),
			zap.String("date", ev.Entry.Date))
	})

	bot, err := api.NewTelegramBot(cfg, a.UseCase, logger.Named("telegram"))
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	bot.Start(ctx)
	return nil
}

// RunReminder sends reminders on the configured cron schedule, or once when once is set
func RunReminder(ctx context.Context, configPath string, once bool) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("Starting Garden Bot reminders")

	if cfg.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := api.NewTelegramBot(cfg, a.UseCase, logger.Named("telegram"))
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	runner := reminder.NewRunner(a.UseCase, bot, logger.Named("reminder"), cfg.Reminder.Concurrency, a.Location)
	if once {
		_, err := runner.RunOnce(ctx)
		return err
	}

	c := cron.New(cron.WithLocation(a.Location))
	if _, err := runner.Schedule(ctx, c, cfg.Reminder.Schedule); err != nil {
		return err
	}

	logger.Info("Reminders have been scheduled",
		zap.String("schedule", cfg.Reminder.Schedule),
		zap.String("timezone", a.Location.String()))
	c.Start()

	<-ctx.Done()
	logger.Info("Stopping reminders")
	<-c.Stop().Done()
	return nil
}

func resolve(ctx context.Context, out io.Writer, a *app.App, name string, loc entities.Location) error {
	if loc.IsZero() {
		return errors.New("--city or --country is required")
	}

	plant, err := a.UseCase.FindOrCreatePlant(ctx, "cli", name)
	if err != nil {
		return err
	}

	date, err := a.Resolver.Resolve(ctx, plant, loc, time.Now().In(a.Location))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %s\n", plant.DisplayName, date)
	return nil
}

func printMonth(out io.Writer, view calendar.MonthView) {
	fmt.Fprintf(out, "%s %d\n", view.Month, view.Year)
	if len(view.Agenda) == 0 {
		fmt.Fprintln(out, "No plantings scheduled this month.")
		return
	}

	for _, day := range view.Agenda {
		m := view.Markers[day.Date]
		lead, _ := m.Lead()
		summary := lead.DisplayName
		if n := m.Overflow(); n > 0 {
			summary += " +" + strconv.Itoa(n)
		}
		flags := ""
		if m.Today {
			flags += " (today)"
		}
		if m.Selected {
			flags += " (selected)"
		}
		fmt.Fprintf(out, "%s  %s%s\n", day.Date, summary, flags)
		for _, e := range day.Entries {
			fmt.Fprintf(out, "    - %s [%s]\n", e.Title, e.ID)
		}
	}
}
