package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/garden-bot/internal/cli"
)

// Runs "garden reminder": daily planting reminders on the configured cron schedule.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	root.SetArgs(append([]string{"reminder"}, os.Args[1:]...))
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
