package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/garden-bot/internal/cli"
)

// Runs "garden bot" so the bot can be deployed as its own binary.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	root.SetArgs(append([]string{"bot"}, os.Args[1:]...))
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
