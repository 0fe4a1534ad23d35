package main

import "github.com/abelzeko/garden-bot/internal/cli"

func main() {
	cli.Execute()
}
