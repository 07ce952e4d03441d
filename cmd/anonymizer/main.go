package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"resume-anonymizer/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional for the client too.
	_ = godotenv.Load()

	// Cancelled on interrupt so an open editor can save before exiting
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
