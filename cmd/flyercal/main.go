package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appLog "flyercal/internal/log"
)

const version = "0.1.0"

func main() {
	// A local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		appLog.Debug("loaded .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
