package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odvcencio/mjson5/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := Run(ctx, os.Exit, &streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}, os.Args[1:]...)
	switch {
	case err == nil:
	case errors.Is(err, errIssues):
		// The command already reported the offending files.
		os.Exit(1)
	default:
		log.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
