package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"axmed/internal/config"
	"axmed/internal/listener"
	"axmed/internal/logger"
	"axmed/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(logger.Setup(cfg, "inbox-listener"))

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(listener.NewService(db, cfg).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
