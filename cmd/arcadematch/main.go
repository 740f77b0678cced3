package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arcadehub/internal/cmd/matchd"
)

func main() {
	cfg, err := matchd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := matchd.Run(ctx, cfg); err != nil {
		log.Fatalf("match: %v", err)
	}
}
