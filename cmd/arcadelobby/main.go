package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"arcadehub/internal/cmd/lobbyd"
)

func main() {
	cfg, err := lobbyd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := lobbyd.Run(ctx, cfg); err != nil {
		log.Fatalf("lobby: %v", err)
	}
}
