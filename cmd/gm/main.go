package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	gmcmd "github.com/integerman/jaimes/internal/cmd/gm"
	platformcmd "github.com/integerman/jaimes/internal/platform/cmd"
)

// main starts an interactive game master session.
func main() {
	cfg, err := gmcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(platformcmd.LogPrefix(platformcmd.ServiceGameMaster))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gmcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("game master session failed: %v", err)
	}
}
