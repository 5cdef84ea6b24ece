package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	rulebookcmd "github.com/integerman/jaimes/internal/cmd/rulebookindex"
	platformcmd "github.com/integerman/jaimes/internal/platform/cmd"
)

// main indexes rulebook files for search_rulebook.
func main() {
	cfg, err := rulebookcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(platformcmd.LogPrefix(platformcmd.ServiceRulebookIndex))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rulebookcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to index rulebooks: %v", err)
	}
}
