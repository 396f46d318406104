// Command migrate applies the embedded goose migrations.
//
//	migrate [up|down|status|version|redo|reset] [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/database"
	"github.com/iliyamo/garbage-collector/internal/logger"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall migration timeout")
	flag.Parse()

	command := "up"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.LoadMigrate()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "migrate", Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := database.Migrate(ctx, db, command, args...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
	log.Info().Str("command", command).Msg("migration done")
}
