package main

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dmitrijs2005/rapidphotos/internal/logging"
	"github.com/dmitrijs2005/rapidphotos/internal/provision"
	"github.com/dmitrijs2005/rapidphotos/internal/server/config"
	"github.com/dmitrijs2005/rapidphotos/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rapidphotos/internal/server/services"
	"golang.org/x/term"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	opts, err := provision.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("db migration error: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	limits := services.NewLimitsService(db, rm, cfg, logger)
	us := services.NewUserService(db, rm, limits, cfg)

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	if err := provision.Run(ctx, us, opts, bufio.NewReader(os.Stdin), os.Stdout, interactive); err != nil {
		log.Fatalf("%v", err)
	}
}
