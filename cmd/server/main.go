package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/diewo77/gesappro/internal/config"
	"github.com/diewo77/gesappro/internal/db"
	"github.com/diewo77/gesappro/internal/server"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()

	log := newLogger(cfg.Env)

	dbConn, err := db.ConnectAndMigrate(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connexion DB")
	}
	if *migrateOnlyFlag {
		log.Info().Msg("migrations terminées, arrêt demandé")
		return
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: server.New(dbConn, log)}

	go func() {
		log.Info().Str("env", cfg.Env).Str("addr", srv.Addr).Msg("serveur démarré")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serveur HTTP")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("signal d'arrêt reçu")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("arrêt du serveur")
	}
	log.Info().Msg("serveur arrêté proprement")
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
