package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/event"
	"tradewatch/internal/logger"
	"tradewatch/internal/server"
	"tradewatch/internal/store"

	"github.com/joho/godotenv"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()

	path := os.Getenv("TRADEWATCH_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	var cfg *config.Config
	if _, err := os.Stat(path); err == nil {
		c, err := config.LoadConfig(path)
		must(err)
		cfg = c
	} else {
		cfg = config.Default()
	}

	must(logger.Init())

	st, err := store.OpenSQLite(cfg.Database.DSN)
	must(err)
	defer st.Close()

	hub := event.NewHub()
	srv := server.New(cfg, st, hub)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-sigc:
		log.Println("Shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Shutdown incomplete", err)
	}
	_ = logger.Shutdown(ctx)
}
