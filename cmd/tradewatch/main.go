// Command tradewatch is the terminal counterpart of the dashboard: it
// subscribes to the server's change channel, debounces bursts, and on
// each coalesced update refetches the listing and stats, printing the
// reconciled view as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/clock"

	"tradewatch/internal/config"
	"tradewatch/internal/event"
	"tradewatch/internal/logger"
	"tradewatch/internal/realtime"
	"tradewatch/internal/view"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func wsURL(base string) string {
	u := strings.Replace(base, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

func main() {
	_ = godotenv.Load()
	must(logger.Init())

	base := os.Getenv("TRADEWATCH_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	cfg := config.Default()
	if path := os.Getenv("TRADEWATCH_CONFIG"); path != "" {
		c, err := config.LoadConfig(path)
		must(err)
		cfg = c
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	today := time.Now().UTC().Format("2006-01-02")
	state := view.State{
		SortField:     view.SortByAccount,
		SortDirection: view.Asc,
		Page:          1,
		PageSize:      view.PageSizeAll,
	}

	fetcher := realtime.NewAPIFetcher(base, cfg.RefetchTimeout())
	refresher := realtime.NewRefresher(fetcher, func(snap realtime.Snapshot) {
		rows := view.Reconcile(snap.Rows, state, time.Now())
		out := map[string]any{
			"seq":      snap.Seq,
			"accounts": rows,
			"stats":    snap.Stats,
		}
		if b, err := json.Marshal(out); err == nil {
			fmt.Println(string(b))
		}
	})
	refresher.SetDateRange(today, today)

	quiet := realtime.QuietPeriods{
		History:  cfg.HistoryQuiet(),
		Accounts: cfg.AccountsQuiet(),
	}
	debouncer := realtime.NewDebouncer(clock.WallClock, quiet, func(ev event.ChangeEvent) {
		refresher.Trigger(ctx, ev)
	})

	sub := realtime.NewSubscriber(wsURL(base), debouncer, func(st realtime.ConnState) {
		logger.Info(ctx, "Connection state changed", "state", st.String())
	})

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	// Initial load before any event arrives.
	refresher.ManualRefresh(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- sub.Run(ctx)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal(err)
		}
	case <-sigc:
		log.Println("Shutting down...")
		sub.Close()
		cancel()
		<-errc
	}
}
