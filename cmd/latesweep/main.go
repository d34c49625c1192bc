// Command latesweep records late days on overdue tasks once and exits. It is
// meant for an external scheduler when the in-process one is disabled.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/database"
	"github.com/huzaifasad/backendforfamily/internal/logging"
	"github.com/huzaifasad/backendforfamily/internal/store"
	"github.com/huzaifasad/backendforfamily/internal/task"
)

func main() {
	at := flag.String("at", "", "sweep as of this RFC 3339 time instead of now")
	flag.Parse()

	if err := run(*at); err != nil {
		slog.Error("late sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(at string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	now := time.Now().UTC()
	if at != "" {
		if now, err = time.Parse(time.RFC3339, at); err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := task.NewManager(store.NewTaskStore(db), store.NewChildStore(db), store.NewRewardStore(db),
		cfg.Tasks.DefaultRewardPoints, logger.With("component", "task"))
	res, err := m.SweepLate(now)
	if err != nil {
		return err
	}
	logger.Info("late sweep finished", "as_of", now, "scanned", res.Scanned, "updated", res.Updated)
	return nil
}
