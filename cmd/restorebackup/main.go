// Command restorebackup downloads an encrypted snapshot from the bucket,
// decrypts and verifies it, and writes it next to the live database. Stop
// the server and swap the file in by hand to complete a restore.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/huzaifasad/backendforfamily/internal/backup"
	"github.com/huzaifasad/backendforfamily/internal/config"
	"github.com/huzaifasad/backendforfamily/internal/database"
	"github.com/huzaifasad/backendforfamily/internal/logging"
	"github.com/huzaifasad/backendforfamily/internal/store"
)

func main() {
	id := flag.Int64("id", 0, "backup id to restore; 0 picks the latest completed one")
	out := flag.String("out", "", "where to write the restored database (default: DB_PATH + \".restored\")")
	list := flag.Bool("list", false, "list recent backups and exit")
	flag.Parse()

	if err := run(*id, *out, *list); err != nil {
		slog.Error("restore failed", "error", err)
		os.Exit(1)
	}
}

func run(id int64, out string, list bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := backup.New(db, store.NewBackupStore(db), cfg.Backup, cfg.S3, logger.With("component", "backup"))
	if !m.Enabled() {
		return backup.ErrDisabled
	}

	if list {
		backups, err := m.List(20)
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Printf("%d\t%s\t%s\t%d\t%s\n", b.ID, b.StartedAt.Format("2006-01-02 15:04:05"), b.Status, b.SizeBytes, b.ObjectKey)
		}
		return nil
	}

	if out == "" {
		out = cfg.Database.Path + ".restored"
	}
	if out == cfg.Database.Path {
		return errors.New("refusing to overwrite the live database")
	}
	rec, err := m.Restore(ctx, id, out)
	if err != nil {
		return err
	}
	logger.Info("backup restored", "backup_id", rec.ID, "key", rec.ObjectKey, "out", out)
	return nil
}
