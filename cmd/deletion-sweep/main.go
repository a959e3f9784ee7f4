// Command deletion-sweep executes every agency deletion whose grace period has
// elapsed, then exits. It is meant to be run by an external scheduler.
//
// Exit codes: 0 when every due agency was deleted, 1 when the sweep could not
// run, 2 when some agencies failed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/agencyhub/internal/config"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/deletion"
	"github.com/tendant/agencyhub/pkg/repository"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	os.Exit(run(logger))
}

// run owns every resource so deferred cleanup happens before the process exits.
func run(logger *slog.Logger) int {
	db, err := repository.NewDB(config.LoadDatabase())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return exitFailed
	}
	defer db.Close()

	manager := deletion.NewManager(
		repository.NewAgenciesRepository(db),
		access.DefaultPolicy(),
		activity.New(repository.NewActivityRepository(db), logger),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	return sweep(ctx, manager, logger)
}

type sweeper interface {
	Sweep(ctx context.Context) (*deletion.SweepResult, error)
}

func sweep(ctx context.Context, s sweeper, logger *slog.Logger) int {
	result, err := s.Sweep(ctx)
	if err != nil {
		logger.Error("deletion sweep failed", "error", err)
		return exitFailed
	}

	logger.Info("deletion sweep finished", "deleted", len(result.Deleted), "failed", len(result.Failed))
	if len(result.Failed) > 0 {
		return exitPartial
	}
	return exitOK
}
