package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/laundry-orders/internal/repository"
)

func main() {
	_ = godotenv.Load()

	var (
		pattern     string
		databaseURL string
		expected    uint
		batchSize   int
	)
	flag.StringVar(&pattern, "files", "data/vouchers*.csv.gz", "glob of gzip CSV voucher batches")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 1_000_000, "expected codes per file, sizes the bloom filters")
	flag.IntVar(&batchSize, "batch", 1000, "vouchers per database batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, expected, batchSize); err != nil {
		slog.Error("voucher import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher import completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, expected uint, batchSize int) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "expand file pattern")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", pattern)
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := &importer{
		store:     repository.NewVoucherRepository(pool),
		expected:  expected,
		batchSize: batchSize,
	}
	stats, err := imp.Import(ctx, files)
	if err != nil {
		return err
	}
	slog.Info("import summary",
		slog.Int("imported", stats.Imported),
		slog.Int("ambiguous", stats.Ambiguous),
		slog.Int("invalid", stats.Invalid),
	)
	return nil
}
