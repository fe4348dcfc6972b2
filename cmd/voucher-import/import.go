package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/laundry-orders/internal/domain/voucher"
)

const (
	bloomFPR      = 0.001
	maxFiles      = bits.UintSize
	progressEvery = 100_000
)

// CSV columns of a voucher batch file.
const (
	colCode = iota
	colPercent
	colValidFrom
	colValidUntil
	colMaxUsage
	colOutlets
	colProducts
	numColumns
)

type upserter interface {
	UpsertBatch(ctx context.Context, vs []voucher.Voucher) error
}

// importer loads voucher batch files. A code that appears in more than one
// file is ambiguous and skipped entirely. Within one file the last row for a
// code wins.
type importer struct {
	store     upserter
	expected  uint
	batchSize int
}

type stats struct {
	Imported  int
	Ambiguous int
	Invalid   int
}

// Import runs three passes: per-file bloom filters, then exact detection of
// codes present in two or more files, then parsing and upserting the rest.
func (imp *importer) Import(ctx context.Context, files []string) (stats, error) {
	if len(files) > maxFiles {
		return stats{}, errors.Errorf("at most %d files per run, got %d", maxFiles, len(files))
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := imp.buildFilters(ctx, files)
	if err != nil {
		return stats{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes shared between files")
	ambiguous, err := findShared(ctx, files, filters)
	if err != nil {
		return stats{}, errors.Wrap(err, "find shared codes")
	}
	slog.Info("ambiguous codes found", slog.Int("count", len(ambiguous)))

	slog.Info("pass 3: importing vouchers")
	st := stats{Ambiguous: len(ambiguous)}
	for _, f := range files {
		if err := imp.load(ctx, f, ambiguous, &st); err != nil {
			return st, errors.Wrapf(err, "import %s", f)
		}
	}
	return st, nil
}

func (imp *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(imp.expected, bloomFPR)
			var count int
			err := streamRecords(ctx, path, func(rec []string) {
				filter.AddString(voucher.NormalizeCode(rec[colCode]))
				count++
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findShared returns the codes that occur in at least two files. A code is
// only recorded for a file it actually occurs in, so bloom false positives
// never produce a second bit.
func findShared(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	found := make([]map[string]uint, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			err := streamRecords(ctx, path, func(rec []string) {
				code := voucher.NormalizeCode(rec[colCode])
				for j, f := range filters {
					if j != i && f.TestString(code) {
						candidates[code] |= fileBit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			found[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range found {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}
	shared := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			shared[code] = struct{}{}
		}
	}
	return shared, nil
}

func (imp *importer) load(ctx context.Context, path string, skip map[string]struct{}, st *stats) error {
	batch := make([]voucher.Voucher, 0, imp.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := imp.store.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		st.Imported += len(batch)
		if st.Imported%progressEvery < len(batch) {
			slog.Info("pass 3 progress", slog.Int("imported", st.Imported))
		}
		batch = batch[:0]
		return nil
	}

	var flushErr error
	err := streamRecords(ctx, path, func(rec []string) {
		if flushErr != nil {
			return
		}
		if _, ok := skip[voucher.NormalizeCode(rec[colCode])]; ok {
			return
		}
		v, err := parseVoucher(rec)
		if err != nil {
			st.Invalid++
			slog.Warn("skipping invalid voucher", slog.String("file", path), slog.String("error", err.Error()))
			return
		}
		batch = append(batch, v)
		if len(batch) == imp.batchSize {
			flushErr = flush()
		}
	})
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	return flush()
}

func parseVoucher(rec []string) (voucher.Voucher, error) {
	v := voucher.Voucher{
		ID:         uuid.NewString(),
		Code:       voucher.NormalizeCode(rec[colCode]),
		Active:     true,
		OutletIDs:  splitList(rec[colOutlets]),
		ProductIDs: splitList(rec[colProducts]),
	}
	var err error
	if v.Percent, err = decimal.NewFromString(strings.TrimSpace(rec[colPercent])); err != nil {
		return v, errors.Wrapf(err, "%s: percent", v.Code)
	}
	if v.ValidFrom, err = time.Parse(time.RFC3339, strings.TrimSpace(rec[colValidFrom])); err != nil {
		return v, errors.Wrapf(err, "%s: valid_from", v.Code)
	}
	if v.ValidUntil, err = time.Parse(time.RFC3339, strings.TrimSpace(rec[colValidUntil])); err != nil {
		return v, errors.Wrapf(err, "%s: valid_until", v.Code)
	}
	if s := strings.TrimSpace(rec[colMaxUsage]); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return v, errors.Wrapf(err, "%s: max_usage", v.Code)
		}
		v.MaxUsage = &n
	}
	if err := v.Validate(); err != nil {
		return v, errors.Wrap(err, v.Code)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// streamRecords calls fn for each data row of a gzip CSV file. A header
// row starting with "code" is skipped.
func streamRecords(ctx context.Context, path string, fn func(rec []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = numColumns
	r.ReuseRecord = true
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[colCode]), "code") {
			continue
		}
		fn(rec)
	}
}
