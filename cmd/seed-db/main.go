package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/product"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
	"github.com/xenking/laundry-orders/internal/repository"
)

type seedFile struct {
	Outlets []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"outlets"`
	Products []struct {
		ID         string          `json:"id"`
		OutletID   string          `json:"outletId"`
		Name       string          `json:"name"`
		Price      decimal.Decimal `json:"price"`
		Unit       string          `json:"unit"`
		Estimation string          `json:"estimation"`
	} `json:"products"`
	Members []struct {
		ID          string     `json:"id"`
		UserID      string     `json:"userId"`
		OutletID    string     `json:"outletId"`
		Level       string     `json:"level"`
		ExpiredDate *time.Time `json:"expiredDate"`
	} `json:"members"`
	Vouchers []struct {
		ID         string          `json:"id"`
		Code       string          `json:"code"`
		Percent    decimal.Decimal `json:"percent"`
		ValidFrom  time.Time       `json:"validFrom"`
		ValidUntil time.Time       `json:"validUntil"`
		MaxUsage   *int            `json:"maxUsage"`
		OutletIDs  []string        `json:"outletIds"`
		ProductIDs []string        `json:"productIds"`
	} `json:"vouchers"`
}

func main() {
	_ = godotenv.Load()

	var (
		databaseURL string
		seedPath    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "file", "db/seed/seed.json", "path to seed JSON file")
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

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	outlets, products, members, err := catalog(seed)
	if err != nil {
		return err
	}
	vouchers, err := voucherDefs(seed)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := repository.NewCatalogRepository(pool).Upsert(ctx, outlets, products, members); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	slog.Info("upserted catalog",
		slog.Int("outlets", len(outlets)),
		slog.Int("products", len(products)),
		slog.Int("members", len(members)),
	)

	if err := repository.NewVoucherRepository(pool).UpsertBatch(ctx, vouchers); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	slog.Info("upserted vouchers", slog.Int("count", len(vouchers)))
	return nil
}

func catalog(seed seedFile) ([]repository.Outlet, []product.Product, []member.Member, error) {
	outlets := make([]repository.Outlet, 0, len(seed.Outlets))
	for _, o := range seed.Outlets {
		outlets = append(outlets, repository.Outlet{ID: o.ID, Name: o.Name, Address: o.Address})
	}

	products := make([]product.Product, 0, len(seed.Products))
	for _, p := range seed.Products {
		unit := product.Unit(p.Unit)
		if !unit.Valid() {
			return nil, nil, nil, errors.Errorf("product %s: unknown unit %q", p.ID, p.Unit)
		}
		products = append(products, product.Product{
			ID:         p.ID,
			OutletID:   p.OutletID,
			Name:       p.Name,
			Price:      p.Price,
			Unit:       unit,
			Estimation: p.Estimation,
		})
	}

	members := make([]member.Member, 0, len(seed.Members))
	for _, m := range seed.Members {
		mm := member.Member{ID: m.ID, UserID: m.UserID, OutletID: m.OutletID, Level: member.Level(m.Level)}
		if m.ExpiredDate != nil {
			mm.ExpiredDate = *m.ExpiredDate
		}
		members = append(members, mm)
	}
	return outlets, products, members, nil
}

func voucherDefs(seed seedFile) ([]voucher.Voucher, error) {
	vouchers := make([]voucher.Voucher, 0, len(seed.Vouchers))
	for _, v := range seed.Vouchers {
		vc := voucher.Voucher{
			ID:         v.ID,
			Code:       voucher.NormalizeCode(v.Code),
			Percent:    v.Percent,
			ValidFrom:  v.ValidFrom,
			ValidUntil: v.ValidUntil,
			MaxUsage:   v.MaxUsage,
			Active:     true,
			OutletIDs:  v.OutletIDs,
			ProductIDs: v.ProductIDs,
		}
		if err := vc.Validate(); err != nil {
			return nil, errors.Wrapf(err, "voucher %s", v.Code)
		}
		vouchers = append(vouchers, vc)
	}
	return vouchers, nil
}
