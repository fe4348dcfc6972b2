package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/laundry-orders/internal/broker/kafka"
	"github.com/xenking/laundry-orders/internal/dedup"
	"github.com/xenking/laundry-orders/internal/domain/event"
	"github.com/xenking/laundry-orders/internal/domain/order"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
	"github.com/xenking/laundry-orders/internal/domain/tracking"
	"github.com/xenking/laundry-orders/internal/domain/voucher"
	"github.com/xenking/laundry-orders/internal/gateway/midtrans"
	"github.com/xenking/laundry-orders/internal/handler"
	"github.com/xenking/laundry-orders/internal/repository"
	"github.com/xenking/laundry-orders/pkg/health"
	"github.com/xenking/laundry-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the expiry
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Optional infrastructure.
	var events event.Publisher = event.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		events = pub
		lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	reconcilerOpts := []payment.Option{
		payment.WithPublisher(events),
		payment.WithTracerProvider(m.TracerProvider()),
		payment.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.Redis.Addr != "" {
		rdb := dedup.NewClient(cfg.Redis.Addr)
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		reconcilerOpts = append(reconcilerOpts, payment.WithDeduper(dedup.New(rdb, cfg.Redis.DedupTTL)))
	}

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	voucherRepo := repository.NewVoucherRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	trackingRepo := repository.NewTrackingRepository(pool)

	// Domain services.
	loc := cfg.Location()
	gatewayCfg := cfg.PaymentGateway()
	vouchers := voucher.NewValidator(voucherRepo)
	engine := pricing.NewEngine(productRepo, vouchers, cfg.Pricing.FeeSchedule(), cfg.Pricing.Rates())
	ledger := tracking.NewLedger(trackingRepo, loc)
	orders := order.NewService(order.Deps{
		Pricing:  engine,
		Vouchers: vouchers,
		Members:  memberRepo,
		Orders:   orderRepo,
		Payments: paymentRepo,
		Ledger:   ledger,
		Gateway:  midtrans.NewClient(gatewayCfg, m.TracerProvider()),
		Events:   events,
	}, order.Config{
		PaymentTTL:  cfg.Order.PaymentTTL,
		ExpireBatch: cfg.Sweep.Batch,
		Location:    loc,
	})
	reconciler, err := payment.NewReconciler(paymentRepo, gatewayCfg, reconcilerOpts...)
	if err != nil {
		return errors.Wrap(err, "create reconciler")
	}

	sweeper := NewSweeper(orders, cfg.Sweep.Interval)
	healthSvc.AddLivenessCheck("expiry-sweep", time.Second, health.StalenessCheck(sweeper.LastRun, 5*sweeper.Interval()))

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(orders, reconciler, ledger, vouchers).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Gateway.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument("laundry-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gCtx, 10*time.Second)
	})
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
