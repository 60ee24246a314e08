// README: Entry point; loads config, wires catalog, pricing and booking services, starts HTTP and metrics servers.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"rental/internal/config"
	httptransport "rental/internal/http"
	"rental/internal/http/handlers"
	"rental/internal/infra"
	"rental/internal/maps"
	"rental/internal/metrics"
	"rental/internal/modules/availability"
	"rental/internal/modules/booking"
	"rental/internal/modules/pricing"
	"rental/internal/modules/vehicle"
	"rental/internal/types"
)

const shutdownTimeout = 10 * time.Second

// backends is what the selected store mode provides to the services.
type backends struct {
	vehicles vehicle.Repository
	rates    pricing.RateSource
	bookings booking.Repository
	close    func()
}

func main() {
	seed := flag.Bool("seed", false, "load the catalog file into Postgres and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *seed {
		if err := seedCatalog(ctx, cfg); err != nil {
			log.Fatalf("seed: %v", err)
		}
		return
	}

	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		log.Fatalf("firebase auth init: %v", err)
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer be.close()

	opts := []booking.Option{
		booking.WithSuggestOptions(availability.SuggestOptions{
			Max:     cfg.Suggestions.Max,
			Horizon: time.Duration(cfg.Suggestions.HorizonDays) * types.Day,
		}),
	}
	if cfg.Payments.BaseURL != "" {
		opts = append(opts, booking.WithPayments(
			infra.NewHTTPPaymentGateway(cfg.Payments.BaseURL, cfg.Payments.APIKey, cfg.Payments.Timeout)))
	} else {
		log.Printf("RENTAL_PAYMENTS_URL not set; paid bookings that fail cannot be refunded automatically")
	}
	if cfg.Firebase.Notifications {
		notifier, err := infra.NewPushNotifier(ctx, app)
		if err != nil {
			log.Fatalf("firebase messaging init: %v", err)
		}
		opts = append(opts, booking.WithNotifier(notifier))
	}

	pricingSvc := pricing.NewService(be.rates)
	vehicleSvc := vehicle.NewService(be.vehicles)
	bookingSvc := booking.NewService(be.bookings, vehicleSvc, pricingSvc, opts...)

	var geocoder handlers.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			log.Fatal(err)
		}
		geocoder = g
	}

	metrics.Register()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux}

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(httptransport.RouterDeps{
			Bookings:    bookingSvc,
			Pricing:     pricingSvc,
			Verifier:    verifier,
			CORSOrigins: cfg.HTTP.CORSOrigins,
			Geocoder:    geocoder,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("rental api listening on %s (store=%s)", cfg.HTTP.Addr, cfg.Store.Mode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openBackends(ctx context.Context, cfg config.Config) (backends, error) {
	if cfg.Store.Mode == config.StoreMemory {
		entries, err := vehicle.LoadCatalogFile(cfg.Catalog.Path)
		if err != nil {
			return backends{}, err
		}
		catalog := vehicle.NewMemoryCatalog(entries...)
		log.Printf("loaded %d vehicles from %s into memory", len(entries), cfg.Catalog.Path)
		return backends{vehicles: catalog, rates: catalog, bookings: booking.NewMemoryStore(), close: func() {}}, nil
	}

	pool, rdb, err := openPostgres(ctx, cfg)
	if err != nil {
		return backends{}, err
	}
	return backends{
		vehicles: vehicle.NewStore(pool, rdb),
		rates:    pricing.NewStore(pool),
		bookings: booking.NewStore(pool),
		close:    closer(pool, rdb),
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, *redis.Client, error) {
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pool, infra.NewRedis(cfg.Redis.Addr), nil
}

func closer(pool *pgxpool.Pool, rdb *redis.Client) func() {
	return func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		pool.Close()
	}
}

// seedCatalog upserts every vehicle and plan of the catalog file.
func seedCatalog(ctx context.Context, cfg config.Config) error {
	entries, err := vehicle.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	pool, rdb, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer(pool, rdb)()

	vehicles := vehicle.NewStore(pool, rdb)
	rates := pricing.NewStore(pool)
	for _, e := range entries {
		if err := vehicles.Save(ctx, e.Vehicle); err != nil {
			return err
		}
		if err := rates.SavePlan(ctx, e.ID, e.Plan); err != nil {
			return err
		}
	}
	log.Printf("seeded %d vehicles from %s", len(entries), cfg.Catalog.Path)
	return nil
}
