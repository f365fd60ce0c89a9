package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
	"github.com/zeromonos/waste-pickup-booking/internal/catalog"
	"github.com/zeromonos/waste-pickup-booking/internal/config"
	"github.com/zeromonos/waste-pickup-booking/internal/db"
	redisclient "github.com/zeromonos/waste-pickup-booking/internal/redis"
)

// catalog-worker re-imports the municipality catalog on an interval so names
// added at the remote source show up without a restart. Existing names are
// skipped, so every run is safe.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("catalog-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running catalog worker in env=%s interval=%s", cfg.Env, cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	var cache booking.CatalogCache
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Printf("redis unavailable, catalog cache will not be refreshed: %v", err)
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Printf("error closing redis: %v", err)
				}
			}()
			cache = redisclient.NewNamesCache(rdb, cfg.CatalogCacheTTL)
			log.Println("connected to Redis")
		}
	}

	store := booking.NewPgStore(pgPool)
	importer := catalog.NewImporter(store, cache, cfg)

	// Run once at startup
	runOnce(rootCtx, importer, cfg)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping catalog worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, importer, cfg)
		}
	}
}

func runOnce(ctx context.Context, importer *catalog.Importer, cfg config.Config) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.MunicipalitiesTimeout+30*time.Second)
	defer cancel()

	start := time.Now()
	result, err := importer.Run(runCtx)
	if err != nil {
		log.Printf("catalog import error: %v", err)
		return
	}
	log.Printf("catalog import complete in %s: source=%s created=%d skipped=%d",
		time.Since(start), result.Source, result.Created, result.Skipped)
}
