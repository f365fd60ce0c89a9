package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromonos/waste-pickup-booking/internal/api"
	"github.com/zeromonos/waste-pickup-booking/internal/booking"
	"github.com/zeromonos/waste-pickup-booking/internal/catalog"
	"github.com/zeromonos/waste-pickup-booking/internal/config"
	"github.com/zeromonos/waste-pickup-booking/internal/db"
	redisclient "github.com/zeromonos/waste-pickup-booking/internal/redis"

	"github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// Connect Redis when configured; the catalog cache is optional.
	var rdb *redis.Client
	var cache booking.CatalogCache
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Printf("redis unavailable, catalog cache disabled: %v", err)
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
	svc := booking.NewService(store, cache, cfg)

	// One-shot catalog seed. Best effort: a failed import never blocks
	// startup, the catalog just stays as it was.
	go func() {
		seedCtx, cancel := context.WithTimeout(rootCtx, cfg.MunicipalitiesTimeout+30*time.Second)
		defer cancel()

		result, err := catalog.NewImporter(store, cache, cfg).Run(seedCtx)
		if err != nil {
			log.Printf("catalog seed failed: %v", err)
			return
		}
		log.Printf("catalog seeded: source=%s created=%d skipped=%d", result.Source, result.Created, result.Skipped)
	}()

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
