package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/cache"
	"rasapos/backend/internal/config"
	"rasapos/backend/internal/events"
	"rasapos/backend/internal/httpapi"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/service"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/store/memory"
	pgstore "rasapos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.Log)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	catalog := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using noop catalog cache")
		} else {
			catalog = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("catalog cache: redis")
		}
	}

	publisher, err := events.Open(events.Options{
		Driver:       cfg.EventsDriver,
		AMQPURL:      cfg.AMQPURL,
		Exchange:     cfg.AMQPExchange,
		KafkaBrokers: cfg.KafkaBrokers,
		Topic:        cfg.SalesTopic,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.EventsDriver).Msg("sale events unavailable")
	}
	closers = append(closers, publisher.Close)
	logger.Info().Str("driver", cfg.EventsDriver).Msg("sale events")

	orders := registry.New(repo, logger, registry.Options{
		MaxSplits:               cfg.MaxSplitBills,
		DefaultDeliveryFeeCents: cfg.DeliveryFeeCents,
	})
	svc := service.New(repo, orders, catalog, publisher, logger, service.Options{
		CatalogTTL: time.Duration(cfg.CatalogCacheTTLSeconds) * time.Second,
	})
	if err := svc.LoadTables(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load tables")
	}
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	if err := auth.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load user accounts")
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Address()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

// openRepository picks postgres when DATABASE_URL is set, seeding an empty
// database with the demo data, and the in-memory store otherwise.
func openRepository(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	empty, err := pg.Empty(ctx)
	if err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	if empty {
		seed, err := memory.NewSeeded().Snapshot(ctx)
		if err == nil {
			err = pg.ReplaceAll(ctx, seed)
		}
		if err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("seed postgres: %w", err)
		}
		logger.Info().Msg("seeded empty database with demo catalog")
	}
	logger.Info().Msg("repository: postgres")
	return pg, pg.Close, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that repeat one digit, run in sequence or
// appear on the common-PIN list.
func validatePINStrength(pin string) error {
	common := map[string]bool{
		"123456": true, "654321": true, "121212": true,
		"112233": true, "123123": true, "696969": true,
	}
	if common[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("PIN must be digits only")
		}
	}

	return nil
}
