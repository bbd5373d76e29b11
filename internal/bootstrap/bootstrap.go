// Package bootstrap wires configuration into storage, clients and services.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_sync/internal/adapters/archive"
	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	redisad "hotel_sync/internal/adapters/redis"
	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
	"hotel_sync/internal/shared"
	"hotel_sync/internal/storage/memory"
	mysqlrepo "hotel_sync/internal/storage/mysql"
)

// MemoryDSN selects the in-process store instead of MySQL.
const MemoryDSN = "memory"

// Storage is everything the services need from a backing store.
type Storage interface {
	domain.PropertyRepository
	domain.PropertyWriter
	domain.ReservationRepository
	domain.MappingRepository
	domain.AuditSink
	domain.AuditReader
}

type App struct {
	Config   shared.Config
	Store    Storage
	Engine   *app.Engine
	Setup    *app.SetupService
	Catalog  *app.CatalogService
	Mappings *app.MappingStore
	Audit    *app.Auditor

	closers []func() error
}

// Build opens storage and the optional cache and archive, then assembles the
// services. Call Close when done.
func Build(ctx context.Context, cfg shared.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := a.openStore(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	a.Store = store

	pc, err := pms.New(pms.Config{
		BaseURL:  cfg.PMSBaseURL,
		APIKey:   cfg.PMSAPIKey,
		Username: cfg.PMSUser,
		Password: cfg.PMSPassword,
		Timeout:  cfg.PMSTimeout,
		RPS:      cfg.UpstreamRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("pms client: %w", err)
	}
	cc, err := channel.New(channel.Config{
		BaseURL:  cfg.ChannelBaseURL,
		Username: cfg.ChannelUser,
		Password: cfg.ChannelPassword,
		Timeout:  cfg.ChannelTimeout,
		RPS:      cfg.UpstreamRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("channel client: %w", err)
	}

	var auditOpts []app.AuditorOption
	if cfg.AuditBucket != "" {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:    cfg.AuditBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			PathStyle: cfg.AWSPathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		auditOpts = append(auditOpts, app.WithArchive(arch, cfg.AuditPrefix))
	}

	a.Mappings = app.NewMappingStore(store, store, a.openCache(ctx, cfg), cfg.CacheTTL)
	a.Audit = app.NewAuditor(store, store, auditOpts...)
	a.Engine = app.NewEngine(app.Deps{
		Properties:         store,
		Reservations:       store,
		Mappings:           a.Mappings,
		Audit:              a.Audit,
		PMS:                pc,
		Channel:            cc,
		ChannelOnlySources: cfg.ChannelOnlySources,
	})
	a.Setup = app.NewSetupService(store, store, a.Mappings)
	a.Catalog = app.NewCatalogService(store, a.Mappings, a.Audit, pc, cc)
	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context, dsn string) (Storage, error) {
	if dsn == MemoryDSN {
		log.Warn().Msg("using in-memory storage; data is lost on exit")
		return memory.New(), nil
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db), nil
}

// openCache returns nil (no caching) when Redis is disabled or unreachable.
func (a *App) openCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr == "" || cfg.CacheTTL <= 0 {
		return nil
	}
	c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB).WithNamespace("hotel_sync")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, mapping cache disabled")
		_ = c.Close()
		return nil
	}
	a.closers = append(a.closers, c.Close)
	return c
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
