// Package app wires configuration, storage, services and the HTTP server
// together and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/tour-booking-engine/internal/config"
	"github.com/iliyamo/tour-booking-engine/internal/database"
	"github.com/iliyamo/tour-booking-engine/internal/gateway"
	"github.com/iliyamo/tour-booking-engine/internal/handler"
	"github.com/iliyamo/tour-booking-engine/internal/middleware"
	"github.com/iliyamo/tour-booking-engine/internal/queue"
	"github.com/iliyamo/tour-booking-engine/internal/repository"
	"github.com/iliyamo/tour-booking-engine/internal/repository/memory"
	"github.com/iliyamo/tour-booking-engine/internal/router"
	"github.com/iliyamo/tour-booking-engine/internal/service"
)

const shutdownTimeout = 10 * time.Second

// store is what both storage drivers provide.
type store interface {
	service.BookingStore
	service.PaymentStore
	Ping(ctx context.Context) error
}

// App is the assembled service.
type App struct {
	cfg      config.Config
	log      *zap.Logger
	echo     *echo.Echo
	consumer *queue.Consumer
	closers  []func() error
}

// New connects to the configured backends and builds the HTTP server.
// Redis is optional: when it cannot be reached the service runs without
// rate limiting and caching.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	st, catalog, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, rate limiting and caching disabled", zap.Error(err))
			rdb = nil
		} else {
			a.closers = append(a.closers, rdb.Close)
		}
	}

	var events service.Publisher = queue.LogPublisher{Log: log}
	if cfg.RabbitMQ.Enabled {
		pub := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
		a.closers = append(a.closers, pub.Close)
		events = pub
		if cfg.RabbitMQ.ConsumerEnabled {
			a.consumer = queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.LogPath, log)
		}
	}

	var provider gateway.Provider = gateway.Sandbox{CheckoutURL: cfg.Gateway.CheckoutURL}
	if cfg.Gateway.Mode == config.GatewayHTTP {
		provider = gateway.NewHTTPProvider(cfg.Gateway.BaseURL, cfg.Gateway.ServerKey, cfg.Gateway.Timeout)
	}

	opts := service.Options{Retry: cfg.Retry, BcryptCost: cfg.BcryptCost}
	bookings := service.NewBookingService(st, catalog, events, log.Named("bookings"), opts)
	payments := service.NewPaymentService(st, provider, events, log.Named("payments"), opts)
	adapter := gateway.NewAdapter(cfg.Gateway.WebhookSecret, st, payments, log.Named("gateway"))

	checks := map[string]handler.Pinger{"store": st}
	if rdb != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echomw.BodyLimit("1M"))

	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit"))
	cache := middleware.NewRedisCache(cfg.Cache, rdb, log.Named("cache"))
	bh := handler.NewBookingHandler(bookings, payments, log)
	router.RegisterRoutes(e, handler.Health(checks), bh, handler.NewWebhookHandler(adapter, log), cache, limit)
	router.RegisterBookings(e, bh, cfg.JWTSecret, cfg.AdminRole, limit)
	router.RegisterAdmin(e, handler.NewAdminBookingHandler(bookings, payments, log), cfg.JWTSecret, cfg.AdminRole)

	a.echo = e
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store, service.Catalog, error) {
	switch a.cfg.StoreDriver {
	case config.StoreMemory:
		catalog := memory.NewCatalog()
		if a.cfg.CatalogFile != "" {
			c, err := memory.LoadCatalogFile(a.cfg.CatalogFile)
			if err != nil {
				return nil, nil, fmt.Errorf("load catalog: %w", err)
			}
			catalog = c
		} else {
			a.log.Warn("memory store without MEMORY_CATALOG_FILE: catalog is empty")
		}
		a.log.Warn("using the in-memory store; bookings are lost on restart")
		return memory.NewStore(), catalog, nil
	default:
		db, err := database.Open(ctx, a.cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		if a.cfg.DB.Migrate {
			if err := database.Migrate(ctx, db, a.log.Named("migrate")); err != nil {
				return nil, nil, err
			}
		}
		st := repository.NewStore(db, a.cfg.Retry)
		return st, st.Tours, nil
	}
}

// Run serves HTTP and, when enabled, the audit consumer until ctx is done,
// then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + a.cfg.Port
		a.log.Info("listening", zap.String("addr", addr), zap.String("env", a.cfg.Env), zap.String("store", a.cfg.StoreDriver))
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("shutting down")
		return a.echo.Shutdown(shutdownCtx)
	})

	if a.consumer != nil {
		g.Go(func() error {
			a.log.Info("booking event consumer started", zap.String("queue", a.cfg.RabbitMQ.Queue))
			return a.consumer.Run(ctx)
		})
	}

	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
