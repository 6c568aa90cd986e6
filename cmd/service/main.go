package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"musicroom-core/internal/access"
	"musicroom-core/internal/config"
	"musicroom-core/internal/geo"
	"musicroom-core/internal/httpapi"
	"musicroom-core/internal/media"
	"musicroom-core/internal/notify"
	"musicroom-core/internal/ranking"
	"musicroom-core/internal/realtime"
	"musicroom-core/internal/relation"
	"musicroom-core/internal/resource"
	"musicroom-core/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("musicroom-core stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	st := store.New(pool, cfg.TxMaxRetries)
	ev := access.NewEvaluator(time.Now)
	pub := notify.NewRedisPublisher(rdb)

	resources := resource.NewService(st, ev, pub, time.Now)

	hub := realtime.NewHub()
	ws := realtime.NewServer(hub, rdb, cfg.AllowedOrigin)
	ws.AccountID = httpapi.AccountID
	ws.Authorizer = resources

	handler := httpapi.NewRouter(httpapi.Deps{
		Resources:      resources,
		Ranking:        ranking.NewEngine(st, ev, geo.Haversine{}, pub),
		Relations:      relation.NewEngine(st, ev, pub),
		Media:          newSearcher(cfg, rdb),
		WS:             http.HandlerFunc(ws.HandleWS),
		JWTSecret:      cfg.JWTSecret,
		InternalToken:  cfg.InternalToken,
		RequestTimeout: cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := ws.RunSubscriber(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("redis subscriber: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("musicroom-core listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSearcher returns nil when no provider key is configured, which turns
// media search off.
func newSearcher(cfg config.Config, rdb *redis.Client) media.Searcher {
	if cfg.YouTubeAPIKey == "" {
		return nil
	}
	yt := media.NewYouTubeClient(cfg.YouTubeAPIKey, cfg.YouTubeSearchURL)
	return media.NewCachedSearcher(yt, rdb, cfg.MediaCacheTTL)
}
