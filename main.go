package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"sprint-api/api"
	"sprint-api/board"
	"sprint-api/catalog"
	"sprint-api/coalesce"
	"sprint-api/domain"
	"sprint-api/storage"
)

func main() {
	loadDotEnv(".env")
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}

	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	persist, err := newPersistence(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	guard := coalesce.New(coalesce.WithLinger(cfg.Linger), coalesce.WithLogger(logger))
	cat := catalog.NewGuarded(catalog.NewStatic(), guard)
	members, err := cat.Members(ctx)
	if err != nil {
		log.Fatalf("members: %v", err)
	}

	store := board.New(persist,
		board.WithKey(cfg.BoardKey),
		board.WithMembers(members),
		board.WithLogger(logger),
	)
	if _, err := store.Initialize(ctx, domain.DefaultBoard()); err != nil {
		log.Fatalf("board: %v", err)
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	api.Register(e, store, cat, logger)

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}

func newPersistence(ctx context.Context, cfg config, logger *log.Logger) (board.Persistence, error) {
	switch cfg.Backend {
	case backendRedis:
		rc := redis.NewClient(parseRedisOptions(cfg.RedisConn))
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis not reachable yet")
		}
		return storage.NewRedis(rc, cfg.CacheTTL), nil
	case backendTables:
		tables, client, err := storage.NewTables(cfg.StorageConn, cfg.BoardTable)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureTable(ctx, client); err != nil {
			return nil, err
		}
		if cfg.RedisConn == "" {
			return tables, nil
		}
		logger.Info("caching board snapshots in redis")
		return storage.NewCache(tables, redis.NewClient(parseRedisOptions(cfg.RedisConn)), cfg.CacheTTL), nil
	default:
		return storage.NewMemory(), nil
	}
}
