package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"sprint-api/board"
	"sprint-api/coalesce"
)

const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendTables = "tables"
)

type config struct {
	Debug      bool
	ListenAddr string
	Backend    string
	BoardKey   string

	RedisConn string
	CacheTTL  time.Duration

	StorageConn string
	BoardTable  string

	Linger time.Duration
}

// loadDotEnv reads an optional .env file. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		log.Warnf("ignoring %s: %v", path, err)
		return
	}
	log.Infof("%s loaded", path)
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		ListenAddr: ":8080",
		Backend:    backendMemory,
		BoardKey:   board.DefaultKey,
		Linger:     coalesce.DefaultLinger,
		BoardTable: "SprintBoard",
	}

	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil && dbg {
		cfg.Debug = true
	}
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid PORT: %v", err)
		}
		cfg.ListenAddr = ":" + v
	}
	if v := strings.ToLower(strings.TrimSpace(getenv("BOARD_BACKEND"))); v != "" {
		cfg.Backend = v
	}
	if v := strings.TrimSpace(getenv("BOARD_KEY")); v != "" {
		cfg.BoardKey = v
	}
	if v := getenv("COALESCE_LINGER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid COALESCE_LINGER: %q", v)
		}
		cfg.Linger = d
	}

	// With the tables backend Redis is optional and serves as a snapshot cache.
	cfg.RedisConn = getenv("REDIS_CONNECTION_STRING")
	if v := getenv("BOARD_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid BOARD_CACHE_TTL: %q", v)
		}
		cfg.CacheTTL = d
	}

	switch cfg.Backend {
	case backendMemory:
	case backendRedis:
		if cfg.RedisConn == "" {
			return cfg, errors.New("missing redis config")
		}
	case backendTables:
		cfg.StorageConn = getenv("STORAGE_CONNECTION_STRING")
		if v := getenv("BOARD_TABLE"); v != "" {
			cfg.BoardTable = v
		}
		if cfg.StorageConn == "" {
			return cfg, errors.New("missing storage config")
		}
	default:
		return cfg, fmt.Errorf("unknown BOARD_BACKEND %q", cfg.Backend)
	}
	return cfg, nil
}

// parseRedisOptions accepts a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func parseRedisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
