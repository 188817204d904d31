// Package cache is a fail-open key/value cache for entities keyed by id,
// backed by Redis.
//
// FAIL-OPEN:
// Every operation swallows its own errors. A cache that is down, slow, or
// holding garbage degrades to "miss" on reads and to a no-op on writes; it
// never fails the request that called it. Errors are logged, not returned.
//
// There is no TTL and no eviction: entries live until they are deleted or
// overwritten.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Identifiable is anything that can be cached under its own id.
type Identifiable interface {
	CacheID() string
}

// Config selects the Redis server. An empty Host disables the cache.
type Config struct {
	Host     string
	Port     int
	Password string
	TLS      bool
}

// Addr is host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Cache is safe for concurrent use. The zero value is a disabled cache.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// pingTimeout bounds the startup reachability check.
const pingTimeout = 2 * time.Second

// Connect builds a cache for cfg. It never fails: when cfg.Host is empty or
// the server does not answer a ping, the returned cache is disabled and
// every call on it is a no-op.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) *Cache {
	if cfg.Host == "" {
		logger.Warn("cache disabled: no redis host configured")
		return &Cache{logger: logger}
	}

	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("cache disabled: redis unreachable",
			slog.String("addr", cfg.Addr()),
			slog.String("error", err.Error()),
		)
		_ = client.Close()
		return &Cache{logger: logger}
	}

	logger.Info("cache connected", slog.String("addr", cfg.Addr()))
	return New(client, logger)
}

// New wraps an existing client. Tests use it with miniredis.
func New(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Enabled reports whether the cache talks to a server.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetByID decodes the entry for id into dst and reports whether it did.
// A miss, a transport error, and an undecodable entry all return false.
func (c *Cache) GetByID(ctx context.Context, id string, dst any) bool {
	if !c.Enabled() {
		return false
	}

	raw, err := c.client.Get(ctx, id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logFailure("get", id, err)
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logFailure("decode", id, err)
		return false
	}
	return true
}

// Set stores v under v.CacheID(), overwriting any previous entry. A value
// with an empty id is not stored.
func (c *Cache) Set(ctx context.Context, v Identifiable) {
	if !c.Enabled() || v == nil {
		return
	}
	id := v.CacheID()
	if id == "" {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logFailure("encode", id, err)
		return
	}

	if err := c.client.Set(ctx, id, raw, 0).Err(); err != nil {
		c.logFailure("set", id, err)
	}
}

// Delete removes the entry for id. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, id string) {
	if !c.Enabled() || id == "" {
		return
	}
	if err := c.client.Del(ctx, id).Err(); err != nil {
		c.logFailure("delete", id, err)
	}
}

// Close releases the client's connections.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) logFailure(op, id string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Error("cache operation failed",
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}
