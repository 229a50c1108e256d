// Package cache provides byte-oriented cache stores for query results.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Store is a TTL key-value store. A miss returns (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives a compact, stable key from the given parts.
func Key(prefix string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(h.Sum64(), 16))
	return sb.String()
}
