// Package idempotency records completed activity results so a retried
// delivery with identical inputs returns the recorded outcome instead of
// hitting providers again. This is what keeps at-least-once task delivery
// from double-charging research cost or double-depositing knowledge.
package idempotency

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/draftline-ai/orchestrator/internal/circuitbreaker"
	"github.com/draftline-ai/orchestrator/internal/metrics"
)

const keyPrefix = "dl:ledger:"

// Ledger is the Redis-backed activity result store with a small local cache.
// All operations degrade to no-ops when Redis is unavailable; the ledger is
// an optimization, never a correctness dependency.
type Ledger struct {
	client *circuitbreaker.RedisWrapper
	logger *zap.Logger
	ttl    time.Duration

	mu          sync.Mutex
	localCache  map[string][]byte
	cacheAccess map[string]time.Time
	maxEntries  int
}

// NewLedger connects to Redis and verifies the connection.
func NewLedger(redisAddr string, logger *zap.Logger) (*Ledger, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	client := circuitbreaker.NewRedisWrapper(redisClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Ledger{
		client:      client,
		logger:      logger,
		ttl:         24 * time.Hour,
		localCache:  make(map[string][]byte),
		cacheAccess: make(map[string]time.Time),
		maxEntries:  10000,
	}, nil
}

// Key derives the ledger key for one activity invocation. The hash covers
// (instance id, activity name, canonical input JSON); attempt numbers are
// deliberately excluded so every retry of the same input maps to the same
// entry. encoding/json sorts map keys, which keeps the encoding canonical.
func Key(instanceID, activity string, input interface{}) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal ledger input: %w", err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(instanceID))
	h.Write([]byte{0})
	h.Write([]byte(activity))
	h.Write([]byte{0})
	h.Write(payload)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Load retrieves a recorded result into dest. The boolean reports whether an
// entry was found; Redis unavailability reads as a miss and is counted, not
// returned.
func (l *Ledger) Load(ctx context.Context, key string, dest interface{}) bool {
	l.mu.Lock()
	if data, ok := l.localCache[key]; ok {
		l.cacheAccess[key] = time.Now()
		l.mu.Unlock()
		if err := json.Unmarshal(data, dest); err == nil {
			metrics.LedgerHits.Inc()
			return true
		}
		l.mu.Lock()
		delete(l.localCache, key)
		delete(l.cacheAccess, key)
		l.mu.Unlock()
	} else {
		l.mu.Unlock()
	}

	data, err := l.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.LedgerMisses.Inc()
		return false
	}
	if err != nil {
		metrics.LedgerDegraded.Inc()
		l.logger.Warn("Ledger read unavailable, proceeding without dedup",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		l.logger.Warn("Ledger entry corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}

	l.cacheLocal(key, data)
	metrics.LedgerHits.Inc()
	return true
}

// Store records a completed activity result. Best effort: failures are
// logged and counted, never propagated.
func (l *Ledger) Store(ctx context.Context, key string, result interface{}) {
	data, err := json.Marshal(result)
	if err != nil {
		l.logger.Warn("Ledger result not serializable", zap.String("key", key), zap.Error(err))
		return
	}

	l.cacheLocal(key, data)

	if err := l.client.Set(ctx, key, data, l.ttl).Err(); err != nil {
		metrics.LedgerDegraded.Inc()
		l.logger.Warn("Ledger write unavailable",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// cacheLocal inserts into the local cache, evicting the least recently used
// entries past capacity.
func (l *Ledger) cacheLocal(key string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.localCache[key] = data
	l.cacheAccess[key] = time.Now()

	for len(l.localCache) > l.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for k, at := range l.cacheAccess {
			if oldestKey == "" || at.Before(oldest) {
				oldestKey = k
				oldest = at
			}
		}
		delete(l.localCache, oldestKey)
		delete(l.cacheAccess, oldestKey)
	}
	metrics.LedgerCacheSize.Set(float64(len(l.localCache)))
}

// Healthy reports whether the Redis side of the ledger is reachable.
func (l *Ledger) Healthy(ctx context.Context) bool {
	return l.client.Ping(ctx).Err() == nil
}

// Close releases the Redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}
