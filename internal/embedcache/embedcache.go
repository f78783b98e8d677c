// Package embedcache puts a read-through cache in front of an embedding
// function so rebuilding the index after an upload does not re-embed
// unchanged chunks.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the minimal key/value contract the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Wrap returns an EmbeddingFunc that consults store before calling next.
// Store failures are logged and never fail the embedding.
func Wrap(next chromem.EmbeddingFunc, store Store, model string, ttl time.Duration, log *zap.SugaredLogger) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		key := Key(model, text)

		if data, err := store.Get(ctx, key); err == nil {
			if vec, err := Decode(data); err == nil {
				return vec, nil
			}
			log.Warnf("Discarding corrupt cached embedding %s", key)
		} else if !errors.Is(err, ErrMiss) {
			log.Warnf("Embedding cache read failed: %v", err)
		}

		vec, err := next(ctx, text)
		if err != nil {
			return nil, err
		}

		if err := store.Set(ctx, key, Encode(vec), ttl); err != nil {
			log.Warnf("Embedding cache write failed: %v", err)
		}
		return vec, nil
	}
}

// Key derives the cache key for text embedded by model.
func Key(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return "embedding:" + model + ":" + hex.EncodeToString(h[:16])
}

// Encode stores a vector as little-endian float32 values.
func Encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob of %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// RedisStore keeps embeddings in Redis under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily to Redis. Every key is stored under prefix.
func NewRedisStore(addr, password string, db int, prefix string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          db,
			DialTimeout: 5 * time.Second,
		}),
		prefix: prefix,
	}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns ErrMiss for absent or expired keys.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return data, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
