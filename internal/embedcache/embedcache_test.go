package embedcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_navigator/internal/logger"
)

type mapStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestWrapCachesEmbeddings(t *testing.T) {
	calls := 0
	next := func(_ context.Context, text string) ([]float32, error) {
		calls++
		return []float32{float32(len(text)), 0.5, -1}, nil
	}
	store := newMapStore()
	ef := Wrap(next, store, "nomic-embed-text", time.Hour, logger.Nop())

	first, err := ef(context.Background(), "hello")
	require.NoError(t, err)
	second, err := ef(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Len(t, store.data, 1)

	_, err = ef(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWrapSurvivesStoreFailure(t *testing.T) {
	calls := 0
	next := func(context.Context, string) ([]float32, error) {
		calls++
		return []float32{1}, nil
	}
	store := newMapStore()
	store.failGet = true
	ef := Wrap(next, store, "m", time.Hour, logger.Nop())

	vec, err := ef(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 1, calls)
}

func TestWrapPropagatesEmbeddingError(t *testing.T) {
	boom := errors.New("ollama down")
	next := func(context.Context, string) ([]float32, error) { return nil, boom }
	ef := Wrap(next, newMapStore(), "m", time.Hour, logger.Nop())

	_, err := ef(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestEncodeDecode(t *testing.T) {
	vec := []float32{0.25, -3.5, 1e-7}
	got, err := Decode(Encode(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, Key("a", "text"), Key("b", "text"))
	assert.Equal(t, Key("a", "text"), Key("a", "text"))
}
