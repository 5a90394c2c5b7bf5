package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryClient struct {
	values map[string]string
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	default:
		return errors.New("unsupported value")
	}
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := &memoryClient{values: map[string]string{}}

	type entry struct {
		Name  string  `json:"name"`
		Thick float64 `json:"thick"`
	}

	require.NoError(t, SetJSON(ctx, c, "k", entry{Name: "MDF", Thick: 19}, time.Minute))

	var got entry
	require.NoError(t, GetJSON(ctx, c, "k", &got))
	assert.Equal(t, entry{Name: "MDF", Thick: 19}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, GetJSON(ctx, c, "k", &got), ErrCacheMiss)
}

func TestGetJSON_CorruptValue(t *testing.T) {
	c := &memoryClient{values: map[string]string{"k": "{not json"}}

	var got map[string]any
	err := GetJSON(context.Background(), c, "k", &got)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("6f1c2a0e-8a51-4f7e-9d55-3c1f0b2a9e11")
	assert.Equal(t, "cutx:panel:6f1c2a0e-8a51-4f7e-9d55-3c1f0b2a9e11", PanelKey(id))
	assert.Equal(t, "cutx:tree:bouney", TreeKey("bouney"))
}
