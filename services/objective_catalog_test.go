package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refit/refit-api/models"
)

type memoryCache struct {
	items       map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) GetBytes(key string) ([]byte, bool) {
	b, ok := c.items[key]
	return b, ok
}

func (c *memoryCache) SetJSON(key string, v interface{}, _ time.Duration) {
	b, err := json.Marshal(v)
	if err == nil {
		c.items[key] = b
	}
}

func (c *memoryCache) InvalidatePrefix(prefix string) {
	c.invalidated = append(c.invalidated, prefix)
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func TestCatalogCreateValidation(t *testing.T) {
	svc := NewCatalogService(newTestDB(t), nil)
	ctx := context.Background()
	quant := models.ObjectiveQuantitative
	qual := models.ObjectiveQualitative

	cases := []struct {
		name string
		in   ObjectiveInput
	}{
		{"missing name", ObjectiveInput{Kind: &quant, Requirement: ptr("steps"), RequiredValue: ptr(int64(10)), Prize: ptr(int64(1))}},
		{"bad kind", ObjectiveInput{Name: ptr("x"), Kind: ptr(models.ObjectiveKind("social")), Requirement: ptr("steps"), Prize: ptr(int64(1))}},
		{"unknown metric", ObjectiveInput{Name: ptr("x"), Kind: &quant, Requirement: ptr("calories"), RequiredValue: ptr(int64(10)), Prize: ptr(int64(1))}},
		{"zero prize", ObjectiveInput{Name: ptr("x"), Kind: &qual, Requirement: ptr("login"), Prize: ptr(int64(0))}},
		{"no required value", ObjectiveInput{Name: ptr("x"), Kind: &quant, Requirement: ptr("steps"), Prize: ptr(int64(1))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			assert.ErrorIs(t, err, ErrInvalidObjective)
		})
	}
}

func TestCatalogCreateAndUpdate(t *testing.T) {
	cache := newMemoryCache()
	svc := NewCatalogService(newTestDB(t), cache)
	ctx := context.Background()
	quant := models.ObjectiveQuantitative

	def, err := svc.Create(ctx, ObjectiveInput{
		Name:          ptr("Walk <b>5k</b><script>alert(1)</script>"),
		Kind:          &quant,
		Requirement:   ptr("steps"),
		RequiredValue: ptr(int64(5000)),
		Prize:         ptr(int64(20)),
	})
	require.NoError(t, err)
	assert.True(t, def.Active)
	assert.NotContains(t, def.Name, "<script>")

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Contains(t, cache.items, catalogCachePrefix+"active=true")

	updated, err := svc.Update(ctx, def.ID, ObjectiveInput{Active: ptr(false), Prize: ptr(int64(30))})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(30), updated.Prize)
	assert.Equal(t, int64(5000), updated.RequiredValue)
	assert.NotEmpty(t, cache.invalidated)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	everything, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, everything, 1)
	assert.False(t, everything[0].Active)

	_, err = svc.Update(ctx, 999, ObjectiveInput{Active: ptr(true)})
	assert.ErrorIs(t, err, ErrObjectiveNotFound)

	_, err = svc.Update(ctx, def.ID, ObjectiveInput{Requirement: ptr("floors")})
	assert.ErrorIs(t, err, ErrInvalidObjective)
}

func TestCatalogCreateInactive(t *testing.T) {
	svc := NewCatalogService(newTestDB(t), nil)
	qual := models.ObjectiveQualitative

	def, err := svc.Create(context.Background(), ObjectiveInput{
		Name:          ptr("Log in"),
		Kind:          &qual,
		Requirement:   ptr("login"),
		RequiredValue: ptr(int64(3)),
		Prize:         ptr(int64(5)),
		Active:        ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, def.Active)
	assert.Zero(t, def.RequiredValue)

	got, err := svc.Get(context.Background(), def.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
