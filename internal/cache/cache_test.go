package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

func testRange() model.DateRange {
	return model.DateRange{
		Start: model.Date{Year: 2026, Month: time.March, Day: 1},
		End:   model.Date{Year: 2026, Month: time.March, Day: 15},
	}
}

// ─── Key ──────────────────────────────────────────────────────────────────────

func TestKey_String(t *testing.T) {
	r := testRange()
	assert.Equal(t, "exp:aggregator:list_all:20260301:20260315", ListKey("aggregator", OpListAll, r).String())
	assert.Equal(t, "exp:heavenly_tours:details:id=abc", IDKey("heavenly_tours", OpDetails, "abc").String())
	assert.Equal(t, "exp:heavenly_tours:availability:id=abc:20260301",
		IDDateKey("heavenly_tours", OpAvailability, "abc", r.Start).String())
}

func TestKey_DistinctPerTuple(t *testing.T) {
	r := testRange()
	other := model.DateRange{Start: r.Start, End: r.End.AddDays(1)}

	keys := []Key{
		ListKey("aggregator", OpListAll, r),
		ListKey("aggregator", OpListAll, other),
		ListKey("heavenly_tours", OpList, r),
		IDKey("heavenly_tours", OpDetails, "1"),
		IDDateKey("heavenly_tours", OpAvailability, "1", r.Start),
		IDDateKey("heavenly_tours", OpAvailability, "1", r.End),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		s := k.String()
		assert.False(t, seen[s], "duplicate key %s", s)
		seen[s] = true
	}
}

// ─── Memory ───────────────────────────────────────────────────────────────────

func TestMemory_PutAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[[]int]("test")
	key := IDKey("test", OpDetails, "1")

	_, ok := c.Get(ctx, key)
	assert.False(t, ok, "expected miss on empty cache")

	c.Put(ctx, key, []int{1, 2}, time.Minute)
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, got)
}

func TestMemory_Expiration(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemory[string]("test")
	c.now = func() time.Time { return now }

	key := IDKey("test", OpDetails, "1")
	c.Put(ctx, key, "v", time.Second)

	c.now = func() time.Time { return now.Add(2 * time.Second) }
	_, ok := c.Get(ctx, key)
	assert.False(t, ok, "expected expired entry")
	assert.Equal(t, 0, c.Len())
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string]("test")
	c.Put(ctx, IDKey("test", OpDetails, "1"), "v", 0)
	assert.Equal(t, 0, c.Len())
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string]("test")
	key := IDKey("test", OpDetails, "1")
	c.Put(ctx, key, "v", time.Minute)
	c.Delete(ctx, key)
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemory_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c := NewMemory[string]("test")
	c.now = func() time.Time { return now }
	c.Put(ctx, IDKey("test", OpDetails, "1"), "a", time.Second)
	c.Put(ctx, IDKey("test", OpDetails, "2"), "b", time.Hour)

	c.now = func() time.Time { return now.Add(time.Minute) }
	c.cleanupExpired()
	assert.Equal(t, 1, c.Len())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int]("test")
	key := IDKey("test", OpDetails, "1")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Put(ctx, key, n, time.Minute)
				c.Get(ctx, key)
			}
		}(w)
	}
	wg.Wait()

	_, ok := c.Get(ctx, key)
	assert.True(t, ok)
}

// ─── Redis ────────────────────────────────────────────────────────────────────

func newTestRedis(t *testing.T) (*Redis[[]model.Experience], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis[[]model.Experience](rdb, "test", zap.NewNop()), mr
}

func TestRedis_PutAndGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := ListKey("aggregator", OpListAll, testRange())

	in := []model.Experience{{
		ID:        501,
		Source:    model.SourceLocal,
		Title:     "New York City Walking Tour",
		SellPrice: model.NewMoney("45.50", "USD"),
	}}
	c.Put(ctx, key, in, time.Minute)
	assert.True(t, mr.Exists(key.String()))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(501), got[0].ID)
	assert.True(t, got[0].SellPrice.Amount.Equal(in[0].SellPrice.Amount))
}

func TestRedis_Expiration(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := ListKey("aggregator", OpListAll, testRange())

	c.Put(ctx, key, []model.Experience{{ID: 1}}, 200*time.Millisecond)
	mr.FastForward(300 * time.Millisecond)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedis_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := ListKey("aggregator", OpListAll, testRange())

	require.NoError(t, mr.Set(key.String(), "{not json"))
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedis_UnavailableIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := ListKey("aggregator", OpListAll, testRange())
	mr.Close()

	c.Put(ctx, key, []model.Experience{{ID: 1}}, time.Minute)
	_, ok := c.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	key := ListKey("aggregator", OpListAll, testRange())

	c.Put(ctx, key, []model.Experience{{ID: 1}}, time.Minute)
	c.Delete(ctx, key)
	assert.False(t, mr.Exists(key.String()))
}
