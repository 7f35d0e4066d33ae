package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/keys"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

var plateau = model.Coordinate{Lat: 45.5236, Lon: -73.5830}

func TestMemory_GetPut(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if _, ok, _ := c.Get(ctx, "H2J2J9"); ok {
		t.Fatal("empty cache must miss")
	}
	if err := c.Put(ctx, "H2J2J9", plateau); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get(ctx, "H2J2J9")
	if err != nil || !ok || got != plateau {
		t.Fatalf("Get=%v ok=%v err=%v", got, ok, err)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("K%02d", i%8)
			_ = c.Put(ctx, key, plateau)
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Len() != 8 {
		t.Fatalf("Len=%d want 8", c.Len())
	}
}

func TestLRU_EvictsOnlyByCapacity(t *testing.T) {
	c, err := NewLRU(2)
	if err != nil {
		t.Fatalf("NewLRU: %v", err)
	}
	ctx := context.Background()

	_ = c.Put(ctx, "A1A1A1", plateau)
	_ = c.Put(ctx, "B2B2B2", plateau)
	// touch A so B is the least recently used
	if _, ok, _ := c.Get(ctx, "A1A1A1"); !ok {
		t.Fatal("expected hit")
	}
	_ = c.Put(ctx, "C3C3C3", plateau)

	if _, ok, _ := c.Get(ctx, "B2B2B2"); ok {
		t.Fatal("B should be evicted")
	}
	if _, ok, _ := c.Get(ctx, "A1A1A1"); !ok {
		t.Fatal("A should survive")
	}
	if c.Len() != 2 {
		t.Fatalf("Len=%d want 2", c.Len())
	}
}

func TestLRU_DefaultSize(t *testing.T) {
	if _, err := NewLRU(0); err != nil {
		t.Fatalf("NewLRU(0): %v", err)
	}
}

func newRedisCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedis(rc, 250*time.Millisecond), mr
}

func TestRedis_RoundTripWithoutTTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "H2J2J9"); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "H2J2J9", plateau); err != nil {
		t.Fatalf("Put: %v", err)
	}

	key := keys.Geocode("ca", "H2J2J9")
	if !mr.Exists(key) {
		t.Fatalf("key %s not written", key)
	}
	if ttl := mr.TTL(key); ttl != 0 {
		t.Fatalf("TTL=%v want none", ttl)
	}

	got, ok, err := c.Get(ctx, "H2J2J9")
	if err != nil || !ok || got != plateau {
		t.Fatalf("Get=%v ok=%v err=%v", got, ok, err)
	}
}

func TestRedis_CorruptValueIsError(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	_ = mr.Set(keys.Geocode("ca", "H2J2J9"), "not-json")
	if _, ok, err := c.Get(ctx, "H2J2J9"); ok || err == nil {
		t.Fatalf("expected decode error, ok=%v err=%v", ok, err)
	}

	_ = mr.Set(keys.Geocode("ca", "H3Z2Y7"), `{"lat":123,"lon":0}`)
	if _, ok, err := c.Get(ctx, "H3Z2Y7"); ok || err == nil {
		t.Fatalf("expected range error, ok=%v err=%v", ok, err)
	}
}

func TestRedis_ServerDownIsError(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	if _, ok, err := c.Get(context.Background(), "H2J2J9"); ok || err == nil {
		t.Fatalf("expected error when redis is down, ok=%v err=%v", ok, err)
	}
	if err := c.Put(context.Background(), "H2J2J9", plateau); err == nil {
		t.Fatal("expected Put error when redis is down")
	}
}
