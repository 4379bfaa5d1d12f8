package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_AllowUpToBurst(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	lim := newWithClock(Config{RequestsPerSecond: 10, Burst: 5}, clk.Now)

	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}

func TestLimiter_Refill(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	lim := newWithClock(Config{RequestsPerSecond: 10, Burst: 2}, clk.Now)

	for lim.Allow() {
	}
	clk.Advance(100 * time.Millisecond)
	assert.True(t, lim.Allow(), "one token refills after 1/rate seconds")
	assert.False(t, lim.Allow())
}

func TestLimiter_BurstCap(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	lim := newWithClock(Config{RequestsPerSecond: 1000, Burst: 3}, clk.Now)

	clk.Advance(time.Hour)
	allowed := 0
	for i := 0; i < 10; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestLimiter_ZeroBurstStillAllowsOne(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1})
	assert.True(t, lim.Allow())
}

func TestLimiter_WaitCancelled(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 0, Burst: 1})
	require.True(t, lim.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := lim.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_PerKeyIsolation(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 0, Burst: 1})

	assert.True(t, m.GetLimiter(ChainKey("routing_api", 1)).Allow())
	assert.False(t, m.GetLimiter(ChainKey("routing_api", 1)).Allow())
	assert.True(t, m.GetLimiter(ChainKey("routing_api", 137)).Allow(), "other chain has its own bucket")
}

func TestManager_Override(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 0, Burst: 1})
	m.Override("hot", Config{RequestsPerSecond: 0, Burst: 3})

	lim := m.GetLimiter("hot")
	allowed := 0
	for i := 0; i < 5; i++ {
		if lim.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestManager_SameLimiterConcurrent(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	var wg sync.WaitGroup
	got := make([]*Limiter, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetLimiter("k")
		}(i)
	}
	wg.Wait()
	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestChainKey(t *testing.T) {
	assert.Equal(t, "routing_api:80001", ChainKey("routing_api", 80001))
}
