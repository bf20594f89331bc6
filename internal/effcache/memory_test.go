// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package effcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemory(WithClock(clock.Now)), clock
}

func TestMemory_GetMiss(t *testing.T) {
	m, _ := newTestMemory()
	_, _, err := m.Get(context.Background(), "agent:a1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_PutAndFreshness(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()
	cfg := hierarchy.NewConfig("lang", "fr")

	require.NoError(t, m.Put(ctx, "agent:a1", cfg, DefaultTTL))

	e, fresh, err := m.Get(ctx, "agent:a1")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "agent:a1", e.Key)
	assert.True(t, cfg.Equal(e.Value))
	assert.Equal(t, clock.t, e.ComputedAt)
	assert.Equal(t, clock.t.Add(DefaultTTL), e.ExpiresAt)
	assert.Equal(t, int64(0), e.HitCount)

	clock.Advance(DefaultTTL)
	_, fresh, err = m.Get(ctx, "agent:a1")
	require.NoError(t, err)
	assert.False(t, fresh, "an entry is stale once expires_at is reached")
}

func TestMemory_PutIncrementsHitCount(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Put(ctx, "client:c1", hierarchy.NewConfig("n", i), DefaultTTL))
	}
	e, _, err := m.Get(ctx, "client:c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.HitCount)
}

func TestMemory_ExpireKeepsEntry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory()
	cfg := hierarchy.NewConfig("k", "v")
	require.NoError(t, m.Put(ctx, "project:p1", cfg, DefaultTTL))

	clock.Advance(time.Minute)
	require.NoError(t, m.Expire(ctx, []string{"project:p1", "project:unknown"}))

	e, fresh, err := m.Get(ctx, "project:p1")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, clock.t, e.ExpiresAt)
	assert.True(t, cfg.Equal(e.Value), "soft invalidation keeps the value")

	_, _, err = m.Get(ctx, "project:unknown")
	assert.ErrorIs(t, err, ErrMiss, "expiring an unknown key does not create it")
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	require.NoError(t, m.Put(ctx, "global:global", hierarchy.Config{}, DefaultTTL))
	require.NoError(t, m.Delete(ctx, []string{"global:global", "nope"}))

	_, _, err := m.Get(ctx, "global:global")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	cfg := hierarchy.NewConfig("k", "v")
	require.NoError(t, m.Put(ctx, "agent:a1", cfg, DefaultTTL))
	cfg.Set("k", hierarchy.String("mutated"))

	e, _, err := m.Get(ctx, "agent:a1")
	require.NoError(t, err)
	e.Value.Set("other", hierarchy.Bool(true))

	again, _, err := m.Get(ctx, "agent:a1")
	require.NoError(t, err)
	assert.True(t, hierarchy.NewConfig("k", "v").Equal(again.Value))
}

func TestMemory_RestoreAndEntries(t *testing.T) {
	m, clock := newTestMemory()
	m.Restore(Entry{Key: "client:b", Value: hierarchy.NewConfig("x", 1), ExpiresAt: clock.t.Add(time.Second), HitCount: 7})
	m.Restore(Entry{Key: "client:a", ExpiresAt: clock.t})

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "client:a", entries[0].Key)
	assert.Equal(t, "client:b", entries[1].Key)
	assert.Equal(t, int64(7), entries[1].HitCount)
}

func TestMemory_Retention(t *testing.T) {
	m := NewMemory(WithRetention(20 * time.Millisecond))
	defer m.Close()

	require.NoError(t, m.Put(context.Background(), "agent:a1", hierarchy.Config{}, DefaultTTL))
	assert.Eventually(t, func() bool {
		_, _, err := m.Get(context.Background(), "agent:a1")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExpire, p)

	p, err = ParsePolicy("DELETE")
	require.NoError(t, err)
	assert.Equal(t, PolicyDelete, p)
	assert.Equal(t, "delete", p.String())

	_, err = ParsePolicy("evict")
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	keys := []string{"client:c1", "project:p1"}
	for _, k := range keys {
		require.NoError(t, m.Put(ctx, k, hierarchy.Config{}, DefaultTTL))
	}

	require.NoError(t, Invalidate(ctx, m, PolicyExpire, keys[:1]))
	_, fresh, err := m.Get(ctx, "client:c1")
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, Invalidate(ctx, m, PolicyDelete, keys[1:]))
	_, _, err = m.Get(ctx, "project:p1")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, Invalidate(ctx, m, PolicyDelete, nil))
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()
	c := Instrument(m, "test")
	assert.Same(t, c, Instrument(c, "test"))

	_, _, err := c.Get(ctx, "agent:a1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put(ctx, "agent:a1", hierarchy.NewConfig("k", 1), DefaultTTL))
	require.NoError(t, c.Expire(ctx, []string{"agent:a1"}))
	e, fresh, err := c.Get(ctx, "agent:a1")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "agent:a1", e.Key)
	require.NoError(t, c.Delete(ctx, []string{"agent:a1"}))
}
