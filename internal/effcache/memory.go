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
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

// Memory is an in-process Cache. Freshness is tracked on each Entry;
// the underlying ttlcache only evicts entries that have sat unchanged
// for longer than the retention period.
type Memory struct {
	mu        sync.Mutex
	cache     *ttlcache.Cache[string, Entry]
	now       Clock
	retention time.Duration
}

var _ Cache = (*Memory)(nil)

type MemoryOption func(*Memory)

// WithClock overrides time.Now.
func WithClock(now Clock) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithRetention evicts entries this long after they were last written.
// Zero keeps entries until they are deleted.
func WithRetention(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.retention = d
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	ttl := ttlcache.NoTTL
	if m.retention > 0 {
		ttl = m.retention
	}
	m.cache = ttlcache.New(
		ttlcache.WithTTL[string, Entry](ttl),
		ttlcache.WithDisableTouchOnHit[string, Entry](),
	)
	if m.retention > 0 {
		go m.cache.Start()
	}
	return m
}

// Close stops the eviction goroutine, if any.
func (m *Memory) Close() {
	if m.retention > 0 {
		m.cache.Stop()
	}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	item := m.cache.Get(key)
	if item == nil {
		return Entry{}, false, ErrMiss
	}
	e := item.Value()
	e.Value = e.Value.Clone()
	return e, e.FreshAt(m.now()), nil
}

func (m *Memory) Put(_ context.Context, key string, value hierarchy.Config, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := Entry{
		Key:        key,
		Value:      value.Clone(),
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	if prev := m.cache.Get(key); prev != nil {
		e.HitCount = prev.Value().HitCount + 1
	}
	m.cache.Set(key, e, ttlcache.DefaultTTL)
	return nil
}

func (m *Memory) Expire(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, key := range keys {
		item := m.cache.Get(key)
		if item == nil {
			continue
		}
		e := item.Value()
		e.ExpiresAt = now
		m.cache.Set(key, e, ttlcache.DefaultTTL)
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		m.cache.Delete(key)
	}
	return nil
}

// Restore stores e exactly as given. Transactional stores use it to
// publish entries staged during a transaction.
func (m *Memory) Restore(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(e.Key, e, ttlcache.DefaultTTL)
}

// Entries returns every retained entry, sorted by key.
func (m *Memory) Entries() []Entry {
	items := m.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := items[k].Value()
		e.Value = e.Value.Clone()
		out = append(out, e)
	}
	return out
}

func (m *Memory) Len() int {
	return m.cache.Len()
}
