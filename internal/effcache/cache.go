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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

// DefaultTTL is how long a computed effective configuration stays fresh.
const DefaultTTL = 5 * time.Minute

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("effective config cache miss")

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Entry is one cached effective configuration.
type Entry struct {
	Key        string           `json:"cache_key"`
	Value      hierarchy.Config `json:"effective_config"`
	ComputedAt time.Time        `json:"computed_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	HitCount   int64            `json:"hit_count"`
}

// FreshAt reports whether the entry is still fresh at t.
func (e Entry) FreshAt(t time.Time) bool {
	return t.Before(e.ExpiresAt)
}

// Cache stores effective configurations keyed by "level:entity_id".
type Cache interface {
	// Get returns the entry and whether it is still fresh. A missing key
	// yields ErrMiss. Stale entries are returned, not hidden.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put stores value with expiry now+ttl. Replacing an existing entry
	// increments its hit count.
	Put(ctx context.Context, key string, value hierarchy.Config, ttl time.Duration) error
	// Expire marks entries stale by setting their expiry to now. Unknown
	// keys are ignored.
	Expire(ctx context.Context, keys []string) error
	// Delete removes entries. Unknown keys are ignored.
	Delete(ctx context.Context, keys []string) error
}

// Policy selects how entries are invalidated after a propagation.
type Policy int

const (
	// PolicyExpire keeps entries around but marks them stale.
	PolicyExpire Policy = iota
	// PolicyDelete removes entries outright.
	PolicyDelete
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "expire":
		return PolicyExpire, nil
	case "delete":
		return PolicyDelete, nil
	}
	return 0, fmt.Errorf("unknown cache invalidation policy %q", s)
}

func (p Policy) String() string {
	switch p {
	case PolicyExpire:
		return "expire"
	case PolicyDelete:
		return "delete"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Invalidate applies policy to keys.
func Invalidate(ctx context.Context, c Cache, policy Policy, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if policy == PolicyDelete {
		return c.Delete(ctx, keys)
	}
	return c.Expire(ctx, keys)
}
