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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

var (
	lookupCounter metric.Int64Counter
	writeCounter  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/hiercfg/internal/effcache")

	var err error
	lookupCounter, err = meter.Int64Counter(
		"hiercfg.effcache.lookups",
		metric.WithDescription("Effective config cache lookups by result (fresh, stale, miss, error)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookupCounter counter: %w", err))
	}

	writeCounter, err = meter.Int64Counter(
		"hiercfg.effcache.writes",
		metric.WithDescription("Effective config cache writes by operation (put, expire, delete)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create writeCounter counter: %w", err))
	}
}

type instrumented struct {
	next Cache
	path attribute.KeyValue
}

// Instrument records lookup and write counters for c, tagged with the
// code path using it.
func Instrument(c Cache, path string) Cache {
	if already, ok := c.(*instrumented); ok {
		return already
	}
	return &instrumented{next: c, path: attribute.String("path", path)}
}

func (i *instrumented) Get(ctx context.Context, key string) (Entry, bool, error) {
	e, fresh, err := i.next.Get(ctx, key)
	result := "fresh"
	switch {
	case errors.Is(err, ErrMiss):
		result = "miss"
	case err != nil:
		result = "error"
	case !fresh:
		result = "stale"
	}
	lookupCounter.Add(ctx, 1, metric.WithAttributes(i.path, attribute.String("result", result)))
	return e, fresh, err
}

func (i *instrumented) Put(ctx context.Context, key string, value hierarchy.Config, ttl time.Duration) error {
	err := i.next.Put(ctx, key, value, ttl)
	i.recordWrite(ctx, "put", 1, err)
	return err
}

func (i *instrumented) Expire(ctx context.Context, keys []string) error {
	err := i.next.Expire(ctx, keys)
	i.recordWrite(ctx, "expire", len(keys), err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, keys []string) error {
	err := i.next.Delete(ctx, keys)
	i.recordWrite(ctx, "delete", len(keys), err)
	return err
}

func (i *instrumented) recordWrite(ctx context.Context, op string, n int, err error) {
	if err != nil || n == 0 {
		return
	}
	writeCounter.Add(ctx, int64(n), metric.WithAttributes(i.path, attribute.String("op", op)))
}
