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

package configdb

import (
	"context"
	"time"
)

const getCacheEntry = `-- name: GetCacheEntry :one
SELECT cache_key, cached_value, computed_at, expires_at, hit_count, cache_ttl_seconds
FROM config_cache
WHERE cache_key = $1
`

func (q *Queries) GetCacheEntry(ctx context.Context, cacheKey string) (ConfigCache, error) {
	row := q.db.QueryRow(ctx, getCacheEntry, cacheKey)
	var i ConfigCache
	err := row.Scan(
		&i.CacheKey,
		&i.CachedValue,
		&i.ComputedAt,
		&i.ExpiresAt,
		&i.HitCount,
		&i.CacheTtlSeconds,
	)
	return i, err
}

const putCacheEntry = `-- name: PutCacheEntry :exec
INSERT INTO config_cache (cache_key, cached_value, computed_at, expires_at, hit_count, cache_ttl_seconds)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (cache_key) DO UPDATE SET
  cached_value      = EXCLUDED.cached_value,
  computed_at       = EXCLUDED.computed_at,
  expires_at        = EXCLUDED.expires_at,
  cache_ttl_seconds = EXCLUDED.cache_ttl_seconds,
  hit_count         = config_cache.hit_count + 1
`

type PutCacheEntryParams struct {
	CacheKey        string    `json:"cache_key"`
	CachedValue     []byte    `json:"cached_value"`
	ComputedAt      time.Time `json:"computed_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	CacheTtlSeconds int32     `json:"cache_ttl_seconds"`
}

func (q *Queries) PutCacheEntry(ctx context.Context, arg PutCacheEntryParams) error {
	_, err := q.db.Exec(ctx, putCacheEntry,
		arg.CacheKey,
		arg.CachedValue,
		arg.ComputedAt,
		arg.ExpiresAt,
		arg.CacheTtlSeconds,
	)
	return err
}

const expireCacheEntries = `-- name: ExpireCacheEntries :exec
UPDATE config_cache SET expires_at = $1
WHERE cache_key = ANY($2::text[])
`

type ExpireCacheEntriesParams struct {
	Now       time.Time `json:"now"`
	CacheKeys []string  `json:"cache_keys"`
}

func (q *Queries) ExpireCacheEntries(ctx context.Context, arg ExpireCacheEntriesParams) error {
	_, err := q.db.Exec(ctx, expireCacheEntries, arg.Now, arg.CacheKeys)
	return err
}

const deleteCacheEntries = `-- name: DeleteCacheEntries :exec
DELETE FROM config_cache WHERE cache_key = ANY($1::text[])
`

func (q *Queries) DeleteCacheEntries(ctx context.Context, cacheKeys []string) error {
	_, err := q.db.Exec(ctx, deleteCacheEntries, cacheKeys)
	return err
}

const listCacheEntries = `-- name: ListCacheEntries :many
SELECT cache_key, cached_value, computed_at, expires_at, hit_count, cache_ttl_seconds
FROM config_cache
ORDER BY cache_key
`

func (q *Queries) ListCacheEntries(ctx context.Context) ([]ConfigCache, error) {
	rows, err := q.db.Query(ctx, listCacheEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ConfigCache
	for rows.Next() {
		var i ConfigCache
		if err := rows.Scan(
			&i.CacheKey,
			&i.CachedValue,
			&i.ComputedAt,
			&i.ExpiresAt,
			&i.HitCount,
			&i.CacheTtlSeconds,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
