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
	"time"
)

type Client struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type Project struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type AgentInstance struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	ProjectID     *string    `json:"project_id"`
	Name          string     `json:"name"`
	ContextConfig []byte     `json:"context_config"`
	DeletedAt     *time.Time `json:"deleted_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ContextHierarchy struct {
	Level          string    `json:"level"`
	EntityID       string    `json:"entity_id"`
	Configuration  []byte    `json:"configuration"`
	Overrides      []byte    `json:"overrides"`
	ParentLevel    *string   `json:"parent_level"`
	ParentEntityID *string   `json:"parent_entity_id"`
	Metadata       []byte    `json:"metadata"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConfigCache struct {
	CacheKey        string    `json:"cache_key"`
	CachedValue     []byte    `json:"cached_value"`
	ComputedAt      time.Time `json:"computed_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	HitCount        int64     `json:"hit_count"`
	CacheTtlSeconds int32     `json:"cache_ttl_seconds"`
}
