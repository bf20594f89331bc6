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
)

type Querier interface {
	DeleteCacheEntries(ctx context.Context, cacheKeys []string) error
	ExpireCacheEntries(ctx context.Context, arg ExpireCacheEntriesParams) error
	FanOutFromClient(ctx context.Context, clientID string) ([]FanOutRow, error)
	FanOutFromGlobal(ctx context.Context) ([]FanOutRow, error)
	FanOutFromProject(ctx context.Context, projectID string) ([]string, error)
	GetAgentAncestry(ctx context.Context, id string) (GetAgentAncestryRow, error)
	GetAgentContextConfig(ctx context.Context, id string) ([]byte, error)
	GetCacheEntry(ctx context.Context, cacheKey string) (ConfigCache, error)
	GetContextNode(ctx context.Context, arg GetContextNodeParams) (ContextHierarchy, error)
	GetContextNodes(ctx context.Context, arg GetContextNodesParams) ([]ContextHierarchy, error)
	GetProjectClientID(ctx context.Context, id string) (string, error)
	ListCacheEntries(ctx context.Context) ([]ConfigCache, error)
	PutCacheEntry(ctx context.Context, arg PutCacheEntryParams) error
	SetAgentContextConfig(ctx context.Context, arg SetAgentContextConfigParams) (int64, error)
	SoftDeleteAgentInstance(ctx context.Context, id string) (int64, error)
	SoftDeleteClient(ctx context.Context, id string) (int64, error)
	SoftDeleteProject(ctx context.Context, id string) (int64, error)
	UpsertAgentInstance(ctx context.Context, arg UpsertAgentInstanceParams) error
	UpsertClient(ctx context.Context, arg UpsertClientParams) error
	UpsertContextNode(ctx context.Context, arg UpsertContextNodeParams) error
	UpsertProject(ctx context.Context, arg UpsertProjectParams) error
}

var _ Querier = (*Queries)(nil)
