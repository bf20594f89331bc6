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

package propagation

import (
	"context"

	"github.com/cardinalhq/hiercfg/internal/effcache"
	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

// Tx is the set of collaborators visible inside one transaction. Outside
// a transaction the same methods read and write committed state.
type Tx interface {
	Nodes() hierarchy.Store
	Domain() hierarchy.Domain
	Cache() effcache.Cache
}

// Backend is a transactional home for nodes, domain entities and the
// effective config cache.
type Backend interface {
	Tx
	// InTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise. A commit failure is returned as-is.
	InTx(ctx context.Context, fn func(Tx) error) error
}
