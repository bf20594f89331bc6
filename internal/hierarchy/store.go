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

package hierarchy

import (
	"context"
)

// NodeReader performs point lookups of configuration nodes.
type NodeReader interface {
	// GetNode returns a *NotFoundError when no node exists for ref.
	GetNode(ctx context.Context, ref EntityRef) (ConfigNode, error)
	// GetNodes returns the nodes that exist among refs, in any order.
	GetNodes(ctx context.Context, refs []EntityRef) ([]ConfigNode, error)
}

// Store is the durable home of configuration nodes.
type Store interface {
	NodeReader
	// UpsertNode inserts or replaces the node for (level, entity_id) and
	// bumps updated_at.
	UpsertNode(ctx context.Context, node ConfigNode) error
	// FanOut lists every non-deleted descendant of ref.
	FanOut(ctx context.Context, ref EntityRef) ([]EntityRef, error)
}

// Domain is the read/write boundary to the entities that own the
// hierarchy: clients, projects and agents.
type Domain interface {
	// Ancestry returns the client/project a project or agent belongs to.
	// Global and client refs have an empty ancestry and are never looked up.
	// Unknown projects and agents yield a *NotFoundError.
	Ancestry(ctx context.Context, ref EntityRef) (Ancestry, error)
	// SetAgentContextConfig stores the resolved configuration on the agent.
	SetAgentContextConfig(ctx context.Context, agentID string, cfg Config) error
}

// GetChain fetches ref's node and every existing ancestor node, root first.
// When ref's own node is missing the ancestors are still returned together
// with a *NotFoundError so callers can decide whether that matters.
func GetChain(ctx context.Context, r NodeReader, ref EntityRef, anc Ancestry) (Chain, error) {
	refs := ChainRefs(ref, anc)
	nodes, err := r.GetNodes(ctx, refs)
	if err != nil {
		return nil, err
	}

	wanted := make(map[EntityRef]struct{}, len(refs))
	for _, want := range refs {
		wanted[want] = struct{}{}
	}

	chain := make(Chain, 0, len(nodes))
	targetFound := false
	for _, n := range nodes {
		if _, ok := wanted[n.Ref()]; !ok {
			continue
		}
		if n.Ref() == ref {
			targetFound = true
		}
		chain = append(chain, n)
	}
	chain.Sort()

	if !targetFound {
		return chain, &NotFoundError{Ref: ref}
	}
	return chain, nil
}
