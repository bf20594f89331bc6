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
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityRef addresses one entity at one level.
type EntityRef struct {
	Level    Level  `json:"level"`
	EntityID string `json:"entity_id"`
}

// GlobalRef is the reference of the single global node.
func GlobalRef() EntityRef {
	return EntityRef{Level: LevelGlobal, EntityID: GlobalEntityID}
}

// Ref is shorthand for EntityRef{Level: level, EntityID: id}.
func Ref(level Level, id string) EntityRef {
	return EntityRef{Level: level, EntityID: id}
}

// CacheKey is "level:entity_id".
func (r EntityRef) CacheKey() string {
	return r.Level.String() + ":" + r.EntityID
}

func (r EntityRef) String() string {
	return r.CacheKey()
}

// Validate checks that the level is known and the id is present.
func (r EntityRef) Validate() error {
	if !r.Level.Valid() {
		return fmt.Errorf("invalid level %d", int(r.Level))
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return fmt.Errorf("entity_id is required for level %s", r.Level)
	}
	return nil
}

// ParseCacheKey is the inverse of EntityRef.CacheKey.
func ParseCacheKey(key string) (EntityRef, error) {
	levelName, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return EntityRef{}, fmt.Errorf("malformed cache key %q", key)
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return EntityRef{}, fmt.Errorf("malformed cache key %q: %w", key, err)
	}
	return Ref(level, id), nil
}

// SortRefs orders refs root level first, then by entity id.
func SortRefs(refs []EntityRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Level != refs[j].Level {
			return refs[i].Level < refs[j].Level
		}
		return refs[i].EntityID < refs[j].EntityID
	})
}

// ConfigNode is the configuration declared at one (level, entity_id).
type ConfigNode struct {
	Level         Level      `json:"level"`
	EntityID      string     `json:"entity_id"`
	Configuration Config     `json:"configuration"`
	Overrides     Config     `json:"overrides"`
	Parent        *EntityRef `json:"parent,omitempty"`
	Metadata      Config     `json:"metadata"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (n ConfigNode) Ref() EntityRef {
	return Ref(n.Level, n.EntityID)
}

// Clone deep-copies the maps of the node.
func (n ConfigNode) Clone() ConfigNode {
	out := n
	out.Configuration = n.Configuration.Clone()
	out.Overrides = n.Overrides.Clone()
	out.Metadata = n.Metadata.Clone()
	if n.Parent != nil {
		p := *n.Parent
		out.Parent = &p
	}
	return out
}

// Ancestry is what the domain model knows about an entity's parents.
// Empty ids mean the level does not apply or is unknown.
type Ancestry struct {
	ClientID  string `json:"client_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// Chain is an ancestor chain ordered root first.
type Chain []ConfigNode

// Sort orders the chain root first. Nodes at the same level keep their
// relative order.
func (c Chain) Sort() {
	sort.SliceStable(c, func(i, j int) bool {
		return c[i].Level < c[j].Level
	})
}

// Node returns the node at level, if present.
func (c Chain) Node(level Level) (ConfigNode, bool) {
	for _, n := range c {
		if n.Level == level {
			return n, true
		}
	}
	return ConfigNode{}, false
}

// ChainRefs lists the refs making up the ancestor chain of ref, root first.
// Ancestor levels whose id is unknown are left out.
func ChainRefs(ref EntityRef, anc Ancestry) []EntityRef {
	refs := []EntityRef{GlobalRef()}
	switch ref.Level {
	case LevelGlobal:
		return refs
	case LevelClient:
		return append(refs, ref)
	case LevelProject:
		if anc.ClientID != "" {
			refs = append(refs, Ref(LevelClient, anc.ClientID))
		}
		return append(refs, ref)
	case LevelAgent:
		if anc.ClientID != "" {
			refs = append(refs, Ref(LevelClient, anc.ClientID))
		}
		if anc.ProjectID != "" {
			refs = append(refs, Ref(LevelProject, anc.ProjectID))
		}
		return append(refs, ref)
	}
	return nil
}
