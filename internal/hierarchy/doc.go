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

// Package hierarchy models the four-level configuration hierarchy and
// computes effective configuration from an ancestor chain.
//
// # Levels
//
// Levels are ordered global -> client -> project -> agent. There is exactly
// one global entity, identified by GlobalEntityID. The legacy name "arka" is
// accepted as an alias for the global level when parsing.
//
// # Nodes
//
// A ConfigNode holds the base configuration and the overrides declared at
// one (level, entity_id). Both are opaque ordered maps (Config) of string
// keys to tagged-union values (Value).
//
// # Chains
//
// The ancestor chain of an entity is derived structurally from its level and
// its client/project ancestry, never by following parent pointers stored on
// the nodes. Missing ancestor nodes contribute nothing.
//
// # Resolution
//
// Resolve walks a chain root-first and shallow-merges configuration then
// overrides at each level. With preserveLocalOverrides the target level's
// own configuration is skipped and its overrides are applied last.
package hierarchy
