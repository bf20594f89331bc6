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

// Resolve computes the effective configuration of the target level from a
// chain ordered root first.
//
// Each node contributes its configuration and then its overrides. When
// preserveLocalOverrides is set, the node at targetLevel contributes only
// its overrides, and they are applied after every other node. Its base
// configuration is not merged at all in that mode.
//
// TODO: confirm with the hierarchy owners whether preserve mode should merge
// the target's configuration before the deferred overrides; today it is
// dropped and ancestors' values win for those keys.
func Resolve(chain Chain, targetLevel Level, preserveLocalOverrides bool) Config {
	var effective Config
	var localOverrides Config

	for _, node := range chain {
		if preserveLocalOverrides && node.Level == targetLevel {
			localOverrides = node.Overrides
			continue
		}
		effective.Merge(node.Configuration)
		effective.Merge(node.Overrides)
	}

	if preserveLocalOverrides {
		effective.Merge(localOverrides)
	}
	return effective
}
