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
	"strings"
)

// Level is one rung of the hierarchy. The zero value is invalid.
type Level int

const (
	LevelGlobal Level = iota + 1
	LevelClient
	LevelProject
	LevelAgent
)

// GlobalEntityID is the entity id of the single global node.
const GlobalEntityID = "global"

// Levels lists every valid level, root first.
var Levels = []Level{LevelGlobal, LevelClient, LevelProject, LevelAgent}

// ParseLevel parses a level name. "arka" is accepted for global.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "arka":
		return LevelGlobal, nil
	case "client":
		return LevelClient, nil
	case "project":
		return LevelProject, nil
	case "agent":
		return LevelAgent, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	return l >= LevelGlobal && l <= LevelAgent
}

func (l Level) String() string {
	switch l {
	case LevelGlobal:
		return "global"
	case LevelClient:
		return "client"
	case LevelProject:
		return "project"
	case LevelAgent:
		return "agent"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Parent returns the level directly above l. Global has no parent.
func (l Level) Parent() (Level, bool) {
	if l <= LevelGlobal || !l.Valid() {
		return 0, false
	}
	return l - 1, true
}

// IsAncestorOf reports whether l sits strictly above other.
func (l Level) IsAncestorOf(other Level) bool {
	return l.Valid() && other.Valid() && l < other
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
