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

const getContextNode = `-- name: GetContextNode :one
SELECT level, entity_id, configuration, overrides, parent_level, parent_entity_id, metadata, created_at, updated_at
FROM context_hierarchy
WHERE level = $1 AND entity_id = $2
`

type GetContextNodeParams struct {
	Level    string `json:"level"`
	EntityID string `json:"entity_id"`
}

func (q *Queries) GetContextNode(ctx context.Context, arg GetContextNodeParams) (ContextHierarchy, error) {
	row := q.db.QueryRow(ctx, getContextNode, arg.Level, arg.EntityID)
	var i ContextHierarchy
	err := row.Scan(
		&i.Level,
		&i.EntityID,
		&i.Configuration,
		&i.Overrides,
		&i.ParentLevel,
		&i.ParentEntityID,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getContextNodes = `-- name: GetContextNodes :many
SELECT h.level, h.entity_id, h.configuration, h.overrides, h.parent_level, h.parent_entity_id, h.metadata, h.created_at, h.updated_at
FROM context_hierarchy h
JOIN unnest($1::text[], $2::text[]) AS want(level, entity_id)
  ON h.level = want.level AND h.entity_id = want.entity_id
`

type GetContextNodesParams struct {
	Levels    []string `json:"levels"`
	EntityIds []string `json:"entity_ids"`
}

func (q *Queries) GetContextNodes(ctx context.Context, arg GetContextNodesParams) ([]ContextHierarchy, error) {
	rows, err := q.db.Query(ctx, getContextNodes, arg.Levels, arg.EntityIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ContextHierarchy
	for rows.Next() {
		var i ContextHierarchy
		if err := rows.Scan(
			&i.Level,
			&i.EntityID,
			&i.Configuration,
			&i.Overrides,
			&i.ParentLevel,
			&i.ParentEntityID,
			&i.Metadata,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const upsertContextNode = `-- name: UpsertContextNode :exec
INSERT INTO context_hierarchy (
  level, entity_id, configuration, overrides, parent_level, parent_entity_id, metadata, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $8
)
ON CONFLICT (level, entity_id) DO UPDATE SET
  configuration    = EXCLUDED.configuration,
  overrides        = EXCLUDED.overrides,
  parent_level     = EXCLUDED.parent_level,
  parent_entity_id = EXCLUDED.parent_entity_id,
  metadata         = EXCLUDED.metadata,
  updated_at       = EXCLUDED.updated_at
`

type UpsertContextNodeParams struct {
	Level          string    `json:"level"`
	EntityID       string    `json:"entity_id"`
	Configuration  []byte    `json:"configuration"`
	Overrides      []byte    `json:"overrides"`
	ParentLevel    *string   `json:"parent_level"`
	ParentEntityID *string   `json:"parent_entity_id"`
	Metadata       []byte    `json:"metadata"`
	Now            time.Time `json:"now"`
}

func (q *Queries) UpsertContextNode(ctx context.Context, arg UpsertContextNodeParams) error {
	_, err := q.db.Exec(ctx, upsertContextNode,
		arg.Level,
		arg.EntityID,
		arg.Configuration,
		arg.Overrides,
		arg.ParentLevel,
		arg.ParentEntityID,
		arg.Metadata,
		arg.Now,
	)
	return err
}

const fanOutFromGlobal = `-- name: FanOutFromGlobal :many
SELECT 'client'::text AS level, id AS entity_id FROM clients WHERE deleted_at IS NULL
UNION ALL
SELECT 'project'::text, id FROM projects WHERE deleted_at IS NULL
UNION ALL
SELECT 'agent'::text, id FROM agent_instances WHERE deleted_at IS NULL
`

type FanOutRow struct {
	Level    string `json:"level"`
	EntityID string `json:"entity_id"`
}

func (q *Queries) FanOutFromGlobal(ctx context.Context) ([]FanOutRow, error) {
	return q.fanOut(ctx, fanOutFromGlobal)
}

const fanOutFromClient = `-- name: FanOutFromClient :many
SELECT 'project'::text AS level, id AS entity_id FROM projects
WHERE client_id = $1 AND deleted_at IS NULL
UNION ALL
SELECT 'agent'::text, id FROM agent_instances
WHERE client_id = $1 AND deleted_at IS NULL
`

func (q *Queries) FanOutFromClient(ctx context.Context, clientID string) ([]FanOutRow, error) {
	return q.fanOut(ctx, fanOutFromClient, clientID)
}

func (q *Queries) fanOut(ctx context.Context, sql string, args ...interface{}) ([]FanOutRow, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FanOutRow
	for rows.Next() {
		var i FanOutRow
		if err := rows.Scan(&i.Level, &i.EntityID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const fanOutFromProject = `-- name: FanOutFromProject :many
SELECT id FROM agent_instances
WHERE project_id = $1 AND deleted_at IS NULL
`

func (q *Queries) FanOutFromProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := q.db.Query(ctx, fanOutFromProject, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
