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

const upsertClient = `-- name: UpsertClient :exec
INSERT INTO clients (id, name, deleted_at)
VALUES ($1, $2, CASE WHEN $3::bool THEN now() END)
ON CONFLICT (id) DO UPDATE SET
  name       = EXCLUDED.name,
  deleted_at = CASE WHEN $3::bool THEN COALESCE(clients.deleted_at, now()) END
`

type UpsertClientParams struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

func (q *Queries) UpsertClient(ctx context.Context, arg UpsertClientParams) error {
	_, err := q.db.Exec(ctx, upsertClient, arg.ID, arg.Name, arg.Deleted)
	return err
}

const upsertProject = `-- name: UpsertProject :exec
INSERT INTO projects (id, client_id, name, deleted_at)
VALUES ($1, $2, $3, CASE WHEN $4::bool THEN now() END)
ON CONFLICT (id) DO UPDATE SET
  client_id  = EXCLUDED.client_id,
  name       = EXCLUDED.name,
  deleted_at = CASE WHEN $4::bool THEN COALESCE(projects.deleted_at, now()) END
`

type UpsertProjectParams struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Deleted  bool   `json:"deleted"`
}

func (q *Queries) UpsertProject(ctx context.Context, arg UpsertProjectParams) error {
	_, err := q.db.Exec(ctx, upsertProject, arg.ID, arg.ClientID, arg.Name, arg.Deleted)
	return err
}

const upsertAgentInstance = `-- name: UpsertAgentInstance :exec
INSERT INTO agent_instances (id, client_id, project_id, name, deleted_at)
VALUES ($1, $2, $3, $4, CASE WHEN $5::bool THEN now() END)
ON CONFLICT (id) DO UPDATE SET
  client_id  = EXCLUDED.client_id,
  project_id = EXCLUDED.project_id,
  name       = EXCLUDED.name,
  deleted_at = CASE WHEN $5::bool THEN COALESCE(agent_instances.deleted_at, now()) END,
  updated_at = now()
`

type UpsertAgentInstanceParams struct {
	ID        string  `json:"id"`
	ClientID  string  `json:"client_id"`
	ProjectID *string `json:"project_id"`
	Name      string  `json:"name"`
	Deleted   bool    `json:"deleted"`
}

func (q *Queries) UpsertAgentInstance(ctx context.Context, arg UpsertAgentInstanceParams) error {
	_, err := q.db.Exec(ctx, upsertAgentInstance,
		arg.ID,
		arg.ClientID,
		arg.ProjectID,
		arg.Name,
		arg.Deleted,
	)
	return err
}

const getProjectClientID = `-- name: GetProjectClientID :one
SELECT client_id FROM projects WHERE id = $1
`

func (q *Queries) GetProjectClientID(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRow(ctx, getProjectClientID, id)
	var clientID string
	err := row.Scan(&clientID)
	return clientID, err
}

const getAgentAncestry = `-- name: GetAgentAncestry :one
SELECT client_id, project_id FROM agent_instances WHERE id = $1
`

type GetAgentAncestryRow struct {
	ClientID  string  `json:"client_id"`
	ProjectID *string `json:"project_id"`
}

func (q *Queries) GetAgentAncestry(ctx context.Context, id string) (GetAgentAncestryRow, error) {
	row := q.db.QueryRow(ctx, getAgentAncestry, id)
	var i GetAgentAncestryRow
	err := row.Scan(&i.ClientID, &i.ProjectID)
	return i, err
}

const setAgentContextConfig = `-- name: SetAgentContextConfig :execrows
UPDATE agent_instances
SET context_config = $1, updated_at = now()
WHERE id = $2
`

type SetAgentContextConfigParams struct {
	ContextConfig []byte `json:"context_config"`
	ID            string `json:"id"`
}

func (q *Queries) SetAgentContextConfig(ctx context.Context, arg SetAgentContextConfigParams) (int64, error) {
	result, err := q.db.Exec(ctx, setAgentContextConfig, arg.ContextConfig, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getAgentContextConfig = `-- name: GetAgentContextConfig :one
SELECT context_config FROM agent_instances WHERE id = $1
`

func (q *Queries) GetAgentContextConfig(ctx context.Context, id string) ([]byte, error) {
	row := q.db.QueryRow(ctx, getAgentContextConfig, id)
	var contextConfig []byte
	err := row.Scan(&contextConfig)
	return contextConfig, err
}

const softDeleteClient = `-- name: SoftDeleteClient :execrows
UPDATE clients SET deleted_at = COALESCE(deleted_at, now()) WHERE id = $1
`

func (q *Queries) SoftDeleteClient(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, softDeleteClient, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const softDeleteProject = `-- name: SoftDeleteProject :execrows
UPDATE projects SET deleted_at = COALESCE(deleted_at, now()) WHERE id = $1
`

func (q *Queries) SoftDeleteProject(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, softDeleteProject, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const softDeleteAgentInstance = `-- name: SoftDeleteAgentInstance :execrows
UPDATE agent_instances SET deleted_at = COALESCE(deleted_at, now()), updated_at = now() WHERE id = $1
`

func (q *Queries) SoftDeleteAgentInstance(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, softDeleteAgentInstance, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
