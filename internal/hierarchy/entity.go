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
	"errors"
	"strings"
)

// Client, Project and Agent are the domain entities the hierarchy hangs
// off. Only the fields needed to walk ancestry are modelled.
type Client struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name"`
	Deleted bool   `json:"deleted,omitempty" yaml:"deleted"`
}

type Project struct {
	ID       string `json:"id" yaml:"id"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Name     string `json:"name,omitempty" yaml:"name"`
	Deleted  bool   `json:"deleted,omitempty" yaml:"deleted"`
}

type Agent struct {
	ID        string `json:"id" yaml:"id"`
	ClientID  string `json:"client_id" yaml:"client_id"`
	ProjectID string `json:"project_id,omitempty" yaml:"project_id"`
	Name      string `json:"name,omitempty" yaml:"name"`
	Deleted   bool   `json:"deleted,omitempty" yaml:"deleted"`
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("client id is required")
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return errors.New("project " + p.ID + ": client_id is required")
	}
	return nil
}

func (a Agent) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("agent id is required")
	}
	if strings.TrimSpace(a.ClientID) == "" {
		return errors.New("agent " + a.ID + ": client_id is required")
	}
	return nil
}

// DomainWriter loads domain entities. Upserts replace every field.
type DomainWriter interface {
	UpsertClient(ctx context.Context, c Client) error
	UpsertProject(ctx context.Context, p Project) error
	UpsertAgent(ctx context.Context, a Agent) error
}
