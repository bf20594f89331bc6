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

// Package seed loads domain entities and configuration nodes from YAML.
package seed

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
	"github.com/cardinalhq/hiercfg/internal/logctx"
	"github.com/cardinalhq/hiercfg/internal/propagation"
)

// File is the on-disk seed format.
type File struct {
	Clients  []hierarchy.Client  `yaml:"clients"`
	Projects []hierarchy.Project `yaml:"projects"`
	Agents   []hierarchy.Agent   `yaml:"agents"`
	Nodes    []Node              `yaml:"nodes"`
}

// Node is one configuration write. The propagation flags default to true.
type Node struct {
	Level                  string            `yaml:"level"`
	EntityID               string            `yaml:"entity_id"`
	Configuration          hierarchy.Config  `yaml:"configuration"`
	Overrides              hierarchy.Config  `yaml:"overrides"`
	Metadata               *hierarchy.Config `yaml:"metadata"`
	PropagateToChildren    *bool             `yaml:"propagate_to_children"`
	PreserveLocalOverrides *bool             `yaml:"preserve_local_overrides"`
}

func (n Node) request() (propagation.Request, error) {
	level, err := hierarchy.ParseLevel(n.Level)
	if err != nil {
		return propagation.Request{}, err
	}
	entityID := n.EntityID
	if level == hierarchy.LevelGlobal && entityID == "" {
		entityID = hierarchy.GlobalEntityID
	}
	req := propagation.NewRequest(hierarchy.Ref(level, entityID), n.Configuration, n.Overrides)
	req.Metadata = n.Metadata
	if n.PropagateToChildren != nil {
		req.PropagateToChildren = *n.PropagateToChildren
	}
	if n.PreserveLocalOverrides != nil {
		req.PreserveLocalOverrides = *n.PreserveLocalOverrides
	}
	return req, nil
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate reports every malformed entry and every duplicate id.
func (f *File) Validate() error {
	var errs *multierror.Error
	seen := map[hierarchy.EntityRef]bool{}
	dup := func(ref hierarchy.EntityRef) {
		if seen[ref] {
			errs = multierror.Append(errs, fmt.Errorf("duplicate %s", ref))
		}
		seen[ref] = true
	}

	for _, c := range f.Clients {
		if err := c.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		dup(hierarchy.Ref(hierarchy.LevelClient, c.ID))
	}
	for _, p := range f.Projects {
		if err := p.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		dup(hierarchy.Ref(hierarchy.LevelProject, p.ID))
	}
	for _, a := range f.Agents {
		if err := a.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		dup(hierarchy.Ref(hierarchy.LevelAgent, a.ID))
	}

	nodes := map[hierarchy.EntityRef]bool{}
	for i, n := range f.Nodes {
		req, err := n.request()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("nodes[%d]: %w", i, err))
			continue
		}
		if err := req.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("nodes[%d]: %w", i, err))
			continue
		}
		if nodes[req.Ref()] {
			errs = multierror.Append(errs, fmt.Errorf("nodes[%d]: duplicate node %s", i, req.Ref()))
		}
		nodes[req.Ref()] = true
	}
	return errs.ErrorOrNil()
}

// Propagator is the part of the engine seeding needs.
type Propagator interface {
	Propagate(ctx context.Context, req propagation.Request) (propagation.Result, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Clients  int                  `json:"clients"`
	Projects int                  `json:"projects"`
	Agents   int                  `json:"agents"`
	Results  []propagation.Result `json:"propagations"`
}

// Apply loads the domain entities, then writes the nodes root level first
// so every propagation sees its ancestors already in place.
func (f *File) Apply(ctx context.Context, domain hierarchy.DomainWriter, p Propagator) (Summary, error) {
	var sum Summary
	for _, c := range f.Clients {
		if err := domain.UpsertClient(ctx, c); err != nil {
			return sum, fmt.Errorf("client %s: %w", c.ID, err)
		}
		sum.Clients++
	}
	for _, pr := range f.Projects {
		if err := domain.UpsertProject(ctx, pr); err != nil {
			return sum, fmt.Errorf("project %s: %w", pr.ID, err)
		}
		sum.Projects++
	}
	for _, a := range f.Agents {
		if err := domain.UpsertAgent(ctx, a); err != nil {
			return sum, fmt.Errorf("agent %s: %w", a.ID, err)
		}
		sum.Agents++
	}

	reqs := make([]propagation.Request, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		req, err := n.request()
		if err != nil {
			return sum, err
		}
		reqs = append(reqs, req)
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Level < reqs[j].Level })

	for _, req := range reqs {
		res, err := p.Propagate(ctx, req)
		if err != nil {
			return sum, fmt.Errorf("node %s: %w", req.Ref(), err)
		}
		sum.Results = append(sum.Results, res)
	}

	logctx.FromContext(ctx).Info("seed applied",
		"clients", sum.Clients,
		"projects", sum.Projects,
		"agents", sum.Agents,
		"nodes", len(sum.Results))
	return sum, nil
}
