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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

// Request describes one configuration write and how far it propagates.
type Request struct {
	Level         hierarchy.Level  `json:"level"`
	EntityID      string           `json:"entity_id"`
	Configuration hierarchy.Config `json:"configuration"`
	Overrides     hierarchy.Config `json:"overrides"`

	// Metadata and Parent replace the stored values when set and are
	// kept as-is otherwise.
	Metadata *hierarchy.Config    `json:"metadata,omitempty"`
	Parent   *hierarchy.EntityRef `json:"parent,omitempty"`

	PropagateToChildren    bool `json:"propagate_to_children"`
	PreserveLocalOverrides bool `json:"preserve_local_overrides"`
}

// NewRequest returns a request for ref with both propagation flags on.
func NewRequest(ref hierarchy.EntityRef, configuration, overrides hierarchy.Config) Request {
	return Request{
		Level:                  ref.Level,
		EntityID:               ref.EntityID,
		Configuration:          configuration,
		Overrides:              overrides,
		PropagateToChildren:    true,
		PreserveLocalOverrides: true,
	}
}

func (r Request) Ref() hierarchy.EntityRef {
	return hierarchy.Ref(r.Level, r.EntityID)
}

// UnmarshalJSON defaults both propagation flags to true when absent.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	aux := struct {
		*plain
		PropagateToChildren    *bool `json:"propagate_to_children"`
		PreserveLocalOverrides *bool `json:"preserve_local_overrides"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PropagateToChildren = aux.PropagateToChildren == nil || *aux.PropagateToChildren
	r.PreserveLocalOverrides = aux.PreserveLocalOverrides == nil || *aux.PreserveLocalOverrides
	return nil
}

// normalize fills the global entity id when it was left empty.
func (r *Request) normalize() {
	if r.Level == hierarchy.LevelGlobal && r.EntityID == "" {
		r.EntityID = hierarchy.GlobalEntityID
	}
}

// Validate reports every problem with the request at once.
func (r Request) Validate() error {
	var errs *multierror.Error
	if err := r.Ref().Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if r.Level == hierarchy.LevelGlobal && r.EntityID != hierarchy.GlobalEntityID {
		errs = multierror.Append(errs, fmt.Errorf("global entity_id must be %q", hierarchy.GlobalEntityID))
	}
	if r.Parent != nil {
		if err := r.Parent.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("parent: %w", err))
		} else if !r.Parent.Level.IsAncestorOf(r.Level) {
			errs = multierror.Append(errs, fmt.Errorf("parent level %s is not above %s", r.Parent.Level, r.Level))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return &hierarchy.ValidationError{Err: err}
	}
	return nil
}

// Result summarizes a committed propagation.
type Result struct {
	PropagationID uuid.UUID       `json:"propagation_id"`
	Level         hierarchy.Level `json:"level"`
	EntityID      string          `json:"entity_id"`

	// AffectedCount counts descendants reached by fan-out. The written
	// entity itself is not included.
	AffectedCount        int                   `json:"affected_count"`
	Affected             []hierarchy.EntityRef `json:"affected"`
	CacheKeysInvalidated []string              `json:"cache_keys_invalidated"`
	StartedAt            time.Time             `json:"started_at"`
	Duration             time.Duration         `json:"duration_ns"`
}

// AgentNodeRequest registers the node of a newly created agent under its
// project.
type AgentNodeRequest struct {
	AgentID       string
	ProjectID     string
	Configuration hierarchy.Config
	Metadata      hierarchy.Config
}

func (r AgentNodeRequest) Validate() error {
	var errs *multierror.Error
	if r.AgentID == "" {
		errs = multierror.Append(errs, errors.New("agent_id is required"))
	}
	if r.ProjectID == "" {
		errs = multierror.Append(errs, errors.New("project_id is required"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return &hierarchy.ValidationError{Err: err}
	}
	return nil
}
