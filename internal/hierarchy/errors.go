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
	"errors"
	"fmt"
)

// Stage names the step of an operation that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageBegin     Stage = "begin"
	StageUpsert    Stage = "upsert"
	StageFanOut    Stage = "fan_out"
	StageAncestry  Stage = "ancestry"
	StageChain     Stage = "chain"
	StageWriteBack Stage = "write_back"
	StageCache     Stage = "cache"
	StageExpire    Stage = "expire"
	StageCommit    Stage = "commit"
	StageRead      Stage = "read"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a request before any store access.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing node or domain entity.
type NotFoundError struct {
	Ref  EntityRef
	What string
}

func (e *NotFoundError) Error() string {
	what := e.What
	if what == "" {
		what = "configuration node"
	}
	return fmt.Sprintf("%s %s not found", what, e.Ref)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StoreError wraps a failure of the backing store.
type StoreError struct {
	Stage Stage
	Ref   EntityRef
	Err   error
}

func (e *StoreError) Error() string {
	if e.Ref.Level.Valid() {
		return fmt.Sprintf("store failure during %s of %s: %v", e.Stage, e.Ref, e.Err)
	}
	return fmt.Sprintf("store failure during %s: %v", e.Stage, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TransactionAbortedError means the transaction was rolled back and
// nothing it wrote is visible.
type TransactionAbortedError struct {
	Stage Stage
	Err   error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction aborted at %s: %v", e.Stage, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NewStoreError wraps err unless it already carries a stage or is a
// NotFoundError, which callers need to see unchanged.
func NewStoreError(stage Stage, ref EntityRef, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || IsNotFound(err) {
		return err
	}
	return &StoreError{Stage: stage, Ref: ref, Err: err}
}

// StageOf returns the stage recorded on err, or "" when none is.
func StageOf(err error) Stage {
	var ta *TransactionAbortedError
	if errors.As(err, &ta) {
		return ta.Stage
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Stage
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return StageValidate
	}
	return ""
}
