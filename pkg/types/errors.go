// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind tags an error with its failure class. Every error crossing a
// component boundary carries exactly one kind.
type Kind string

const (
	// KindConnectivity covers unreachable store and authentication
	// failures. Fatal to the current request, never retried.
	KindConnectivity Kind = "connectivity"

	// KindExecution covers malformed statements, constraint violations
	// and timeouts. Eligible for one corrective retry at the coordinator.
	KindExecution Kind = "execution"

	// KindSchemaMismatch signals a merge-time header mismatch across
	// parts. Internal inconsistency, never silently patched.
	KindSchemaMismatch Kind = "schema_mismatch"

	// KindIO covers filesystem write/permission/disk failures.
	KindIO Kind = "io"
)

// Phase names the pipeline stage that produced an error.
type Phase string

const (
	PhaseCatalog   Phase = "catalog"
	PhaseQuery     Phase = "query"
	PhaseSerialize Phase = "serialize"
	PhaseMerge     Phase = "merge"
)

// Error is the tagged outcome type used across the pipeline. Message holds
// the underlying message verbatim; components never rewrite it.
type Error struct {
	Kind    Kind
	Phase   Phase
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Phase, e.Kind, e.Message)
}

// Unwrap exposes the original error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and phase, preserving its message verbatim.
func NewError(kind Kind, phase Phase, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Message: err.Error(), Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind Kind, phase Phase, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Phase: phase, Message: err.Error(), Err: err}
}

// AsError extracts a tagged error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SQLSTATE classes that indicate the store is unreachable or refused the
// session, as opposed to rejecting the statement.
const (
	sqlstateClassConnection = "08"  // connection exception
	sqlstateClassAuth       = "28"  // invalid authorization specification
	sqlstateShutdownPrefix  = "57P" // admin/crash shutdown, cannot connect now
)

// Classify maps a driver error to a tagged error for the given phase.
// Connection-level failures (dial errors, SQLSTATE 08/28 classes, 57P
// shutdowns) become
// KindConnectivity; everything else the store rejected — including statement
// timeouts — is KindExecution. Already-tagged errors pass through unchanged.
func Classify(phase Phase, err error) *Error {
	if tagged, ok := AsError(err); ok {
		return tagged
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		if strings.HasPrefix(code, sqlstateClassConnection) ||
			strings.HasPrefix(code, sqlstateClassAuth) ||
			strings.HasPrefix(code, sqlstateShutdownPrefix) {
			return NewError(KindConnectivity, phase, err)
		}
		return NewError(KindExecution, phase, err)
	}

	// Dial/socket failures surface as net.Error before any statement ran.
	var netErr net.Error
	if errors.As(err, &netErr) && !errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindConnectivity, phase, err)
	}

	return NewError(KindExecution, phase, err)
}
