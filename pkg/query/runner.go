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

// Package query executes parameterized read statements against the store and
// shapes results into row frames.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/types"
)

// Querier is the slice of pool behavior the runner needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Compile-time check that the pgx pool satisfies Querier.
var _ Querier = (*pgxpool.Pool)(nil)

// Runner executes SELECT statements with out-of-band bound parameters.
// It never retries; retry policy lives in the coordinator.
type Runner struct {
	q       Querier
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a runner over the given pool handle. A zero timeout
// leaves statement execution unbounded.
func NewRunner(q Querier, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{q: q, timeout: timeout, logger: logger}
}

// Ping probes store connectivity.
func (r *Runner) Ping(ctx context.Context) error {
	if err := r.q.Ping(ctx); err != nil {
		return types.NewError(types.KindConnectivity, types.PhaseQuery, err)
	}
	return nil
}

// Run executes one parameterized statement and returns the result frame.
// Values are bound positionally ($1, $2, ...) and never interpolated into
// the statement text. Zero rows is a success outcome. Statements whose
// leading keyword is not SELECT (or WITH, for CTE-prefixed reads) are
// rejected before reaching the store.
func (r *Runner) Run(ctx context.Context, statement string, args ...any) (*types.RowFrame, error) {
	statement = strings.TrimSpace(statement)
	if !isReadStatement(statement) {
		return nil, types.Errorf(types.KindExecution, types.PhaseQuery,
			"statement rejected: only SELECT statements are allowed")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := r.q.Query(ctx, statement, args...)
	if err != nil {
		return nil, types.Classify(types.PhaseQuery, err)
	}
	defer rows.Close()

	frame, err := frameFromRows(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("query executed",
		zap.Int("row_count", frame.RowCount()),
		zap.Int("column_count", len(frame.Columns)),
		zap.Duration("duration", time.Since(start)),
		zap.String("query_prefix", truncateQuery(statement, 100)),
	)
	return frame, nil
}

// frameFromRows drains rows into a RowFrame. Column order follows the field
// descriptions; duplicate column names keep first-seen position. Row order
// is the order the store returned.
func frameFromRows(rows pgx.Rows) (*types.RowFrame, error) {
	fieldDescs := rows.FieldDescriptions()
	colNames := make([]string, len(fieldDescs))
	seen := make(map[string]bool, len(fieldDescs))
	columns := make([]string, 0, len(fieldDescs))
	for i, fd := range fieldDescs {
		colNames[i] = fd.Name
		if !seen[fd.Name] {
			seen[fd.Name] = true
			columns = append(columns, fd.Name)
		}
	}

	frame := types.NewRowFrame(columns)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, types.Classify(types.PhaseQuery, err)
		}
		row := make(map[string]any, len(colNames))
		for i, col := range colNames {
			row[col] = values[i]
		}
		frame.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Classify(types.PhaseQuery, err)
	}
	return frame, nil
}

// isReadStatement returns true if the statement's leading keyword marks a
// report query. SHOW/EXPLAIN are deliberately excluded: they are not report
// material.
func isReadStatement(statement string) bool {
	upper := strings.ToUpper(statement)
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// truncateQuery returns at most maxLen characters of the query for logging.
func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
