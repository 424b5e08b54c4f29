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

// Package engine wires the pipeline components around one explicitly
// constructed connection pool and exposes the operations a calling agent
// uses: catalog introspection, query execution, and report generation.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/catalog"
	"github.com/teradata-labs/spool/pkg/config"
	"github.com/teradata-labs/spool/pkg/query"
	"github.com/teradata-labs/spool/pkg/report"
	"github.com/teradata-labs/spool/pkg/types"
)

// Engine owns the pool and the components built over it. Construct one per
// process; its lifecycle is owned by startup/shutdown, not by lazily
// initialized global state.
type Engine struct {
	pool        *pgxpool.Pool
	catalog     *catalog.Reader
	runner      *query.Runner
	coordinator *report.Coordinator
	logger      *zap.Logger
}

// New creates the pool from validated config, verifies connectivity, and
// wires the components. The pool is bounded by config; requests block for a
// slot rather than opening ad hoc connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		// Don't wrap the original error as it may contain the connection
		// string with credentials.
		return nil, fmt.Errorf("failed to parse connection config for database %s: connection string invalid", cfg.Database)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.HealthCheckPeriod = 30 * time.Second
	poolConfig.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	if err := os.MkdirAll(cfg.OutputRoot, 0750); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	runner := query.NewRunner(pool, cfg.QueryTimeout, logger)

	logger.Info("spool engine connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.String("output_root", cfg.OutputRoot),
	)

	return &Engine{
		pool:        pool,
		catalog:     catalog.NewReader(pool, logger),
		runner:      runner,
		coordinator: report.NewCoordinator(runner, cfg.OutputRoot, cfg.KeepParts, logger),
		logger:      logger,
	}, nil
}

// Ping probes store connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.runner.Ping(ctx)
}

// ListSchemas returns user-visible schema names.
func (e *Engine) ListSchemas(ctx context.Context) ([]string, error) {
	return e.catalog.ListSchemas(ctx)
}

// ListTables returns base tables in the schema.
func (e *Engine) ListTables(ctx context.Context, schema string) ([]types.TableRef, error) {
	return e.catalog.ListTables(ctx, schema)
}

// DescribeTable returns the descriptor for one table.
func (e *Engine) DescribeTable(ctx context.Context, schema, table string) (*types.TableDescriptor, error) {
	return e.catalog.DescribeTable(ctx, schema, table)
}

// DescribeTables returns descriptors for every table in the schema.
func (e *Engine) DescribeTables(ctx context.Context, schema string) ([]types.TableDescriptor, error) {
	return e.catalog.DescribeTables(ctx, schema)
}

// RunQuery executes a parameterized SELECT and returns the row frame.
func (e *Engine) RunQuery(ctx context.Context, statement string, args ...any) (*types.RowFrame, error) {
	return e.runner.Run(ctx, statement, args...)
}

// GenerateReport runs the statement and produces the final CSV artifact.
func (e *Engine) GenerateReport(ctx context.Context, statement string, args []any, base, dir string) (*types.ReportArtifact, error) {
	return e.coordinator.GenerateReport(ctx, statement, args, base, dir)
}

// Close releases the connection pool.
func (e *Engine) Close() {
	e.pool.Close()
	e.logger.Info("spool engine closed")
}
