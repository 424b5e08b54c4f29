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

// Package catalog introspects schema, table, and column metadata from the
// store's information catalog and normalizes it into descriptors.
package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/types"
)

// internalSchemas lists schemas excluded from listing beyond the pg_* and
// information_schema name conventions, to avoid exposing infrastructure
// details.
var internalSchemas = []string{
	"information_schema",
	"pgbouncer",
}

// identPattern vets schema/table identifiers supplied by callers before they
// are bound as query parameters. Bound values cannot inject, but rejecting
// junk early gives a clearer message than a store error.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// Querier is the slice of pool behavior the reader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Reader introspects the information catalog. It performs reads only.
type Reader struct {
	q      Querier
	logger *zap.Logger
}

// NewReader creates a catalog reader over the given pool handle.
func NewReader(q Querier, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{q: q, logger: logger}
}

// ListSchemas returns user-visible schema names in catalog order, excluding
// internal/system schemas.
func (r *Reader) ListSchemas(ctx context.Context) ([]string, error) {
	placeholders := make([]string, len(internalSchemas))
	args := make([]any, len(internalSchemas))
	for i, schema := range internalSchemas {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = schema
	}

	query := fmt.Sprintf(`
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN (%s)
		  AND schema_name NOT LIKE 'pg\_%%'
		ORDER BY schema_name`,
		strings.Join(placeholders, ", "))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, types.Classify(types.PhaseCatalog, err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}
	return schemas, nil
}

// ListTables returns base tables in the given schema, in catalog order.
// Views and system tables are excluded.
func (r *Reader) ListTables(ctx context.Context, schema string) ([]types.TableRef, error) {
	if err := validateIdent("schema", schema); err != nil {
		return nil, err
	}

	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := r.q.Query(ctx, query, schema)
	if err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}
	defer rows.Close()

	var tables []types.TableRef
	for rows.Next() {
		var ref types.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, types.Classify(types.PhaseCatalog, err)
		}
		tables = append(tables, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}
	return tables, nil
}

// DescribeTable returns the descriptor for one table, columns in
// ordinal_position order.
func (r *Reader) DescribeTable(ctx context.Context, schema, table string) (*types.TableDescriptor, error) {
	if err := validateIdent("schema", schema); err != nil {
		return nil, err
	}
	if err := validateIdent("table", table); err != nil {
		return nil, err
	}

	descs, err := r.describe(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, types.Errorf(types.KindExecution, types.PhaseCatalog,
			"table %s.%s not found in catalog", schema, table)
	}
	return &descs[0], nil
}

// DescribeTables returns one descriptor per distinct table in the schema.
// Columns are grouped by (schema, table) with a keyed lookup and appended in
// the order the catalog query returns them.
func (r *Reader) DescribeTables(ctx context.Context, schema string) ([]types.TableDescriptor, error) {
	if err := validateIdent("schema", schema); err != nil {
		return nil, err
	}
	return r.describe(ctx, schema, "")
}

// columnsQuery reads everything needed for a ColumnDescriptor. Length and
// precision columns are NULL for types they do not apply to.
const columnsQuery = `
	SELECT table_schema, table_name, column_name, data_type,
	       is_nullable, is_identity,
	       character_maximum_length, numeric_precision, numeric_precision_radix
	FROM information_schema.columns
	WHERE table_schema = $1%s
	ORDER BY table_name, ordinal_position`

func (r *Reader) describe(ctx context.Context, schema, table string) ([]types.TableDescriptor, error) {
	var (
		query string
		args  []any
	)
	if table == "" {
		query = fmt.Sprintf(columnsQuery, "")
		args = []any{schema}
	} else {
		query = fmt.Sprintf(columnsQuery, " AND table_name = $2")
		args = []any{schema, table}
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}
	defer rows.Close()

	var (
		descs []types.TableDescriptor
		index = make(map[types.TableRef]int)
	)
	for rows.Next() {
		var (
			ref        types.TableRef
			col        types.ColumnDescriptor
			isNullable string
			isIdentity string
		)
		if err := rows.Scan(
			&ref.Schema, &ref.Name, &col.Name, &col.DataType,
			&isNullable, &isIdentity,
			&col.CharMaxLength, &col.NumericPrecision, &col.NumericPrecisionRadix,
		); err != nil {
			return nil, types.Classify(types.PhaseCatalog, err)
		}
		col.Nullable = strings.EqualFold(isNullable, "YES")
		col.IsIdentity = strings.EqualFold(isIdentity, "YES")

		i, ok := index[ref]
		if !ok {
			i = len(descs)
			index[ref] = i
			descs = append(descs, types.TableDescriptor{Schema: ref.Schema, Name: ref.Name})
		}
		descs[i].Columns = append(descs[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Classify(types.PhaseCatalog, err)
	}

	r.logger.Debug("described tables",
		zap.String("schema", schema),
		zap.Int("table_count", len(descs)),
	)
	return descs, nil
}

func validateIdent(field, value string) error {
	if value == "" {
		return types.Errorf(types.KindExecution, types.PhaseCatalog, "%s is required", field)
	}
	if !identPattern.MatchString(value) {
		return types.Errorf(types.KindExecution, types.PhaseCatalog,
			"%s %q contains invalid characters", field, value)
	}
	return nil
}
