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

package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/types"
)

// fakeRows implements pgx.Rows over an in-memory value grid.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.rows) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case **int64:
			if row[i] == nil {
				*p = nil
			} else {
				v := row[i].(int64)
				*p = &v
			}
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// fakeQuerier records the last query and serves canned rows or an error.
type fakeQuerier struct {
	rows     [][]any
	err      error
	lastSQL  string
	lastArgs []any
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL = sql
	q.lastArgs = args
	if q.err != nil {
		return nil, q.err
	}
	return &fakeRows{rows: q.rows}, nil
}

// columnRow builds one information_schema.columns result row.
func columnRow(schema, table, column, dataType, nullable, identity string, charLen any) []any {
	return []any{schema, table, column, dataType, nullable, identity, charLen, nil, nil}
}

func TestListSchemasExcludesInternal(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{{"public"}, {"sales"}}}
	r := NewReader(q, nil)

	schemas, err := r.ListSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "sales"}, schemas)

	// Internal schemas are excluded in the catalog query itself.
	assert.Contains(t, q.lastSQL, `NOT LIKE 'pg\_%'`)
	assert.Contains(t, q.lastArgs, "information_schema")
}

func TestListTables(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		{"public", "orders"},
		{"public", "users"},
	}}
	r := NewReader(q, nil)

	tables, err := r.ListTables(context.Background(), "public")
	require.NoError(t, err)
	assert.Equal(t, []types.TableRef{
		{Schema: "public", Name: "orders"},
		{Schema: "public", Name: "users"},
	}, tables)
	assert.Contains(t, q.lastSQL, "BASE TABLE")
	assert.Equal(t, []any{"public"}, q.lastArgs)
}

func TestListTablesRejectsBadIdentifier(t *testing.T) {
	r := NewReader(&fakeQuerier{}, nil)

	tests := []string{"", "public; DROP TABLE x", "1start", "a-b"}
	for _, schema := range tests {
		_, err := r.ListTables(context.Background(), schema)
		require.Error(t, err, "schema %q", schema)
		tagged, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, types.KindExecution, tagged.Kind)
		assert.Equal(t, types.PhaseCatalog, tagged.Phase)
	}
}

func TestDescribeTable(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		columnRow("public", "users", "id", "bigint", "NO", "YES", nil),
		columnRow("public", "users", "name", "character varying", "YES", "NO", int64(255)),
	}}
	r := NewReader(q, nil)

	desc, err := r.DescribeTable(context.Background(), "public", "users")
	require.NoError(t, err)

	assert.Equal(t, "public", desc.Schema)
	assert.Equal(t, "users", desc.Name)
	require.Len(t, desc.Columns, 2)

	id := desc.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, "bigint", id.DataType)
	assert.False(t, id.Nullable)
	assert.True(t, id.IsIdentity)
	assert.Nil(t, id.CharMaxLength)

	name := desc.Columns[1]
	assert.Equal(t, "name", name.Name)
	assert.True(t, name.Nullable)
	assert.False(t, name.IsIdentity)
	require.NotNil(t, name.CharMaxLength)
	assert.Equal(t, int64(255), *name.CharMaxLength)
}

func TestDescribeTableNotFound(t *testing.T) {
	r := NewReader(&fakeQuerier{}, nil)

	_, err := r.DescribeTable(context.Background(), "public", "missing")
	require.Error(t, err)
	tagged, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindExecution, tagged.Kind)
	assert.Contains(t, tagged.Message, "public.missing not found")
}

func TestDescribeTablesGroupsByTable(t *testing.T) {
	// Rows arrive interleaved; grouping is keyed, so column order within a
	// table still follows arrival order.
	q := &fakeQuerier{rows: [][]any{
		columnRow("public", "orders", "id", "bigint", "NO", "YES", nil),
		columnRow("public", "users", "id", "bigint", "NO", "YES", nil),
		columnRow("public", "orders", "total", "numeric", "YES", "NO", nil),
		columnRow("public", "users", "email", "text", "NO", "NO", nil),
	}}
	r := NewReader(q, nil)

	descs, err := r.DescribeTables(context.Background(), "public")
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, "orders", descs[0].Name)
	assert.Equal(t, []string{"id", "total"}, columnNames(descs[0]))
	assert.Equal(t, "users", descs[1].Name)
	assert.Equal(t, []string{"id", "email"}, columnNames(descs[1]))
}

func TestDescribeTablesEmptySchema(t *testing.T) {
	r := NewReader(&fakeQuerier{}, nil)

	descs, err := r.DescribeTables(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestCatalogErrorsAreTagged(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection reset")}
	r := NewReader(q, nil)

	_, err := r.ListSchemas(context.Background())
	require.Error(t, err)
	tagged, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.PhaseCatalog, tagged.Phase)
	assert.Equal(t, "connection reset", tagged.Message)
}

func columnNames(desc types.TableDescriptor) []string {
	names := make([]string, len(desc.Columns))
	for i, col := range desc.Columns {
		names[i] = col.Name
	}
	return names
}
