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

package query

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/types"
)

// fakeRows implements pgx.Rows over named fields and a value grid.
type fakeRows struct {
	fields []string
	rows   [][]any
	idx    int
	err    error
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }
func (r *fakeRows) Scan(dest ...any) error        { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	descs := make([]pgconn.FieldDescription, len(r.fields))
	for i, name := range r.fields {
		descs[i] = pgconn.FieldDescription{Name: name}
	}
	return descs
}

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

// fakeQuerier serves canned rows or an error and records bound args.
type fakeQuerier struct {
	rows     *fakeRows
	queryErr error
	pingErr  error
	lastSQL  string
	lastArgs []any
	calls    int
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls++
	q.lastSQL = sql
	q.lastArgs = args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.rows, nil
}

func (q *fakeQuerier) Ping(ctx context.Context) error { return q.pingErr }

func TestRunRejectsNonSelect(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	r := NewRunner(q, 0, nil)

	tests := []struct {
		name      string
		statement string
		allowed   bool
	}{
		{"select", "SELECT 1", true},
		{"lowercase select", "select * from users", true},
		{"leading whitespace", "   SELECT 1", true},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"insert", "INSERT INTO users VALUES (1)", false},
		{"update", "UPDATE users SET name = 'x'", false},
		{"delete", "DELETE FROM users", false},
		{"ddl", "DROP TABLE users", false},
		{"show", "SHOW server_version", false},
		{"explain", "EXPLAIN SELECT 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q.calls = 0
			_, err := r.Run(context.Background(), tt.statement)
			if tt.allowed {
				assert.NoError(t, err)
				assert.Equal(t, 1, q.calls)
				return
			}
			require.Error(t, err)
			assert.Equal(t, 0, q.calls, "rejected statement must not reach the store")
			tagged, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, types.KindExecution, tagged.Kind)
		})
	}
}

func TestRunBindsArgsOutOfBand(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{fields: []string{"id"}}}
	r := NewRunner(q, 0, nil)

	_, err := r.Run(context.Background(), "SELECT id FROM users WHERE age > $1 AND city = $2", 21, "berlin")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users WHERE age > $1 AND city = $2", q.lastSQL)
	assert.Equal(t, []any{21, "berlin"}, q.lastArgs)
}

func TestRunShapesRows(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{
		fields: []string{"id", "name", "note"},
		rows: [][]any{
			{int64(1), "alice", nil},
			{int64(2), "bob", ""},
		},
	}}
	r := NewRunner(q, 0, nil)

	frame, err := r.Run(context.Background(), "SELECT id, name, note FROM users")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "note"}, frame.Columns)
	assert.Equal(t, 2, frame.RowCount())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "alice", "note": nil}, frame.Rows[0])
	// Null and explicit empty string stay distinguishable in the frame.
	assert.Nil(t, frame.Rows[0]["note"])
	assert.Equal(t, "", frame.Rows[1]["note"])
}

func TestRunZeroRowsIsSuccess(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{fields: []string{"id"}}}
	r := NewRunner(q, 0, nil)

	frame, err := r.Run(context.Background(), "SELECT id FROM users WHERE false")
	require.NoError(t, err)
	assert.Equal(t, 0, frame.RowCount())
	assert.Equal(t, []string{"id"}, frame.Columns)
}

func TestRunDuplicateColumnsKeepFirstSeenOrder(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{
		fields: []string{"id", "id", "name"},
		rows:   [][]any{{int64(1), int64(1), "alice"}},
	}}
	r := NewRunner(q, 0, nil)

	frame, err := r.Run(context.Background(), "SELECT a.id, b.id, name FROM t")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, frame.Columns)
}

func TestRunSurfacesVerbatimError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42501", Message: "permission denied for table users"}
	q := &fakeQuerier{queryErr: pgErr}
	r := NewRunner(q, 0, nil)

	_, err := r.Run(context.Background(), "SELECT * FROM users")
	require.Error(t, err)
	tagged, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindExecution, tagged.Kind)
	assert.Equal(t, types.PhaseQuery, tagged.Phase)
	assert.Equal(t, pgErr.Error(), tagged.Message)
	assert.Equal(t, 1, q.calls, "the runner itself never retries")
}

func TestRunClassifiesConnectivity(t *testing.T) {
	q := &fakeQuerier{queryErr: &pgconn.PgError{Code: "08006", Message: "connection failure"}}
	r := NewRunner(q, 0, nil)

	_, err := r.Run(context.Background(), "SELECT 1")
	tagged, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindConnectivity, tagged.Kind)
}

func TestPing(t *testing.T) {
	r := NewRunner(&fakeQuerier{}, 0, nil)
	assert.NoError(t, r.Ping(context.Background()))

	r = NewRunner(&fakeQuerier{pingErr: assert.AnError}, 0, nil)
	err := r.Ping(context.Background())
	require.Error(t, err)
	tagged, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindConnectivity, tagged.Kind)
}
