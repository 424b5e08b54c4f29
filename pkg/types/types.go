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

// Package types defines the domain types shared across the spool pipeline:
// catalog descriptors, the in-memory row frame, CSV part bookkeeping, and
// the tagged error type used by every component.
package types

// ColumnDescriptor describes one column as read from the information catalog.
// Immutable once produced. Length/precision fields are nil when the catalog
// reports NULL for them (e.g. numeric precision on a text column).
type ColumnDescriptor struct {
	Name                  string `json:"name"`
	DataType              string `json:"data_type"`
	Nullable              bool   `json:"nullable"`
	IsIdentity            bool   `json:"is_identity"`
	CharMaxLength         *int64 `json:"char_max_length,omitempty"`
	NumericPrecision      *int64 `json:"numeric_precision,omitempty"`
	NumericPrecisionRadix *int64 `json:"numeric_precision_radix,omitempty"`
}

// TableRef identifies a table within one introspection result.
type TableRef struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// TableDescriptor is a table plus its columns in catalog order.
// Columns is non-empty for any table returned by introspection.
type TableDescriptor struct {
	Schema  string             `json:"schema"`
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// RowFrame is the in-memory representation of one query result: an ordered
// list of unique column names and the rows in the exact order the store
// returned them. Row order is preserved end-to-end into the final file.
// A frame is owned by the single request that produced it.
type RowFrame struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewRowFrame creates an empty frame with the given column order.
func NewRowFrame(columns []string) *RowFrame {
	return &RowFrame{Columns: columns, Rows: []map[string]any{}}
}

// Append adds one row. The row's key set must be a subset of Columns;
// this is a producer contract, not re-validated per row.
func (f *RowFrame) Append(row map[string]any) {
	f.Rows = append(f.Rows, row)
}

// RowCount returns the number of rows in the frame.
func (f *RowFrame) RowCount() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// CsvPart is one physical CSV file holding a slice of a RowFrame.
// Parts are created by the chunker and consumed by the merger.
type CsvPart struct {
	Path      string `json:"path"`
	RowCount  int    `json:"row_count"`
	HasHeader bool   `json:"has_header"`
}

// ReportArtifact is the caller-visible output of a report request.
// FullPath is empty when the query returned zero rows (no file is created;
// that is a defined success outcome, not an error).
type ReportArtifact struct {
	FullPath string `json:"full_path,omitempty"`
	RowCount int    `json:"row_count"`
}
