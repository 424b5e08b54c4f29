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

// Package report holds the chunked CSV serialization and merge engine and
// the coordinator that drives one report request through it.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/types"
)

// ChunkRows is the fixed per-part row threshold. Result sets up to this size
// produce a single file; larger ones are split into consecutive parts of at
// most this many rows.
const ChunkRows = 1000

// Chunker serializes a RowFrame to one or more CSV part files.
//
// Encoding: every present field is quoted, embedded quotes are doubled, and
// temporal values are written as ISO-8601. A null/absent value is an
// unquoted empty field while an explicit empty string is `""` -- the
// distinction survives a round trip. Records end in CRLF.
type Chunker struct {
	logger *zap.Logger
}

// NewChunker creates a chunker.
func NewChunker(logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{logger: logger}
}

// Write serializes frame under dir using the given base name. Up to
// ChunkRows rows go to a single <base>.csv; above that, rows are split in
// source order into <base>.part1.csv, <base>.part2.csv, ... with the header
// repeated in every part. No part is ever empty.
//
// A write failure aborts the in-progress file and surfaces the underlying
// I/O error verbatim; already-written files are left in place for the
// operator.
func (c *Chunker) Write(frame *types.RowFrame, dir, base string) ([]types.CsvPart, error) {
	n := frame.RowCount()
	if n == 0 {
		return nil, types.Errorf(types.KindIO, types.PhaseSerialize,
			"refusing to serialize an empty row frame")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
	}

	if n <= ChunkRows {
		path := filepath.Join(dir, base+".csv")
		part, err := c.writePart(path, frame.Columns, frame.Rows)
		if err != nil {
			return nil, err
		}
		return []types.CsvPart{*part}, nil
	}

	numParts := (n + ChunkRows - 1) / ChunkRows
	parts := make([]types.CsvPart, 0, numParts)
	for i := 0; i < numParts; i++ {
		lo := i * ChunkRows
		hi := lo + ChunkRows
		if hi > n {
			hi = n
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.part%d.csv", base, i+1))
		part, err := c.writePart(path, frame.Columns, frame.Rows[lo:hi])
		if err != nil {
			return nil, err
		}
		parts = append(parts, *part)
	}

	c.logger.Debug("row frame chunked",
		zap.String("base", base),
		zap.Int("row_count", n),
		zap.Int("part_count", numParts),
	)
	return parts, nil
}

// writePart writes one header-bearing CSV file. Rows are written strictly in
// source order.
func (c *Chunker) writePart(path string, columns []string, rows []map[string]any) (*types.CsvPart, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
	}

	w := bufio.NewWriter(f)

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = quoteField(col)
	}
	if _, err := w.WriteString(strings.Join(header, ",") + "\r\n"); err != nil {
		f.Close()
		return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
	}

	fields := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			fields[i] = encodeField(row[col])
		}
		if _, err := w.WriteString(strings.Join(fields, ",") + "\r\n"); err != nil {
			f.Close()
			return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
	}
	if err := f.Close(); err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseSerialize, err)
	}

	return &types.CsvPart{Path: path, RowCount: len(rows), HasHeader: true}, nil
}

// encodeField serializes one value. nil stays an unquoted empty field so a
// reader can tell null apart from an explicit empty string.
func encodeField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return quoteField(val)
	case []byte:
		return quoteField(string(val))
	case time.Time:
		return quoteField(val.Format(time.RFC3339))
	case *time.Time:
		if val == nil {
			return ""
		}
		return quoteField(val.Format(time.RFC3339))
	default:
		return quoteField(fmt.Sprintf("%v", val))
	}
}

// quoteField wraps s in quotes, doubling embedded quote characters.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
