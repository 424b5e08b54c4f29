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

package report

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/types"
)

// Merger concatenates part files into one canonical file: the header from
// part 1 exactly once, then the data bytes of every part in part order.
// Data sections are copied byte for byte; nothing is re-serialized.
type Merger struct {
	keepParts bool
	logger    *zap.Logger
}

// NewMerger creates a merger. With keepParts false (the default policy),
// part files are deleted after a successful merge; true retains them for
// audit.
func NewMerger(keepParts bool, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{keepParts: keepParts, logger: logger}
}

// Merge produces <base>.csv under dir from the ordered parts. Every part
// must share an identical header line; a mismatch fails with a schema
// mismatch error before any output is written.
func (m *Merger) Merge(parts []types.CsvPart, dir, base string) (*types.ReportArtifact, error) {
	if len(parts) == 0 {
		return nil, types.Errorf(types.KindSchemaMismatch, types.PhaseMerge,
			"no parts to merge")
	}

	// Validate all headers before creating the output file, so a mismatch
	// leaves no partial artifact behind.
	headers := make([][]byte, len(parts))
	for i, part := range parts {
		header, err := readHeaderLine(part.Path)
		if err != nil {
			return nil, err
		}
		headers[i] = header
	}
	for i := 1; i < len(headers); i++ {
		if !bytes.Equal(headers[0], headers[i]) {
			return nil, types.Errorf(types.KindSchemaMismatch, types.PhaseMerge,
				"header mismatch: part %s does not match part %s",
				parts[i].Path, parts[0].Path)
		}
	}

	outPath := filepath.Join(dir, base+".csv")
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
	}

	w := bufio.NewWriter(out)
	if _, err := w.Write(headers[0]); err != nil {
		out.Close()
		return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
	}

	rowCount := 0
	for _, part := range parts {
		if err := appendDataSection(w, part.Path, int64(len(headers[0]))); err != nil {
			out.Close()
			return nil, err
		}
		rowCount += part.RowCount
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
	}
	if err := out.Close(); err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
	}

	if !m.keepParts {
		for _, part := range parts {
			if err := os.Remove(part.Path); err != nil {
				// The canonical file is already durable; a stale part is
				// an operator concern, not a merge failure.
				m.logger.Warn("failed to remove part file after merge",
					zap.String("path", part.Path),
					zap.Error(err),
				)
			}
		}
	}

	m.logger.Debug("parts merged",
		zap.String("path", outPath),
		zap.Int("part_count", len(parts)),
		zap.Int("row_count", rowCount),
	)
	return &types.ReportArtifact{FullPath: outPath, RowCount: rowCount}, nil
}

// readHeaderLine returns the first record of the file including its CRLF
// terminator. The scan is quote-aware: a line break inside a quoted column
// name does not end the header.
func readHeaderLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var (
		header   []byte
		inQuotes bool
	)
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil, types.Errorf(types.KindSchemaMismatch, types.PhaseMerge,
				"part %s has no header line", path)
		}
		if err != nil {
			return nil, types.NewError(types.KindIO, types.PhaseMerge, err)
		}
		header = append(header, b)
		if b == '"' {
			inQuotes = !inQuotes
		}
		if b == '\n' && !inQuotes {
			return header, nil
		}
	}
}

// appendDataSection copies everything after the header from the part file
// into w, byte for byte.
func appendDataSection(w io.Writer, path string, headerLen int64) error {
	f, err := os.Open(path)
	if err != nil {
		return types.NewError(types.KindIO, types.PhaseMerge, err)
	}
	defer f.Close()

	if _, err := f.Seek(headerLen, io.SeekStart); err != nil {
		return types.NewError(types.KindIO, types.PhaseMerge, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return types.NewError(types.KindIO, types.PhaseMerge, err)
	}
	return nil
}
