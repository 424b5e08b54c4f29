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
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/types"
)

// State names one stage of a report request's lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateQuerying    State = "querying"
	StateSerializing State = "serializing"
	StateChunking    State = "chunking"
	StateMerging     State = "merging"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// baseNamePattern restricts caller-supplied base names to filename-safe
// stems so the <base>.partN.csv convention stays bit-exact and path tricks
// are impossible.
var baseNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// diagnosablePatterns mark execution errors the caller can plausibly
// correct (bad identifier, typo, missing grant). Only these earn the single
// automatic retry.
var diagnosablePatterns = []string{
	"does not exist",
	"syntax error",
	"permission denied",
	"undefined",
	"invalid identifier",
	"column",
	"relation",
}

// QueryRunner is the slice of runner behavior the coordinator needs.
type QueryRunner interface {
	Run(ctx context.Context, statement string, args ...any) (*types.RowFrame, error)
}

// Coordinator drives one report request through
// querying -> serializing -> (chunking -> merging) -> done, owning the
// decision of whether chunking is needed and the single-retry policy.
// Request file paths are unique by base-name construction, so no cross-
// request locking is required for the file phases.
type Coordinator struct {
	runner     QueryRunner
	chunker    *Chunker
	merger     *Merger
	outputRoot string
	logger     *zap.Logger
}

// NewCoordinator creates a coordinator writing under outputRoot.
func NewCoordinator(runner QueryRunner, outputRoot string, keepParts bool, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		runner:     runner,
		chunker:    NewChunker(logger),
		merger:     NewMerger(keepParts, logger),
		outputRoot: outputRoot,
		logger:     logger,
	}
}

// GenerateReport runs the statement and produces the final (possibly merged)
// CSV artifact. dir may be empty (the output root) or a directory that
// resolves inside it; anything escaping the root is rejected before the
// query runs. A zero-row result is a success with no file created.
func (c *Coordinator) GenerateReport(ctx context.Context, statement string, args []any, base, dir string) (*types.ReportArtifact, error) {
	logger := c.logger.With(zap.String("request_id", uuid.NewString()), zap.String("base", base))
	state := StateIdle

	fail := func(err error) (*types.ReportArtifact, error) {
		logger.Error("report request failed",
			zap.String("state", string(state)),
			zap.Error(err),
		)
		state = StateFailed
		return nil, err
	}

	if !baseNamePattern.MatchString(base) {
		return fail(types.Errorf(types.KindIO, types.PhaseSerialize,
			"base name %q is not a valid file stem", base))
	}
	outDir, err := c.resolveOutputDir(dir)
	if err != nil {
		return fail(err)
	}

	state = StateQuerying
	frame, err := c.runQuery(ctx, logger, statement, args)
	if err != nil {
		return fail(err)
	}

	if frame.RowCount() == 0 {
		state = StateDone
		logger.Info("report request done: empty result, no file created")
		return &types.ReportArtifact{RowCount: 0}, nil
	}

	state = StateSerializing
	if frame.RowCount() > ChunkRows {
		state = StateChunking
	}
	parts, err := c.chunker.Write(frame, outDir, base)
	if err != nil {
		return fail(err)
	}

	var artifact *types.ReportArtifact
	if len(parts) == 1 {
		artifact = &types.ReportArtifact{FullPath: parts[0].Path, RowCount: parts[0].RowCount}
	} else {
		state = StateMerging
		artifact, err = c.merger.Merge(parts, outDir, base)
		if err != nil {
			return fail(err)
		}
	}

	state = StateDone
	logger.Info("report request done",
		zap.String("path", artifact.FullPath),
		zap.Int("row_count", artifact.RowCount),
		zap.Int("part_count", len(parts)),
	)
	return artifact, nil
}

// runQuery executes the statement, attempting exactly one corrective retry
// when the failure is a client-diagnosable execution error. The retry's
// message wins if both attempts fail. Connectivity failures are never
// retried.
func (c *Coordinator) runQuery(ctx context.Context, logger *zap.Logger, statement string, args []any) (*types.RowFrame, error) {
	frame, err := c.runner.Run(ctx, statement, args...)
	if err == nil {
		return frame, nil
	}
	if !isDiagnosable(err) {
		return nil, err
	}

	logger.Warn("query failed with a client-diagnosable error, retrying once",
		zap.Error(err),
	)
	return c.runner.Run(ctx, statement, args...)
}

// resolveOutputDir confines dir to the configured output root. An empty dir
// means the root itself; a relative dir is resolved against the root.
func (c *Coordinator) resolveOutputDir(dir string) (string, error) {
	if dir == "" {
		return c.outputRoot, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.outputRoot, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(c.outputRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.Errorf(types.KindIO, types.PhaseSerialize,
			"output directory %q is outside the permitted output root", dir)
	}
	return dir, nil
}

// isDiagnosable reports whether err is an execution error whose message
// suggests a correctable statement problem.
func isDiagnosable(err error) bool {
	tagged, ok := types.AsError(err)
	if !ok || tagged.Kind != types.KindExecution {
		return false
	}
	msg := strings.ToLower(tagged.Message)
	for _, pattern := range diagnosablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
