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

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/spool/pkg/engine"
	"github.com/teradata-labs/spool/pkg/types"
)

var (
	queryArgs  []string
	reportBase string
	reportDir  string
)

func init() {
	queryCmd.Flags().StringArrayVarP(&queryArgs, "arg", "a", nil, "Positional statement parameter (repeatable, bound as $1, $2, ...)")

	reportCmd.Flags().StringArrayVarP(&queryArgs, "arg", "a", nil, "Positional statement parameter (repeatable, bound as $1, $2, ...)")
	reportCmd.Flags().StringVarP(&reportBase, "base", "b", "report", "Base name for the output file(s)")
	reportCmd.Flags().StringVarP(&reportDir, "dir", "d", "", "Output directory (relative to, and confined to, the output root)")
}

var queryCmd = &cobra.Command{
	Use:   "query <statement>",
	Short: "Execute a parameterized SELECT and print the row frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			frame, err := eng.RunQuery(ctx, args[0], positional(queryArgs)...)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"row_count": frame.RowCount(),
				"columns":   frame.Columns,
				"rows":      frame.Rows,
			})
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <statement>",
	Short: "Execute a SELECT and spool the result to CSV artifact(s)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			artifact, err := eng.GenerateReport(ctx, args[0], positional(queryArgs), reportBase, reportDir)
			if err != nil {
				if tagged, ok := types.AsError(err); ok {
					_ = printJSON(map[string]string{
						"phase": string(tagged.Phase),
						"kind":  string(tagged.Kind),
						"error": tagged.Message,
					})
				}
				return err
			}
			return printJSON(artifact)
		})
	},
}

// positional widens string flags to the any slice the runner binds.
func positional(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
