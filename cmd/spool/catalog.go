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
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List user-visible schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			schemas, err := eng.ListSchemas(ctx)
			if err != nil {
				return err
			}
			return printJSON(schemas)
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables <schema>",
	Short: "List base tables in a schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			tables, err := eng.ListTables(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(tables)
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <schema> [table]",
	Short: "Describe one table, or every table in a schema",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			if len(args) == 2 {
				desc, err := eng.DescribeTable(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(desc)
			}
			descs, err := eng.DescribeTables(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(descs)
		})
	},
}
