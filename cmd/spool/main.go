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

// spool turns parameterized relational queries into chunked, merged CSV
// report artifacts. One subcommand per operation; results are printed as
// JSON on stdout, logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/internal/log"
	"github.com/teradata-labs/spool/pkg/config"
	"github.com/teradata-labs/spool/pkg/engine"
)

var (
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "spool",
	Short: "Spool - chunked CSV report generation from relational queries",
	Long: `Spool executes parameterized SELECT statements against a Postgres store and
serializes the results to RFC 4180 CSV artifacts, splitting large result sets
into 1000-row parts and merging them back into a single canonical file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Setup(logLevel, logFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (SPOOL_* env vars also apply)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (defaults to stderr)")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(reportCmd)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Probe store connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			if err := eng.Ping(ctx); err != nil {
				return err
			}
			return printJSON(map[string]string{"status": "ok"})
		})
	},
}

// withEngine loads config, builds the engine, runs fn, and tears down. The
// context cancels on SIGINT/SIGTERM.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg, log.Logger())
	if err != nil {
		return err
	}
	defer eng.Close()

	return fn(ctx, eng)
}

// printJSON writes v to stdout. Stdout carries results only; logs stay on
// stderr.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", zap.Error(err))
		_ = log.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	_ = log.Sync()
}
