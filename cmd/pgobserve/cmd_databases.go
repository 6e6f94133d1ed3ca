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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/pgobserve/pkg/catalog"
)

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the database catalog and resolve Prometheus jobs",
	RunE:  runDatabases,
}

func init() {
	databasesCmd.Flags().Bool("resolve", true, "resolve jobs through Prometheus pg_up")
	rootCmd.AddCommand(databasesCmd)
}

func runDatabases(cmd *cobra.Command, _ []string) error {
	resolve, _ := cmd.Flags().GetBool("resolve")

	logger, err := newLogger(config.Logging.Level, debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cat, err := catalog.New(config.Databases.File, logger.Named("catalog"))
	if err != nil {
		return err
	}

	var jobs *catalog.JobDetector
	if resolve {
		jobs, err = catalog.NewJobDetector(catalog.JobDetectorConfig{
			PrometheusURL: config.Backends.PrometheusURL,
			Logger:        logger.Named("jobs"),
		})
		if err != nil {
			return err
		}
	}

	printDatabases(cmd.Context(), cmd.OutOrStdout(), cat.List(), jobs)
	return nil
}

func printDatabases(ctx context.Context, w io.Writer, dbs []catalog.Database, jobs *catalog.JobDetector) {
	if ctx == nil {
		ctx = context.Background()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATABASE\tJOB\tINSTANCE\tSOURCE")
	for _, db := range dbs {
		info := catalog.JobInfo{Database: db.Name, Job: db.Job, Source: catalog.SourceConfig}
		switch {
		case jobs != nil:
			info = jobs.Resolve(ctx, db)
		case db.Job == "":
			info.Source = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Database, dash(info.Job), dash(info.Instance), info.Source)
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
