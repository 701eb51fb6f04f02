/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/surveylink"
	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/internal/exports"
	trace "github.com/blnkfinance/surveylink/internal/traces"
	"github.com/blnkfinance/surveylink/model"
)

// warehouseSource is the --transactions value that reads the transaction log from Postgres.
const warehouseSource = "warehouse"

var decimalHundred = decimal.NewFromInt(100)

type linkFlags struct {
	transactions string
	surveys      string
	out          string
	from         string
	to           string
	dryRun       bool
	lookbackDays int
	merchantDays int
	workers      int
}

// linkCommands returns the command that runs one linkage pass over two exports.
func linkCommands(s *surveylinkInstance) *cobra.Command {
	f := &linkFlags{}

	cmd := &cobra.Command{
		Use:   "link",
		Short: "link a survey export to a transaction export",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			shutdown, err := trace.SetupOTelSDK(ctx, s.cnf.ProjectName, s.cnf.Tracing.Endpoint)
			if err != nil {
				return fmt.Errorf("error setting up OTel SDK: %v", err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					logrus.Errorf("error during trace shutdown: %v", err)
				}
			}()

			linker, err := linkerForFlags(s, cmd, f)
			if err != nil {
				return err
			}
			return runLink(ctx, s, linker, f, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&f.transactions, "transactions", "", "transaction export (CSV or JSON, local path or s3://), or \"warehouse\"")
	cmd.Flags().StringVar(&f.surveys, "surveys", "", "survey export (CSV or JSON, local path or s3://)")
	cmd.Flags().StringVar(&f.out, "out", "", "where to write linked records as CSV (local path or s3://); stdout summary only when empty")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest transaction date (YYYY-MM-DD) when reading from the warehouse")
	cmd.Flags().StringVar(&f.to, "to", "", "latest transaction date (YYYY-MM-DD) when reading from the warehouse")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "link and report without persisting the run")
	cmd.Flags().IntVar(&f.lookbackDays, "lookback-days", 0, "identity lookback window in days (overrides config)")
	cmd.Flags().IntVar(&f.merchantDays, "merchant-lookback-days", 0, "merchant/date lookback in calendar days (overrides config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "number of resolver workers (overrides config)")
	_ = cmd.MarkFlagRequired("transactions")
	_ = cmd.MarkFlagRequired("surveys")

	return cmd
}

// linkerForFlags reuses the configured linker unless a flag overrides the linkage policy.
func linkerForFlags(s *surveylinkInstance, cmd *cobra.Command, f *linkFlags) (*surveylink.Linker, error) {
	cfg := s.cnf.Linkage
	changed := false
	if cmd.Flags().Changed("lookback-days") {
		cfg.LookbackDays = f.lookbackDays
		changed = true
	}
	if cmd.Flags().Changed("merchant-lookback-days") {
		cfg.MerchantLookbackDays = f.merchantDays
		changed = true
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
		changed = true
	}
	if !changed {
		return s.linker, nil
	}
	return surveylink.NewLinker(cfg, s.options...)
}

func runLink(ctx context.Context, s *surveylinkInstance, linker *surveylink.Linker, f *linkFlags, stdout io.Writer) error {
	txnSource, err := transactionSource(s, f)
	if err != nil {
		return err
	}
	surveySource, err := fileSource(s.cnf, f.surveys, s.cnf.Columns.Surveys)
	if err != nil {
		return err
	}

	result, err := linker.RunSources(ctx, txnSource, surveySource, surveylink.RunOptions{DryRun: f.dryRun})
	if err != nil {
		return err
	}

	printSummary(stdout, result.Run)

	if f.out == "" {
		return nil
	}
	if err := writeOutput(ctx, s.cnf, f.out, result.Records, linker.Targets()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Linked records written to %s\n", f.out)
	return nil
}

func transactionSource(s *surveylinkInstance, f *linkFlags) (surveylink.TransactionSource, error) {
	if f.transactions != warehouseSource {
		return fileSource(s.cnf, f.transactions, s.cnf.Columns.Transactions)
	}
	if s.ds == nil {
		return nil, surveylink.ErrNoDataSource
	}

	src := surveylink.WarehouseSource{DataSource: s.ds}
	var err error
	if src.From, err = parseDateFlag(f.from); err != nil {
		return nil, fmt.Errorf("invalid --from: %v", err)
	}
	if src.To, err = parseDateFlag(f.to); err != nil {
		return nil, fmt.Errorf("invalid --to: %v", err)
	}
	if !src.To.IsZero() {
		// inclusive of the whole final day
		src.To = src.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return src, nil
}

func parseDateFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}

// fileSource reads name from S3 when it is an s3:// URL, otherwise from disk.
func fileSource(cnf *config.Configuration, name string, cols config.ColumnSet) (surveylink.FileSource, error) {
	src := surveylink.NewFileSource(name, cols)
	if exports.IsS3Path(name) {
		store, err := exports.NewS3Store(cnf.S3)
		if err != nil {
			return src, err
		}
		src.Opener = store
	}
	return src, nil
}

func writeOutput(ctx context.Context, cnf *config.Configuration, out string, records []model.LinkedRecord, targets []string) error {
	if !exports.IsS3Path(out) {
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		return surveylink.WriteLinkedCSV(file, records, targets)
	}

	var buf bytes.Buffer
	if err := surveylink.WriteLinkedCSV(&buf, records, targets); err != nil {
		return err
	}
	store, err := exports.NewS3Store(cnf.S3)
	if err != nil {
		return err
	}
	return store.Upload(ctx, out, bytes.NewReader(buf.Bytes()), "text/csv")
}

// printSummary renders the per-method breakdown of a run.
func printSummary(w io.Writer, run *model.LinkageRun) {
	fmt.Fprintf(w, "Run %s: %d surveys, %d matched, %d transactions indexed\n",
		run.RunID, run.Stats.Total, run.Stats.Matched(), run.TransactionCount)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Confidence", "Count", "Share"})
	for _, m := range model.LinkageMethods() {
		table.Append([]string{
			string(m),
			string(m.Confidence()),
			fmt.Sprintf("%d", run.Stats.Counts[m]),
			run.Stats.Share(m).Mul(decimalHundred).StringFixed(2) + "%",
		})
	}
	table.Render()
}
