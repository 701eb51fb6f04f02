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

package surveylink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/blnkfinance/surveylink/internal/cache"
	"github.com/blnkfinance/surveylink/model"
)

// ErrIndexesNotBuilt is returned when resolution is requested without a transaction set to index.
var ErrIndexesNotBuilt = errors.New("indexes not built: no transaction set supplied")

// ErrNoDataSource is returned by lookups that need persisted runs when the Linker has no datasource.
var ErrNoDataSource = errors.New("no datasource configured")

const (
	runCacheTTL = time.Hour

	// ctxCheckInterval is how many surveys a worker resolves between cancellation checks.
	ctxCheckInterval = 1000
)

// RunOptions controls a single linkage run.
type RunOptions struct {
	// DryRun resolves and reports but persists and caches nothing.
	DryRun bool
}

// RunResult is the output of a run. Records are in survey input order.
type RunResult struct {
	Run     *model.LinkageRun
	Records []model.LinkedRecord
}

func runCacheKey(runID string) string {
	return fmt.Sprintf("linkage_run:%s", runID)
}

// Run links every survey to at most one transaction. Indexes are built once from
// transactions; a nil transaction slice is a caller error and returns ErrIndexesNotBuilt.
// Per-survey problems never fail the run: such surveys come out unmatched.
func (l *Linker) Run(ctx context.Context, transactions []model.TransactionRecord, surveys []model.SurveyRecord, opts RunOptions) (*RunResult, error) {
	ctx, span := otel.Tracer("surveylink.linkage").Start(ctx, "Run linkage")
	defer span.End()

	if transactions == nil {
		span.RecordError(ErrIndexesNotBuilt)
		return nil, ErrIndexesNotBuilt
	}

	run := &model.LinkageRun{
		RunID:                model.GenerateUUIDWithSuffix("run"),
		Status:               model.RunStatusStarted,
		LookbackDays:         l.cfg.LookbackDays,
		MerchantLookbackDays: l.cfg.MerchantLookbackDays,
		TransactionCount:     len(transactions),
		Stats:                model.NewLinkageStats(),
		IsDryRun:             opts.DryRun,
		StartedAt:            time.Now(),
	}
	span.SetAttributes(attribute.String("run.id", run.RunID), attribute.Bool("run.dry_run", opts.DryRun))

	persist := l.datasource != nil && !opts.DryRun
	if persist {
		if err := l.datasource.RecordLinkageRun(ctx, run); err != nil {
			l.notify(fmt.Errorf("recording linkage run %s: %w", run.RunID, err))
			return nil, err
		}
	}

	indexes := l.buildIndexes(ctx, transactions)
	logrus.WithFields(logrus.Fields{
		"run_id":         run.RunID,
		"transactions":   indexes.Size,
		"identity_keys":  indexes.Identity.Len(),
		"merchant_dates": indexes.MerchantDate.Len(),
		"unindexed":      indexes.Unindexed,
	}).Info("indexes built")

	run.Status = model.RunStatusInProgress
	records, reporter, err := l.resolveAll(ctx, indexes, surveys)
	if err != nil {
		return nil, l.fail(ctx, run, persist, err)
	}
	run.Stats = reporter.Stats()

	if sink := l.recordSink(); sink != nil && !opts.DryRun {
		if err := sink.RecordLinkedRecords(ctx, run.RunID, records); err != nil {
			return nil, l.fail(ctx, run, persist, err)
		}
	}

	run.Status = model.RunStatusCompleted
	run.CompletedAt = ptr.Time(time.Now())
	if persist {
		if err := l.datasource.UpdateLinkageRun(ctx, run); err != nil {
			return nil, l.fail(ctx, run, persist, err)
		}
	}
	if l.cache != nil && !opts.DryRun {
		if err := l.cache.Set(ctx, runCacheKey(run.RunID), run, runCacheTTL); err != nil {
			logrus.WithField("run_id", run.RunID).Warnf("failed to cache linkage run: %v", err)
		}
	}

	fields := logrus.Fields{"run_id": run.RunID, "total": run.Stats.Total, "dry_run": opts.DryRun}
	for m, n := range run.Stats.Counts {
		fields[string(m)] = n
	}
	logrus.WithFields(fields).Info("linkage run completed")

	return &RunResult{Run: run, Records: records}, nil
}

// RunSources loads both inputs and runs linkage over them.
func (l *Linker) RunSources(ctx context.Context, txnSource TransactionSource, surveySource SurveySource, opts RunOptions) (*RunResult, error) {
	transactions, err := txnSource.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	if transactions == nil {
		transactions = []model.TransactionRecord{}
	}

	surveys, err := surveySource.LoadSurveys(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading surveys: %w", err)
	}

	return l.Run(ctx, transactions, surveys, opts)
}

func (l *Linker) buildIndexes(ctx context.Context, transactions []model.TransactionRecord) *Indexes {
	_, span := otel.Tracer("surveylink.linkage").Start(ctx, "Build indexes")
	defer span.End()

	return BuildIndexes(transactions, l.normalizer)
}

// resolveAll resolves and enriches every survey. With more than one worker the surveys
// are split into contiguous chunks; each worker writes only its own slots of the output
// and keeps its own Reporter, and the reporters are merged once all workers finish.
func (l *Linker) resolveAll(ctx context.Context, indexes *Indexes, surveys []model.SurveyRecord) ([]model.LinkedRecord, *Reporter, error) {
	ctx, span := otel.Tracer("surveylink.linkage").Start(ctx, "Resolve surveys")
	defer span.End()

	resolver := NewResolver(indexes, l.normalizer, l.cfg, l.cascade)
	records := make([]model.LinkedRecord, len(surveys))

	workers := l.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(surveys) {
		workers = len(surveys)
	}
	if workers <= 1 {
		reporter := NewReporter()
		err := l.resolveChunk(ctx, resolver, surveys, records, reporter)
		return records, reporter, err
	}

	chunk := (len(surveys) + workers - 1) / workers
	reporters := make([]*Reporter, 0, workers)
	errs := make([]error, 0, workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for start := 0; start < len(surveys); start += chunk {
		end := start + chunk
		if end > len(surveys) {
			end = len(surveys)
		}
		reporter := NewReporter()
		reporters = append(reporters, reporter)

		wg.Add(1)
		go func(part []model.SurveyRecord, out []model.LinkedRecord, reporter *Reporter) {
			defer wg.Done()
			if err := l.resolveChunk(ctx, resolver, part, out, reporter); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(surveys[start:end], records[start:end], reporter)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, nil, errs[0]
	}

	total := NewReporter()
	for _, r := range reporters {
		total.Merge(r)
	}
	return records, total, nil
}

func (l *Linker) resolveChunk(ctx context.Context, resolver *Resolver, surveys []model.SurveyRecord, out []model.LinkedRecord, reporter *Reporter) error {
	for i := range surveys {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		res := resolver.Resolve(&surveys[i])
		out[i] = l.enricher.Enrich(&surveys[i], res)
		reporter.Record(out[i].Method)
	}
	return nil
}

// fail marks the run failed, persists that status when possible and notifies.
func (l *Linker) fail(ctx context.Context, run *model.LinkageRun, persist bool, cause error) error {
	run.Status = model.RunStatusFailed
	run.CompletedAt = ptr.Time(time.Now())

	logrus.WithField("run_id", run.RunID).Errorf("linkage run failed: %v", cause)
	if persist {
		if err := l.datasource.UpdateLinkageRun(context.WithoutCancel(ctx), run); err != nil {
			logrus.WithField("run_id", run.RunID).Errorf("failed to mark linkage run failed: %v", err)
		}
	}
	l.notify(fmt.Errorf("linkage run %s failed: %w", run.RunID, cause))
	return cause
}

// GetLinkageRun returns a run by id, reading the cache first.
func (l *Linker) GetLinkageRun(ctx context.Context, runID string) (*model.LinkageRun, error) {
	ctx, span := otel.Tracer("surveylink.linkage").Start(ctx, "Get linkage run")
	defer span.End()

	if l.cache != nil {
		var run model.LinkageRun
		err := l.cache.Get(ctx, runCacheKey(runID), &run)
		if err == nil {
			return &run, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logrus.WithField("run_id", runID).Warnf("failed to read linkage run from cache: %v", err)
		}
	}

	if l.datasource == nil {
		return nil, ErrNoDataSource
	}
	run, err := l.datasource.GetLinkageRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil && run.Status == model.RunStatusCompleted {
		if err := l.cache.Set(ctx, runCacheKey(runID), run, runCacheTTL); err != nil {
			logrus.WithField("run_id", runID).Warnf("failed to cache linkage run: %v", err)
		}
	}
	return run, nil
}

// GetLinkedRecords returns a page of a persisted run's output.
func (l *Linker) GetLinkedRecords(ctx context.Context, runID string, limit, offset int) ([]model.LinkedRecord, error) {
	if l.datasource == nil {
		return nil, ErrNoDataSource
	}
	return l.datasource.GetLinkedRecords(ctx, runID, limit, offset)
}
