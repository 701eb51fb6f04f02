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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/surveylink/internal/apierror"
	"github.com/blnkfinance/surveylink/model"
	"go.opentelemetry.io/otel"
)

// RecordLinkageRun inserts a new linkage run into the database.
func (d Datasource) RecordLinkageRun(ctx context.Context, run *model.LinkageRun) error {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Saving linkage run to db")
	defer span.End()

	counts, err := json.Marshal(run.Stats.Counts)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to marshal method counts", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO surveylink.linkage_runs(
			run_id, status, lookback_days, merchant_lookback_days, transaction_count,
			total_records, method_counts, is_dry_run, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.RunID, run.Status, run.LookbackDays, run.MerchantLookbackDays, run.TransactionCount,
		run.Stats.Total, counts, run.IsDryRun, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to record linkage run", err)
	}

	return nil
}

// UpdateLinkageRun persists the status, counters and completion time of a run.
func (d Datasource) UpdateLinkageRun(ctx context.Context, run *model.LinkageRun) error {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Updating linkage run")
	defer span.End()

	counts, err := json.Marshal(run.Stats.Counts)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to marshal method counts", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE surveylink.linkage_runs
		SET status = $2, transaction_count = $3, total_records = $4, method_counts = $5, completed_at = $6
		WHERE run_id = $1
	`, run.RunID, run.Status, run.TransactionCount, run.Stats.Total, counts, run.CompletedAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to update linkage run", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("linkage run with ID '%s' not found", run.RunID), nil)
	}

	return nil
}

// GetLinkageRun retrieves a linkage run by its run ID.
func (d Datasource) GetLinkageRun(ctx context.Context, runID string) (*model.LinkageRun, error) {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Fetching linkage run from db")
	defer span.End()

	run := &model.LinkageRun{}
	var counts []byte
	var completedAt sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, run_id, status, lookback_days, merchant_lookback_days, transaction_count,
			total_records, method_counts, is_dry_run, started_at, completed_at
		FROM surveylink.linkage_runs
		WHERE run_id = $1
	`, runID).Scan(
		&run.ID, &run.RunID, &run.Status, &run.LookbackDays, &run.MerchantLookbackDays,
		&run.TransactionCount, &run.Stats.Total, &counts, &run.IsDryRun,
		&run.StartedAt, &completedAt,
	)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("linkage run with ID '%s' not found", runID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve linkage run", err)
	}

	run.Stats.Counts = model.NewLinkageStats().Counts
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &run.Stats.Counts); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to unmarshal method counts", err)
		}
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return run, nil
}

// RecordLinkedRecords stores a run's output in a single transaction, keeping input order in the position column.
func (d Datasource) RecordLinkedRecords(ctx context.Context, runID string, records []model.LinkedRecord) error {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Saving linked records to db")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO surveylink.linked_records(
			run_id, position, survey_id, matched_transaction_id, linkage_method,
			confidence, survey_fields, transaction_fields
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to prepare statement", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		surveyFields, err := json.Marshal(rec.SurveyFields)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to marshal survey fields", err)
		}
		txnFields, err := json.Marshal(rec.TransactionFields)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "failed to marshal transaction fields", err)
		}

		_, err = stmt.ExecContext(ctx, runID, i, rec.SurveyID, rec.MatchedTransactionID,
			rec.Method, rec.Confidence(), surveyFields, txnFields)
		if err != nil {
			span.RecordError(err)
			return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to save linked record for survey '%s'", rec.SurveyID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to commit linked records", err)
	}

	return nil
}

// GetLinkedRecords returns a page of a run's output in input order.
func (d Datasource) GetLinkedRecords(ctx context.Context, runID string, limit, offset int) ([]model.LinkedRecord, error) {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Fetching linked records from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT survey_id, matched_transaction_id, linkage_method, survey_fields, transaction_fields
		FROM surveylink.linked_records
		WHERE run_id = $1
		ORDER BY position
		LIMIT $2 OFFSET $3
	`, runID, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve linked records", err)
	}
	defer rows.Close()

	records := []model.LinkedRecord{}
	for rows.Next() {
		var rec model.LinkedRecord
		var matched sql.NullString
		var surveyFields, txnFields []byte
		if err := rows.Scan(&rec.SurveyID, &matched, &rec.Method, &surveyFields, &txnFields); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan linked record", err)
		}
		if matched.Valid {
			rec.MatchedTransactionID = &matched.String
		}
		if err := json.Unmarshal(surveyFields, &rec.SurveyFields); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to unmarshal survey fields", err)
		}
		if err := json.Unmarshal(txnFields, &rec.TransactionFields); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to unmarshal transaction fields", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over linked records", err)
	}

	return records, nil
}

// FetchTransactions loads the transactions that occurred in [from, to]. A zero bound is left open.
func (d Datasource) FetchTransactions(ctx context.Context, from, to time.Time) ([]model.TransactionRecord, error) {
	ctx, span := otel.Tracer("Linkage").Start(ctx, "Fetching transactions from warehouse")
	defer span.End()

	var fromArg, toArg interface{}
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT transaction_id, identity, merchant_name, occurred_at, payload
		FROM surveylink.transactions
		WHERE ($1::timestamp IS NULL OR occurred_at >= $1)
		  AND ($2::timestamp IS NULL OR occurred_at <= $2)
		ORDER BY occurred_at, transaction_id
	`, fromArg, toArg)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve transactions", err)
	}
	defer rows.Close()

	transactions := []model.TransactionRecord{}
	for rows.Next() {
		var txn model.TransactionRecord
		var identity, merchant sql.NullString
		var occurredAt sql.NullTime
		var payload []byte
		if err := rows.Scan(&txn.TransactionID, &identity, &merchant, &occurredAt, &payload); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan transaction", err)
		}
		txn.Identity = identity.String
		txn.MerchantName = merchant.String
		if occurredAt.Valid {
			txn.OccurredAt = occurredAt.Time
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &txn.Payload); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to unmarshal transaction payload", err)
			}
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over transactions", err)
	}

	return transactions, nil
}
