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
	"time"

	"github.com/blnkfinance/surveylink/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	linkageRun   // Interface for linkage run bookkeeping
	linkedRecord // Interface for linked record storage
	warehouse    // Interface for reading the authoritative transaction log
}

// linkageRun defines methods for tracking linkage runs.
type linkageRun interface {
	RecordLinkageRun(ctx context.Context, run *model.LinkageRun) error
	UpdateLinkageRun(ctx context.Context, run *model.LinkageRun) error
	GetLinkageRun(ctx context.Context, runID string) (*model.LinkageRun, error)
}

// linkedRecord defines methods for persisting the engine's output.
type linkedRecord interface {
	RecordLinkedRecords(ctx context.Context, runID string, records []model.LinkedRecord) error
	GetLinkedRecords(ctx context.Context, runID string, limit, offset int) ([]model.LinkedRecord, error)
}

// warehouse defines methods for loading transactions.
type warehouse interface {
	FetchTransactions(ctx context.Context, from, to time.Time) ([]model.TransactionRecord, error)
}
