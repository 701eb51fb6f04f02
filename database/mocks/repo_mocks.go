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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/surveylink/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Linkage run methods

func (m *MockDataSource) RecordLinkageRun(ctx context.Context, run *model.LinkageRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) UpdateLinkageRun(ctx context.Context, run *model.LinkageRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDataSource) GetLinkageRun(ctx context.Context, runID string) (*model.LinkageRun, error) {
	args := m.Called(ctx, runID)
	if run, ok := args.Get(0).(*model.LinkageRun); ok {
		return run, args.Error(1)
	}
	return nil, args.Error(1)
}

// Linked record methods

func (m *MockDataSource) RecordLinkedRecords(ctx context.Context, runID string, records []model.LinkedRecord) error {
	args := m.Called(ctx, runID, records)
	return args.Error(0)
}

func (m *MockDataSource) GetLinkedRecords(ctx context.Context, runID string, limit, offset int) ([]model.LinkedRecord, error) {
	args := m.Called(ctx, runID, limit, offset)
	if records, ok := args.Get(0).([]model.LinkedRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

// Warehouse methods

func (m *MockDataSource) FetchTransactions(ctx context.Context, from, to time.Time) ([]model.TransactionRecord, error) {
	args := m.Called(ctx, from, to)
	if txns, ok := args.Get(0).([]model.TransactionRecord); ok {
		return txns, args.Error(1)
	}
	return nil, args.Error(1)
}
