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
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/database"
	"github.com/blnkfinance/surveylink/model"
)

// TransactionSource loads the transaction log for a run.
type TransactionSource interface {
	LoadTransactions(ctx context.Context) ([]model.TransactionRecord, error)
}

// SurveySource loads the survey responses for a run.
type SurveySource interface {
	LoadSurveys(ctx context.Context) ([]model.SurveyRecord, error)
}

// Opener opens a named export for reading. The S3 store in internal/exports implements it.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalFiles opens exports from the local filesystem.
type LocalFiles struct{}

func (LocalFiles) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// FileSource reads a CSV or JSON export through an Opener. Skipped rows are logged
// as warnings and the rest of the file still loads.
type FileSource struct {
	Opener  Opener
	Name    string
	Columns config.ColumnSet
}

// NewFileSource reads name from the local filesystem.
func NewFileSource(name string, cols config.ColumnSet) FileSource {
	return FileSource{Opener: LocalFiles{}, Name: name, Columns: cols}
}

func (s FileSource) LoadTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	body, err := s.Opener.Open(ctx, s.Name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	transactions, rowErrs, err := ParseTransactions(body, s.Name, s.Columns)
	if err != nil {
		return nil, err
	}
	logRowErrors(s.Name, rowErrs)
	return transactions, nil
}

func (s FileSource) LoadSurveys(ctx context.Context) ([]model.SurveyRecord, error) {
	body, err := s.Opener.Open(ctx, s.Name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	surveys, rowErrs, err := ParseSurveys(body, s.Name, s.Columns)
	if err != nil {
		return nil, err
	}
	logRowErrors(s.Name, rowErrs)
	return surveys, nil
}

func logRowErrors(name string, rowErrs []RowError) {
	for _, re := range rowErrs {
		logrus.WithFields(logrus.Fields{
			"file": name,
			"row":  re.Row,
		}).Warn(re.Reason)
	}
}

// WarehouseSource reads transactions stored in Postgres, optionally bounded by occurrence time.
type WarehouseSource struct {
	DataSource database.IDataSource
	From       time.Time
	To         time.Time
}

func (s WarehouseSource) LoadTransactions(ctx context.Context) ([]model.TransactionRecord, error) {
	return s.DataSource.FetchTransactions(ctx, s.From, s.To)
}
