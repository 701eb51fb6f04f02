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
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/blnkfinance/surveylink/model"
)

// LinkedRecordSink receives the output of a run. The Postgres datasource implements
// it and is used by default; WithSink routes records elsewhere.
type LinkedRecordSink interface {
	RecordLinkedRecords(ctx context.Context, runID string, records []model.LinkedRecord) error
}

var linkedHeader = []string{"survey_id", "matched_transaction_id", "linkage_method", "confidence"}

// surveyColumnPrefix is put in front of a survey field whose name is already
// taken by a fixed column or a copy-field target.
const surveyColumnPrefix = "survey_"

// linkedColumn is one CSV column and where its value comes from.
type linkedColumn struct {
	name   string
	field  string
	fromTx bool
}

func linkedColumns(records []model.LinkedRecord, targets []string) []linkedColumn {
	columns := make([]linkedColumn, 0, len(linkedHeader)+len(targets))
	taken := make(map[string]bool, len(linkedHeader)+len(targets))
	for _, h := range linkedHeader {
		columns = append(columns, linkedColumn{name: h})
		taken[h] = true
	}
	for _, t := range targets {
		columns = append(columns, linkedColumn{name: t, field: t, fromTx: true})
		taken[t] = true
	}

	seen := make(map[string]bool)
	var fields []string
	for _, rec := range records {
		for k := range rec.SurveyFields {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)

	// Plain names are claimed first so a prefixed name never displaces a real field.
	var clashes []string
	for _, f := range fields {
		if taken[f] {
			clashes = append(clashes, f)
			continue
		}
		taken[f] = true
	}
	renamed := make(map[string]string, len(clashes))
	for _, f := range clashes {
		name := surveyColumnPrefix + f
		for taken[name] {
			name = surveyColumnPrefix + name
		}
		taken[name] = true
		renamed[f] = name
	}

	for _, f := range fields {
		name := f
		if r, ok := renamed[f]; ok {
			name = r
		}
		columns = append(columns, linkedColumn{name: name, field: f})
	}
	return columns
}

// LinkedCSVHeader returns the column order WriteLinkedCSV uses: the fixed linkage
// columns, the copy-field targets in configured order, then the survey fields sorted
// by field name. A survey field named like a fixed column or a target is written
// under a "survey_" prefix.
func LinkedCSVHeader(records []model.LinkedRecord, targets []string) []string {
	columns := linkedColumns(records, targets)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.name
	}
	return header
}

// WriteLinkedCSV writes one row per linked record in input order. Nil values render as empty cells.
func WriteLinkedCSV(w io.Writer, records []model.LinkedRecord, targets []string) error {
	columns := linkedColumns(records, targets)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	line := make([]string, len(columns))
	for _, rec := range records {
		line[0] = rec.SurveyID
		line[1] = ""
		if rec.MatchedTransactionID != nil {
			line[1] = *rec.MatchedTransactionID
		}
		line[2] = string(rec.Method)
		line[3] = string(rec.Confidence())
		for i := len(linkedHeader); i < len(columns); i++ {
			col := columns[i]
			if col.fromTx {
				line[i] = formatCell(rec.TransactionFields[col.field])
				continue
			}
			line[i] = formatCell(rec.SurveyFields[col.field])
		}
		if err := cw.Write(line); err != nil {
			return errors.Wrapf(err, "writing csv row for survey %s", rec.SurveyID)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
