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
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/model"
)

var (
	// ErrUnsupportedFileType is returned when an upload is neither CSV nor JSON.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMissingColumn is returned when a CSV header lacks the record id column.
	ErrMissingColumn = errors.New("required column not found")
)

const (
	fileTypeCSV  = "text/csv"
	fileTypeJSON = "application/json"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// RowError describes an input row that could not be loaded. Rows are numbered from 1,
// not counting a CSV header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// row is one input record keyed by lower-cased column name.
type row map[string]interface{}

// ParseTransactions reads a CSV or JSON export of the transaction log. Rows without
// a transaction id are skipped and reported; every other row loads, with missing or
// malformed identity, merchant or timestamp values treated as absent.
func ParseTransactions(r io.Reader, filename string, cols config.ColumnSet) ([]model.TransactionRecord, []RowError, error) {
	rows, rowErrs, err := readRows(r, filename, cols.ID)
	if err != nil {
		return nil, nil, err
	}

	transactions := make([]model.TransactionRecord, 0, len(rows))
	for i, rw := range rows {
		if rw == nil {
			continue
		}
		id := idValue(rw.take(cols.ID))
		if id == "" {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Reason: fmt.Sprintf("missing %s", cols.ID)})
			continue
		}
		transactions = append(transactions, model.TransactionRecord{
			TransactionID: id,
			Identity:      stringValue(rw.take(cols.Identity)),
			MerchantName:  stringValue(rw.take(cols.Merchant)),
			OccurredAt:    timeValue(rw.take(cols.Time)),
			Payload:       rw.payload(),
		})
	}
	sortRowErrors(rowErrs)
	return transactions, rowErrs, nil
}

// ParseSurveys reads a CSV or JSON export of survey responses with the same rules as ParseTransactions.
func ParseSurveys(r io.Reader, filename string, cols config.ColumnSet) ([]model.SurveyRecord, []RowError, error) {
	rows, rowErrs, err := readRows(r, filename, cols.ID)
	if err != nil {
		return nil, nil, err
	}

	surveys := make([]model.SurveyRecord, 0, len(rows))
	for i, rw := range rows {
		if rw == nil {
			continue
		}
		id := idValue(rw.take(cols.ID))
		if id == "" {
			rowErrs = append(rowErrs, RowError{Row: i + 1, Reason: fmt.Sprintf("missing %s", cols.ID)})
			continue
		}
		surveys = append(surveys, model.SurveyRecord{
			SurveyID:       id,
			StatedIdentity: stringValue(rw.take(cols.Identity)),
			StatedMerchant: stringValue(rw.take(cols.Merchant)),
			SubmittedAt:    timeValue(rw.take(cols.Time)),
			Payload:        rw.payload(),
		})
	}
	sortRowErrors(rowErrs)
	return surveys, rowErrs, nil
}

func sortRowErrors(rowErrs []RowError) {
	sort.SliceStable(rowErrs, func(i, j int) bool {
		return rowErrs[i].Row < rowErrs[j].Row
	})
}

// take removes and returns the value stored under column.
func (r row) take(column string) interface{} {
	key := columnKey(column)
	v := r[key]
	delete(r, key)
	return v
}

func (r row) payload() model.Payload {
	if len(r) == 0 {
		return nil
	}
	return model.Payload(r)
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// readRows returns one entry per input record. A record that cannot be decoded is
// kept as a nil row, so positions stay aligned, and reported in the row errors.
func readRows(r io.Reader, filename, idColumn string) ([]row, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	switch detectFileType(data, filename) {
	case fileTypeCSV:
		return readCSV(data, idColumn)
	case fileTypeJSON:
		return readJSON(data)
	default:
		return nil, nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFileType)
	}
}

// detectFileType trusts the file extension first and falls back to sniffing the content.
func detectFileType(data []byte, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return fileTypeCSV
	case ".json", ".jsonl", ".ndjson":
		return fileTypeJSON
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		mediaType, _, _ := mime.ParseMediaType(mimeType)
		if mediaType == fileTypeCSV || mediaType == fileTypeJSON {
			return mediaType
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return fileTypeJSON
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	switch mediaType {
	case "text/plain", "application/octet-stream", fileTypeCSV:
		if looksLikeCSV(trimmed) {
			return fileTypeCSV
		}
	}
	return mediaType
}

// looksLikeCSV requires at least two lines with the same number of comma-separated fields.
func looksLikeCSV(data []byte) bool {
	lines := bytes.Split(data, []byte("\n"))
	if len(lines) < 2 {
		return false
	}

	fields := bytes.Count(lines[0], []byte(",")) + 1
	for _, line := range lines[1:] {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, []byte(","))+1 != fields {
			return false
		}
	}
	return fields > 1
}

func readCSV(data []byte, idColumn string) ([]row, []RowError, error) {
	csvReader := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading CSV headers: %w", err)
	}
	for i, h := range headers {
		headers[i] = columnKey(strings.TrimPrefix(h, "\ufeff"))
	}
	if !containsString(headers, columnKey(idColumn)) {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, idColumn)
	}

	var rows []row
	var rowErrs []RowError
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, nil, fmt.Errorf("error reading CSV row %d: %w", len(rows)+1, err)
			}
			rows = append(rows, nil)
			rowErrs = append(rowErrs, RowError{Row: len(rows), Reason: parseErr.Error()})
			continue
		}

		rw := make(row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			var cell string
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			if cell == "" {
				rw[h] = nil
				continue
			}
			rw[h] = cell
		}
		rows = append(rows, rw)
	}
	return rows, rowErrs, nil
}

// readJSON accepts either a JSON array of objects or a stream of objects (JSON lines).
// Elements that are not objects become row errors. A syntax error in a stream cannot
// be skipped past and fails the whole input.
func readJSON(data []byte) ([]row, []RowError, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var elements []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decoder.Decode(&elements); err != nil {
			return nil, nil, fmt.Errorf("error decoding JSON array: %w", err)
		}
	} else {
		for {
			var element json.RawMessage
			err := decoder.Decode(&element)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, nil, fmt.Errorf("error decoding JSON record %d: %w", len(elements)+1, err)
			}
			elements = append(elements, element)
		}
	}

	rows := make([]row, 0, len(elements))
	var rowErrs []RowError
	for _, element := range elements {
		obj, err := decodeObject(element)
		if err != nil {
			rows = append(rows, nil)
			rowErrs = append(rowErrs, RowError{Row: len(rows), Reason: err.Error()})
			continue
		}
		rows = append(rows, jsonRow(obj))
	}
	return rows, rowErrs, nil
}

func decodeObject(element json.RawMessage) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(element))
	decoder.UseNumber()

	var obj map[string]interface{}
	if err := decoder.Decode(&obj); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if obj == nil {
		return nil, errors.New("not a JSON object: null")
	}
	return obj, nil
}

func jsonRow(obj map[string]interface{}) row {
	rw := make(row, len(obj))
	for k, v := range obj {
		rw[columnKey(k)] = v
	}
	return rw
}

// idValue accepts strings and JSON numbers; anything else is treated as missing.
func idValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// stringValue returns v when it is a string. Other types carry no usable text.
func stringValue(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// timeValue parses v with the supported layouts. Anything unparseable is the zero time.
func timeValue(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	return parseTimestamp(s)
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func containsString(slice []string, item string) bool {
	for _, a := range slice {
		if a == item {
			return true
		}
	}
	return false
}
