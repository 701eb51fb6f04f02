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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/surveylink/config"
)

func TestParseTransactionsCSV(t *testing.T) {
	input := "Transaction_ID,Email,Restaurant,Order_Time,Value,Zone\n" +
		"T1, A@x.com ,Pho - Camden,2024-03-10 12:00:00,20.5,north\n" +
		",b@x.com,Pho,2024-03-10 13:00:00,10,south\n" +
		"T3,,Sushi Palace,not a date,,east\n"

	txns, rowErrs, err := ParseTransactions(strings.NewReader(input), "orders.csv", config.DefaultColumnConfig().Transactions)
	require.NoError(t, err)

	require.Len(t, txns, 2)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Error(), "transaction_id")

	assert.Equal(t, "T1", txns[0].TransactionID)
	assert.Equal(t, " A@x.com ", txns[0].Identity)
	assert.Equal(t, "Pho - Camden", txns[0].MerchantName)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), txns[0].OccurredAt)
	assert.Equal(t, "20.5", txns[0].Payload["value"])
	assert.Equal(t, "north", txns[0].Payload["zone"])
	assert.NotContains(t, txns[0].Payload, "email")

	assert.Equal(t, "", txns[1].Identity)
	assert.True(t, txns[1].OccurredAt.IsZero())
	assert.Contains(t, txns[1].Payload, "value")
	assert.Nil(t, txns[1].Payload["value"])
}

func TestParseTransactionsCSVMissingIDColumn(t *testing.T) {
	input := "email,restaurant\na@x.com,Pho\n"

	_, _, err := ParseTransactions(strings.NewReader(input), "orders.csv", config.DefaultColumnConfig().Transactions)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseSurveysJSON(t *testing.T) {
	input := `[
		{"survey_id": "S1", "email": "a@x.com", "restaurant": "Pho", "submitted_at": "2024-03-11T12:00:00Z", "rating": 4},
		{"survey_id": 42, "email": 17, "restaurant": null, "submitted_at": 1710158400},
		{"email": "c@x.com"}
	]`

	surveys, rowErrs, err := ParseSurveys(strings.NewReader(input), "surveys.json", config.DefaultColumnConfig().Surveys)
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 3, rowErrs[0].Row)

	assert.Equal(t, "S1", surveys[0].SurveyID)
	assert.Equal(t, "a@x.com", surveys[0].StatedIdentity)
	assert.True(t, surveys[0].HasSubmittedAt())
	assert.Equal(t, json.Number("4"), surveys[0].Payload["rating"])

	assert.Equal(t, "42", surveys[1].SurveyID)
	assert.Equal(t, "", surveys[1].StatedIdentity, "non-string identity is absent")
	assert.Equal(t, "", surveys[1].StatedMerchant)
	assert.False(t, surveys[1].HasSubmittedAt())
}

func TestParseSurveysJSONLines(t *testing.T) {
	input := `{"survey_id": "S1", "email": "a@x.com"}
{"survey_id": "S2", "restaurant": "Sushi Palace", "submitted_at": "2024-03-11"}
`
	surveys, rowErrs, err := ParseSurveys(strings.NewReader(input), "surveys.jsonl", config.DefaultColumnConfig().Surveys)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, surveys, 2)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), surveys[1].SubmittedAt)
}

func TestParseTransactionsCSVSkipsMalformedRow(t *testing.T) {
	input := "transaction_id,email,restaurant,order_time\n" +
		"T1,a@x.com,Pho - Camden,2024-03-10 12:00:00\n" +
		"T2,b@x.com,\"Bad\"Quote,2024-03-10 13:00:00\n" +
		"T3,c@x.com,Sushi Palace,2024-03-10 14:00:00\n" +
		",d@x.com,Pho,2024-03-10 15:00:00\n"

	txns, rowErrs, err := ParseTransactions(strings.NewReader(input), "orders.csv", config.DefaultColumnConfig().Transactions)
	require.NoError(t, err)

	require.Len(t, txns, 2)
	assert.Equal(t, "T1", txns[0].TransactionID)
	assert.Equal(t, "T3", txns[1].TransactionID)
	assert.Equal(t, "Sushi Palace", txns[1].MerchantName)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Reason, "quote")
	assert.Equal(t, 4, rowErrs[1].Row)
}

func TestParseSurveysJSONSkipsNonObjects(t *testing.T) {
	input := `[{"survey_id": "S1"}, 42, {"survey_id": "S3", "email": "c@x.com"}, null]`

	surveys, rowErrs, err := ParseSurveys(strings.NewReader(input), "surveys.json", config.DefaultColumnConfig().Surveys)
	require.NoError(t, err)

	require.Len(t, surveys, 2)
	assert.Equal(t, "S1", surveys[0].SurveyID)
	assert.Equal(t, "S3", surveys[1].SurveyID)
	assert.Equal(t, "c@x.com", surveys[1].StatedIdentity)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 2, rowErrs[0].Row)
	assert.Contains(t, rowErrs[0].Reason, "not a JSON object")
	assert.Equal(t, 4, rowErrs[1].Row)
}

func TestParseSurveysJSONLinesSkipsNonObjects(t *testing.T) {
	input := "{\"survey_id\": \"S1\"}\n\"oops\"\n{\"survey_id\": \"S3\"}\n"

	surveys, rowErrs, err := ParseSurveys(strings.NewReader(input), "surveys.jsonl", config.DefaultColumnConfig().Surveys)
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 2, rowErrs[0].Row)
}

func TestParseSurveysJSONLinesSyntaxError(t *testing.T) {
	input := "{\"survey_id\": \"S1\"}\n{\"survey_id\": \n"

	_, _, err := ParseSurveys(strings.NewReader(input), "surveys.jsonl", config.DefaultColumnConfig().Surveys)
	assert.Error(t, err)
}

func TestParseUnsupportedFile(t *testing.T) {
	_, _, err := ParseSurveys(strings.NewReader("just some words"), "notes.txt", config.DefaultColumnConfig().Surveys)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestDetectFileType(t *testing.T) {
	csvData := []byte("a,b\n1,2\n")
	assert.Equal(t, fileTypeCSV, detectFileType(csvData, "upload"))
	assert.Equal(t, fileTypeJSON, detectFileType([]byte(`[{"a":1}]`), "upload"))
	assert.Equal(t, fileTypeJSON, detectFileType(csvData, "upload.json"))
	assert.Equal(t, fileTypeCSV, detectFileType([]byte(`{}`), "upload.csv"))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-11T09:30:00Z", "2024-03-11 09:30:00", "2024-03-11T09:30:00", "2024-03-11 09:30"} {
		assert.True(t, want.Equal(parseTimestamp(s)), s)
	}
	assert.True(t, parseTimestamp("11/03/2024").IsZero())
	assert.True(t, parseTimestamp("").IsZero())
}
