package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	module := "test_module"
	id := GenerateUUIDWithSuffix(module)
	assert.Contains(t, id, module+"_")
}

func TestCalendarDate(t *testing.T) {
	ts := time.Date(2024, 3, 11, 21, 45, 12, 99, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), CalendarDate(ts))
	assert.Equal(t, "2024-03-11", DateKey(ts))
}

func TestLinkageMethod_Confidence(t *testing.T) {
	tests := map[LinkageMethod]Confidence{
		MethodIdentityMerchantDate: ConfidenceHigh,
		MethodIdentityDate:         ConfidenceMediumHigh,
		MethodIdentityOnly:         ConfidenceMedium,
		MethodMerchantDate:         ConfidenceLow,
		MethodUnmatched:            ConfidenceNone,
	}
	for method, want := range tests {
		assert.True(t, method.Valid())
		assert.Equal(t, want, method.Confidence(), method)
	}
	assert.False(t, LinkageMethod("best_guess").Valid())
	assert.Len(t, LinkageMethods(), 5)
}

func TestLinkedRecord_MarshalJSON(t *testing.T) {
	id := "txn_1"
	rec := LinkedRecord{
		SurveyID:             "srv_1",
		MatchedTransactionID: &id,
		Method:               MethodMerchantDate,
		SurveyFields:         Payload{"q1": "yes"},
		TransactionFields:    map[string]interface{}{"txn_zone": nil},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "low", decoded["confidence"])
	assert.Equal(t, "merchant_date", decoded["linkage_method"])
	assert.Equal(t, "txn_1", decoded["matched_transaction_id"])
	fields := decoded["transaction_fields"].(map[string]interface{})
	assert.Contains(t, fields, "txn_zone")
	assert.Nil(t, fields["txn_zone"])
}

func TestLinkageStats_Share(t *testing.T) {
	stats := NewLinkageStats()
	assert.True(t, stats.Share(MethodUnmatched).IsZero())

	stats.Total = 3
	stats.Counts[MethodIdentityDate] = 1
	stats.Counts[MethodUnmatched] = 2
	assert.Equal(t, "0.3333", stats.Share(MethodIdentityDate).String())
	assert.Equal(t, 1, stats.Matched())
}

func TestTransactionRecord_Field(t *testing.T) {
	occurred := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	txn := TransactionRecord{
		TransactionID: "t1",
		MerchantName:  "Pho - Camden",
		OccurredAt:    occurred,
		Payload:       Payload{"zone": "north"},
	}
	assert.Equal(t, "Pho - Camden", txn.Field("merchant_name"))
	assert.Equal(t, occurred, txn.Field("occurred_at"))
	assert.Equal(t, "north", txn.Field("zone"))
	assert.Nil(t, txn.Field("rating"))

	var empty TransactionRecord
	assert.Nil(t, empty.Field("occurred_at"))
	assert.Nil(t, empty.Field("zone"))
}
