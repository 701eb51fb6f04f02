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

package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LinkageMethod names the cascade strategy that attributed a survey to a transaction.
type LinkageMethod string

const (
	MethodIdentityMerchantDate LinkageMethod = "identity_merchant_date"
	MethodIdentityDate         LinkageMethod = "identity_date"
	MethodIdentityOnly         LinkageMethod = "identity_only"
	MethodMerchantDate         LinkageMethod = "merchant_date"
	MethodUnmatched            LinkageMethod = "unmatched"
)

// Confidence is the label derived from a LinkageMethod. No numeric score exists.
type Confidence string

const (
	ConfidenceHigh       Confidence = "high"
	ConfidenceMediumHigh Confidence = "medium-high"
	ConfidenceMedium     Confidence = "medium"
	ConfidenceLow        Confidence = "low"
	ConfidenceNone       Confidence = "none"
)

// LinkageMethods lists every method in cascade priority order, unmatched last.
func LinkageMethods() []LinkageMethod {
	return []LinkageMethod{
		MethodIdentityMerchantDate,
		MethodIdentityDate,
		MethodIdentityOnly,
		MethodMerchantDate,
		MethodUnmatched,
	}
}

// Valid reports whether m is one of the five known methods.
func (m LinkageMethod) Valid() bool {
	switch m {
	case MethodIdentityMerchantDate, MethodIdentityDate, MethodIdentityOnly, MethodMerchantDate, MethodUnmatched:
		return true
	}
	return false
}

// Confidence maps the method onto its confidence tier.
func (m LinkageMethod) Confidence() Confidence {
	switch m {
	case MethodIdentityMerchantDate:
		return ConfidenceHigh
	case MethodIdentityDate:
		return ConfidenceMediumHigh
	case MethodIdentityOnly:
		return ConfidenceMedium
	case MethodMerchantDate:
		return ConfidenceLow
	}
	return ConfidenceNone
}

// FieldMapping copies the transaction field Source onto the linked record as Target.
type FieldMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// LinkedRecord is the single output produced for every survey.
// MatchedTransactionID is nil when Method is unmatched, and every configured
// transaction field is present with a nil value in that case.
type LinkedRecord struct {
	SurveyID             string                 `json:"survey_id"`
	MatchedTransactionID *string                `json:"matched_transaction_id"`
	Method               LinkageMethod          `json:"linkage_method"`
	SurveyFields         Payload                `json:"survey_fields"`
	TransactionFields    map[string]interface{} `json:"transaction_fields"`
}

// Confidence is derived from the linkage method and cannot be set on its own.
func (l LinkedRecord) Confidence() Confidence {
	return l.Method.Confidence()
}

// Matched reports whether a transaction was attributed to the survey.
func (l LinkedRecord) Matched() bool {
	return l.MatchedTransactionID != nil
}

// MarshalJSON adds the derived confidence to the serialized record.
func (l LinkedRecord) MarshalJSON() ([]byte, error) {
	type alias LinkedRecord
	return json.Marshal(struct {
		alias
		Confidence Confidence `json:"confidence"`
	}{alias: alias(l), Confidence: l.Confidence()})
}

// LinkageStats counts processed surveys per linkage method.
type LinkageStats struct {
	Total  int                   `json:"total"`
	Counts map[LinkageMethod]int `json:"counts"`
}

// NewLinkageStats returns empty stats with a zero entry for every method.
func NewLinkageStats() LinkageStats {
	counts := make(map[LinkageMethod]int, 5)
	for _, m := range LinkageMethods() {
		counts[m] = 0
	}
	return LinkageStats{Counts: counts}
}

// Matched returns the number of surveys attributed to a transaction by any strategy.
func (s LinkageStats) Matched() int {
	return s.Total - s.Counts[MethodUnmatched]
}

// Share returns the fraction of processed surveys resolved by m, rounded to four places.
func (s LinkageStats) Share(m LinkageMethod) decimal.Decimal {
	if s.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Counts[m])).
		Div(decimal.NewFromInt(int64(s.Total))).
		Round(4)
}

// Linkage run statuses.
const (
	RunStatusStarted    = "started"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// LinkageRun tracks one execution of the linkage engine.
type LinkageRun struct {
	ID                   int64        `json:"-"`
	RunID                string       `json:"run_id"`
	Status               string       `json:"status"`
	LookbackDays         int          `json:"lookback_days"`
	MerchantLookbackDays int          `json:"merchant_lookback_days"`
	TransactionCount     int          `json:"transaction_count"`
	Stats                LinkageStats `json:"stats"`
	IsDryRun             bool         `json:"is_dry_run"`
	StartedAt            time.Time    `json:"started_at"`
	CompletedAt          *time.Time   `json:"completed_at"`
}
