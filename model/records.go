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

import "time"

// Payload is the opaque bag of extra columns carried by a transaction or survey row.
type Payload map[string]interface{}

// Get returns the value stored under key, or nil when the payload has no such field.
func (p Payload) Get(key string) interface{} {
	if p == nil {
		return nil
	}
	return p[key]
}

// TransactionRecord is a row of the authoritative transaction log.
// Records are loaded once per run and never mutated. IdentityKey and
// MerchantKey are filled on the index's own copy when indexes are built.
type TransactionRecord struct {
	TransactionID string    `json:"transaction_id"`
	Identity      string    `json:"identity"`
	MerchantName  string    `json:"merchant_name"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       Payload   `json:"payload,omitempty"`
	IdentityKey   string    `json:"identity_key,omitempty"`
	MerchantKey   string    `json:"merchant_key,omitempty"`
}

// Field resolves a copy-field source name against the record. Core attributes
// are addressed by their JSON names, everything else is looked up in the payload.
func (t *TransactionRecord) Field(name string) interface{} {
	switch name {
	case "transaction_id":
		return t.TransactionID
	case "identity":
		return t.Identity
	case "merchant_name":
		return t.MerchantName
	case "occurred_at":
		if t.OccurredAt.IsZero() {
			return nil
		}
		return t.OccurredAt
	}
	return t.Payload.Get(name)
}

// SurveyRecord is one respondent's submission. StatedIdentity and StatedMerchant
// are free text and may be empty; a zero SubmittedAt means the date is unknown.
type SurveyRecord struct {
	SurveyID       string    `json:"survey_id"`
	StatedIdentity string    `json:"stated_identity"`
	StatedMerchant string    `json:"stated_merchant"`
	SubmittedAt    time.Time `json:"submitted_at"`
	Payload        Payload   `json:"payload,omitempty"`
}

// HasSubmittedAt reports whether the survey carries a usable submission time.
func (s *SurveyRecord) HasSubmittedAt() bool {
	return !s.SubmittedAt.IsZero()
}
