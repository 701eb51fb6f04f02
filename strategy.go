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
	"time"

	"github.com/blnkfinance/surveylink/model"
)

// Query is a survey reduced to the normalized keys the strategies compare.
// Empty keys and a zero SubmittedAt mean the field is absent.
type Query struct {
	SurveyID    string
	IdentityKey string
	MerchantKey string
	SubmittedAt time.Time
}

// NewQuery normalizes the identity and merchant fields of a survey.
func NewQuery(survey *model.SurveyRecord, normalizer Normalizer) Query {
	q := Query{}
	if survey == nil {
		return q
	}
	q.SurveyID = survey.SurveyID
	q.IdentityKey, _ = normalizer.Identity(survey.StatedIdentity)
	q.MerchantKey, _ = normalizer.Merchant(survey.StatedMerchant)
	q.SubmittedAt = survey.SubmittedAt
	return q
}

func (q Query) hasIdentity() bool {
	return q.IdentityKey != ""
}

func (q Query) hasMerchant() bool {
	return q.MerchantKey != ""
}

func (q Query) hasTime() bool {
	return !q.SubmittedAt.IsZero()
}

// Window holds the lookback bounds handed to every strategy.
type Window struct {
	LookbackDays         int
	MerchantLookbackDays int
}

// Strategy is one rule of the match cascade. TryMatch returns the transaction
// the rule attributes the survey to, or nil when the rule does not apply.
type Strategy interface {
	Method() model.LinkageMethod
	TryMatch(q Query, indexes *Indexes, window Window) *model.TransactionRecord
}

// DefaultCascade returns the strategies in priority order. The first strategy
// that produces a candidate decides the outcome; later ones are not consulted.
func DefaultCascade() []Strategy {
	return []Strategy{
		IdentityMerchantDateStrategy{},
		IdentityDateStrategy{},
		IdentityOnlyStrategy{},
		MerchantDateStrategy{},
	}
}

// IdentityMerchantDateStrategy requires the same identity, the same merchant key
// and a transaction inside the lookback window.
type IdentityMerchantDateStrategy struct{}

func (IdentityMerchantDateStrategy) Method() model.LinkageMethod {
	return model.MethodIdentityMerchantDate
}

func (IdentityMerchantDateStrategy) TryMatch(q Query, indexes *Indexes, window Window) *model.TransactionRecord {
	if !q.hasIdentity() || !q.hasMerchant() || !q.hasTime() {
		return nil
	}
	var sameMerchant []*model.TransactionRecord
	for _, txn := range indexes.Identity.Lookup(q.IdentityKey) {
		if txn.MerchantKey == q.MerchantKey {
			sameMerchant = append(sameMerchant, txn)
		}
	}
	return SelectNearest(sameMerchant, q.SubmittedAt, window.LookbackDays)
}

// IdentityDateStrategy requires the same identity and a transaction inside the
// lookback window, whatever the merchant.
type IdentityDateStrategy struct{}

func (IdentityDateStrategy) Method() model.LinkageMethod {
	return model.MethodIdentityDate
}

func (IdentityDateStrategy) TryMatch(q Query, indexes *Indexes, window Window) *model.TransactionRecord {
	if !q.hasIdentity() || !q.hasTime() {
		return nil
	}
	return SelectNearest(indexes.Identity.Lookup(q.IdentityKey), q.SubmittedAt, window.LookbackDays)
}

// IdentityOnlyStrategy falls back to the identity's most recent transaction
// with no window bound. In the cascade it only runs once the windowed identity
// strategies have found nothing, or when the survey has no usable date.
type IdentityOnlyStrategy struct{}

func (IdentityOnlyStrategy) Method() model.LinkageMethod {
	return model.MethodIdentityOnly
}

func (IdentityOnlyStrategy) TryMatch(q Query, indexes *Indexes, _ Window) *model.TransactionRecord {
	if !q.hasIdentity() {
		return nil
	}
	return MostRecent(indexes.Identity.Lookup(q.IdentityKey))
}

// MerchantDateStrategy ignores identity. It walks back one calendar day at a
// time from the survey date and takes the first day on which the merchant had
// a transaction no later than the survey. This can attribute the survey to a
// different customer of the same merchant, hence its low confidence.
type MerchantDateStrategy struct{}

func (MerchantDateStrategy) Method() model.LinkageMethod {
	return model.MethodMerchantDate
}

func (MerchantDateStrategy) TryMatch(q Query, indexes *Indexes, window Window) *model.TransactionRecord {
	if !q.hasMerchant() || !q.hasTime() || window.MerchantLookbackDays < 0 {
		return nil
	}
	surveyDate := model.CalendarDate(q.SubmittedAt)
	for offset := 0; offset <= window.MerchantLookbackDays; offset++ {
		bucket := indexes.MerchantDate.Lookup(q.MerchantKey, surveyDate.AddDate(0, 0, -offset))
		if txn := SelectNearest(bucket, q.SubmittedAt, offset+1); txn != nil {
			return txn
		}
	}
	return nil
}
