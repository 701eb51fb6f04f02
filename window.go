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

const day = 24 * time.Hour

// SelectNearest returns the candidate closest in time to reference among those
// that happened no later than reference and at most maxLookbackDays before it.
// A transaction after the reference moment can never explain the survey and is
// always excluded. Equal gaps are broken by the smaller transaction id so repeated
// runs pick the same record. It returns nil when no candidate qualifies.
func SelectNearest(candidates []*model.TransactionRecord, reference time.Time, maxLookbackDays int) *model.TransactionRecord {
	if reference.IsZero() || maxLookbackDays < 0 {
		return nil
	}
	maxGap := time.Duration(maxLookbackDays) * day

	var best *model.TransactionRecord
	for _, txn := range candidates {
		if txn == nil || txn.OccurredAt.IsZero() {
			continue
		}
		gap := reference.Sub(txn.OccurredAt)
		if gap < 0 || gap > maxGap {
			continue
		}
		if best == nil || closer(txn, best, reference) {
			best = txn
		}
	}
	return best
}

// MostRecent returns the candidate with the latest occurrence time, without any
// window bound. Ties go to the smaller transaction id.
func MostRecent(candidates []*model.TransactionRecord) *model.TransactionRecord {
	var best *model.TransactionRecord
	for _, txn := range candidates {
		if txn == nil {
			continue
		}
		if best == nil ||
			txn.OccurredAt.After(best.OccurredAt) ||
			(txn.OccurredAt.Equal(best.OccurredAt) && txn.TransactionID < best.TransactionID) {
			best = txn
		}
	}
	return best
}

// closer reports whether a is strictly nearer to reference than b, falling back to id order.
func closer(a, b *model.TransactionRecord, reference time.Time) bool {
	ga, gb := reference.Sub(a.OccurredAt), reference.Sub(b.OccurredAt)
	if ga != gb {
		return ga < gb
	}
	return a.TransactionID < b.TransactionID
}
