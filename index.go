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

// IdentityIndex maps an identity key to every transaction made under it.
// Bucket order is insertion order and carries no meaning.
type IdentityIndex struct {
	arena   []model.TransactionRecord
	buckets map[string][]int
}

// Lookup returns the transactions indexed under key. The returned records
// belong to the index and must not be modified.
func (i *IdentityIndex) Lookup(key string) []*model.TransactionRecord {
	if i == nil {
		return nil
	}
	return collect(i.arena, i.buckets[key])
}

// Len returns the number of distinct identity keys.
func (i *IdentityIndex) Len() int {
	if i == nil {
		return 0
	}
	return len(i.buckets)
}

type merchantDateKey struct {
	merchant string
	date     string
}

// MerchantDateIndex maps a (merchant key, calendar date) pair to the
// transactions made with that merchant on that day.
type MerchantDateIndex struct {
	arena   []model.TransactionRecord
	buckets map[merchantDateKey][]int
}

// Lookup returns the transactions for merchantKey on the calendar date of day.
func (m *MerchantDateIndex) Lookup(merchantKey string, day time.Time) []*model.TransactionRecord {
	if m == nil {
		return nil
	}
	return collect(m.arena, m.buckets[merchantDateKey{merchant: merchantKey, date: model.DateKey(day)}])
}

// Len returns the number of (merchant, date) buckets.
func (m *MerchantDateIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.buckets)
}

// Indexes is the pair of lookup structures built from one transaction set.
// Both share the same arena, so they can only be rebuilt together.
type Indexes struct {
	Identity     *IdentityIndex
	MerchantDate *MerchantDateIndex

	// Size is the number of transactions the indexes were built from.
	Size int

	// Unindexed counts transactions that had neither an identity key nor a
	// usable merchant key and date. They remain part of the transaction set.
	Unindexed int
}

// BuildIndexes normalizes every transaction once and files it under the
// identity index, the merchant/date index, both, or neither. It runs in O(n)
// and never sorts; ordering is left to the lookups that need it.
//
// The input slice is copied into the indexes' arena and is not modified.
func BuildIndexes(transactions []model.TransactionRecord, normalizer Normalizer) *Indexes {
	arena := make([]model.TransactionRecord, len(transactions))
	identity := &IdentityIndex{arena: arena, buckets: make(map[string][]int)}
	merchantDate := &MerchantDateIndex{arena: arena, buckets: make(map[merchantDateKey][]int)}
	indexes := &Indexes{Identity: identity, MerchantDate: merchantDate, Size: len(transactions)}

	for pos := range transactions {
		txn := transactions[pos]
		txn.IdentityKey, _ = normalizer.Identity(txn.Identity)
		txn.MerchantKey, _ = normalizer.Merchant(txn.MerchantName)
		arena[pos] = txn

		indexed := false
		if txn.IdentityKey != "" {
			identity.buckets[txn.IdentityKey] = append(identity.buckets[txn.IdentityKey], pos)
			indexed = true
		}
		if txn.MerchantKey != "" && !txn.OccurredAt.IsZero() {
			key := merchantDateKey{merchant: txn.MerchantKey, date: model.DateKey(txn.OccurredAt)}
			merchantDate.buckets[key] = append(merchantDate.buckets[key], pos)
			indexed = true
		}
		if !indexed {
			indexes.Unindexed++
		}
	}

	return indexes
}

func collect(arena []model.TransactionRecord, positions []int) []*model.TransactionRecord {
	if len(positions) == 0 {
		return nil
	}
	out := make([]*model.TransactionRecord, len(positions))
	for i, pos := range positions {
		out[i] = &arena[pos]
	}
	return out
}
