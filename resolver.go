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
	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/model"
)

// Resolution is the outcome of running the cascade for one survey.
// Transaction is nil exactly when Method is unmatched.
type Resolution struct {
	Method      model.LinkageMethod
	Transaction *model.TransactionRecord
}

// Matched reports whether a strategy produced a transaction.
func (r Resolution) Matched() bool {
	return r.Transaction != nil
}

// Resolver runs the match cascade against a fixed pair of indexes.
// It only reads the indexes, so one Resolver can serve several goroutines.
type Resolver struct {
	indexes    *Indexes
	normalizer Normalizer
	window     Window
	cascade    []Strategy
}

// NewResolver creates a resolver over indexes using the lookbacks in cfg.
// A nil or empty cascade means DefaultCascade.
func NewResolver(indexes *Indexes, normalizer Normalizer, cfg config.LinkageConfig, cascade []Strategy) *Resolver {
	if len(cascade) == 0 {
		cascade = DefaultCascade()
	}
	return &Resolver{
		indexes:    indexes,
		normalizer: normalizer,
		window: Window{
			LookbackDays:         cfg.LookbackDays,
			MerchantLookbackDays: cfg.MerchantLookbackDays,
		},
		cascade: cascade,
	}
}

// Resolve tries each strategy in priority order and returns the first hit.
// A survey with no usable field resolves to unmatched; it never fails.
func (r *Resolver) Resolve(survey *model.SurveyRecord) Resolution {
	q := NewQuery(survey, r.normalizer)
	for _, strategy := range r.cascade {
		if txn := strategy.TryMatch(q, r.indexes, r.window); txn != nil {
			return Resolution{Method: strategy.Method(), Transaction: txn}
		}
	}
	return Resolution{Method: model.MethodUnmatched}
}
