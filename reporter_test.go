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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blnkfinance/surveylink/model"
)

func TestReporterCountsEveryRecord(t *testing.T) {
	r := NewReporter()
	methods := []model.LinkageMethod{
		model.MethodIdentityMerchantDate,
		model.MethodIdentityMerchantDate,
		model.MethodMerchantDate,
		model.MethodUnmatched,
	}
	for _, m := range methods {
		r.Record(m)
	}

	summary := r.Summarize()
	sum := 0
	for _, n := range summary {
		sum += n
	}
	assert.Equal(t, len(methods), sum)
	assert.Equal(t, 2, summary[model.MethodIdentityMerchantDate])
	assert.Equal(t, 0, summary[model.MethodIdentityOnly])
	assert.Len(t, summary, 5)

	summary[model.MethodUnmatched] = 100
	assert.Equal(t, 1, r.Stats().Counts[model.MethodUnmatched], "summary is a copy")
}

func TestReporterMerge(t *testing.T) {
	a, b := NewReporter(), NewReporter()
	a.Record(model.MethodIdentityDate)
	b.Record(model.MethodIdentityDate)
	b.Record(model.MethodUnmatched)

	a.Merge(b)
	a.Merge(nil)

	stats := a.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Counts[model.MethodIdentityDate])
	assert.Equal(t, 1, stats.Counts[model.MethodUnmatched])
	assert.Equal(t, 2, stats.Matched())
}
