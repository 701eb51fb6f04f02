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

import "github.com/blnkfinance/surveylink/model"

// Reporter tallies one linkage method per processed survey.
// It is not safe for concurrent use; parallel runs keep one Reporter per
// worker and Merge them once the workers are done.
type Reporter struct {
	stats model.LinkageStats
}

// NewReporter returns a reporter with a zero count for every method.
func NewReporter() *Reporter {
	return &Reporter{stats: model.NewLinkageStats()}
}

// Record counts one processed survey under method.
func (r *Reporter) Record(method model.LinkageMethod) {
	r.stats.Total++
	r.stats.Counts[method]++
}

// Merge adds the counts of other into r.
func (r *Reporter) Merge(other *Reporter) {
	if other == nil {
		return
	}
	r.stats.Total += other.stats.Total
	for method, count := range other.stats.Counts {
		r.stats.Counts[method] += count
	}
}

// Summarize returns a copy of the per-method counts.
func (r *Reporter) Summarize() map[model.LinkageMethod]int {
	out := make(map[model.LinkageMethod]int, len(r.stats.Counts))
	for method, count := range r.stats.Counts {
		out[method] = count
	}
	return out
}

// Stats returns a copy of the running totals.
func (r *Reporter) Stats() model.LinkageStats {
	return model.LinkageStats{Total: r.stats.Total, Counts: r.Summarize()}
}
