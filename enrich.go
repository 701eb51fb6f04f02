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

// Enricher turns a survey and its resolution into a LinkedRecord.
type Enricher struct {
	fields []model.FieldMapping
}

// NewEnricher copies the listed transaction fields onto every linked record.
func NewEnricher(fields []model.FieldMapping) Enricher {
	return Enricher{fields: append([]model.FieldMapping(nil), fields...)}
}

// Enrich copies the survey's own fields unchanged and the configured
// transaction fields under their target names. Every target is present on
// every record; an unmatched survey gets nil for each of them.
func (e Enricher) Enrich(survey *model.SurveyRecord, res Resolution) model.LinkedRecord {
	method := res.Method
	if !method.Valid() || (res.Transaction == nil && method != model.MethodUnmatched) {
		method = model.MethodUnmatched
	}

	linked := model.LinkedRecord{
		Method:            method,
		SurveyFields:      surveyFields(survey),
		TransactionFields: make(map[string]interface{}, len(e.fields)),
	}
	if survey != nil {
		linked.SurveyID = survey.SurveyID
	}

	var txn *model.TransactionRecord
	if method != model.MethodUnmatched {
		txn = res.Transaction
		id := txn.TransactionID
		linked.MatchedTransactionID = &id
	}

	for _, f := range e.fields {
		if txn == nil {
			linked.TransactionFields[f.Target] = nil
			continue
		}
		linked.TransactionFields[f.Target] = txn.Field(f.Source)
	}
	return linked
}

// Targets returns the output names of the copied transaction fields, in order.
func (e Enricher) Targets() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.Target
	}
	return out
}

func surveyFields(survey *model.SurveyRecord) model.Payload {
	fields := model.Payload{}
	if survey == nil {
		return fields
	}
	for k, v := range survey.Payload {
		fields[k] = v
	}
	fields["stated_identity"] = nullable(survey.StatedIdentity)
	fields["stated_merchant"] = nullable(survey.StatedMerchant)
	if survey.HasSubmittedAt() {
		fields["submitted_at"] = survey.SubmittedAt
	} else {
		fields["submitted_at"] = nil
	}
	return fields
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
