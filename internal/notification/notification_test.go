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

package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhook = "https://hooks.slack.com/services/T000/B000/XXXX"

func noWait(t *testing.T) {
	t.Helper()
	orig := slackBackOff
	slackBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	t.Cleanup(func() { slackBackOff = orig })
}

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var body map[string]interface{}
	httpmock.RegisterResponder("POST", testWebhook,
		func(req *http.Request) (*http.Response, error) {
			raw, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	err := SlackNotification(testWebhook, errors.New(`linkage run "run_1" failed`))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	blocks, ok := body["blocks"].([]interface{})
	require.True(t, ok)
	assert.Len(t, blocks, 3)
}

func TestSlackNotification_Rejected(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testWebhook,
		httpmock.NewStringResponder(404, "no_service"))

	noWait(t)
	err := SlackNotification(testWebhook, errors.New("boom"))
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSlackNotification_RetriesServerErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	noWait(t)

	calls := 0
	httpmock.RegisterResponder("POST", testWebhook,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(503, "busy"), nil
			}
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	require.NoError(t, SlackNotification(testWebhook, errors.New("boom")))
	assert.Equal(t, 3, calls)
}

func TestSlackNotification_GivesUp(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	noWait(t)

	httpmock.RegisterResponder("POST", testWebhook,
		httpmock.NewStringResponder(500, "down"))

	assert.Error(t, SlackNotification(testWebhook, errors.New("boom")))
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `say \"hi\"\nnow`, escape("say \"hi\"\nnow"))
}
