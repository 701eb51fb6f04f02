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
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/surveylink/config"
	"github.com/blnkfinance/surveylink/internal/request"
)

// slackBackOff bounds how long a failing webhook is retried.
var slackBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
}

// SlackNotification posts an error message to the given Slack webhook. Transport
// errors and 5xx replies are retried; any other rejection is returned at once.
func SlackNotification(webhookURL string, systemError error) error {
	data := json.RawMessage(fmt.Sprintf(`{
		"blocks": [
			{
				"type": "header",
				"text": {
					"type": "plain_text",
					"text": "Error From Surveylink",
					"emoji": true
				}
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Error:*\n%s"
					}
				]
			},
			{
				"type": "section",
				"fields": [
					{
						"type": "mrkdwn",
						"text": "*Time:*\n%s"
					}
				]
			}
		]
	}`, escape(systemError.Error()), time.Now().Format(time.RFC822)))

	send := func() error {
		payload, err := request.ToJsonReq(&data)
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequest(http.MethodPost, webhookURL, payload)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := request.Call(req, nil)
		if err != nil && resp != nil && resp.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(send, slackBackOff())
}

// escape makes s safe to embed inside a JSON string literal.
func escape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// NotifyError logs systemError and, when a Slack webhook is configured, forwards it there.
// The notification is sent on its own goroutine so callers never block on Slack.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Error(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			if err := SlackNotification(conf.Notification.Slack.WebhookUrl, systemError); err != nil {
				logrus.Errorf("failed to send slack notification: %v", err)
			}
		}
	}(systemError)
}
