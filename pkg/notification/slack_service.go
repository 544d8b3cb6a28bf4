/*
Copyright 2025 Jordi Gil.

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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"github.com/slack-go/slack"

	cbhttp "github.com/cognigate/runtime/pkg/infrastructure/http"
	"github.com/cognigate/runtime/pkg/notification/sanitization"
	"github.com/cognigate/runtime/pkg/shared/logging"
)

// SlackService posts escalation notifications to an incoming webhook. The
// recipient channel comes from Notification.EscalatedTo when it names one
// ("slack:#channel" or bare "#channel" form, an override Slack honors for a
// webhook scoped to multiple channels); anything else uses the webhook's own
// configured default.
type SlackService struct {
	webhookURL string
	breaker    *cbhttp.CircuitBreaker
	sanitizer  *sanitization.Sanitizer
	log        logr.Logger
}

// NewSlackService returns a SlackService posting to webhookURL, with every
// outbound call guarded by breaker so a flapping Slack endpoint cannot stall
// escalation processing.
func NewSlackService(webhookURL string, breaker *cbhttp.CircuitBreaker, log logr.Logger) *SlackService {
	return &SlackService{
		webhookURL: webhookURL,
		breaker:    breaker,
		sanitizer:  sanitization.NewSanitizer(),
		log:        log.WithName("slack-notification"),
	}
}

func channelOverride(escalatedTo string) string {
	trimmed := strings.TrimSpace(escalatedTo)
	trimmed = strings.TrimPrefix(trimmed, "slack:")
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@") {
		return trimmed
	}
	return ""
}

// Deliver posts n to the configured webhook. A send failure is always
// retryable: Slack rate limits and transient network errors are
// indistinguishable from this caller's vantage point.
func (s *SlackService) Deliver(ctx context.Context, n Notification) error {
	body, err := s.sanitizer.SanitizeWithFallback(n.Body)
	if err != nil {
		s.log.Info("sanitization fell back to safe redaction",
			logging.NewFields().Component("notification").Operation("deliver").
				KV("escalation_id", n.EscalationID).Error(err).KeysAndValues()...)
	}

	msg := &slack.WebhookMessage{
		Text:    fmt.Sprintf("*%s*\n%s", n.Subject, body),
		Channel: channelOverride(n.EscalatedTo),
		Attachments: []slack.Attachment{{
			Color:  priorityColor(n.Priority),
			Footer: fmt.Sprintf("execution %s · tenant %s", n.ExecutionID, n.TenantID),
		}},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling Slack webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building Slack webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.breaker.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return retryable("failed to post Slack message", err)
	}
	if resp.StatusCode >= 300 {
		return retryable("Slack webhook rejected the message", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func priorityColor(priority string) string {
	switch priority {
	case "critical":
		return "#d92626"
	case "high":
		return "#e8912d"
	case "medium":
		return "#e8c42d"
	default:
		return "#2d7fe8"
	}
}
