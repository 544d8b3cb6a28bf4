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

// Package notification delivers escalation notices to the recipient named on
// an escalation record, sanitizing secret-shaped text before it leaves the
// process.
package notification

import (
	"context"
	"fmt"
)

// Notification is the payload handed to a Service, built from an escalation
// record by the caller that dispatches it (cmd/cognigate's notification loop).
type Notification struct {
	EscalationID string
	ExecutionID  string
	TenantID     string
	Priority     string
	EscalatedTo  string
	Subject      string
	Body         string
}

// Service delivers a Notification to its recipient.
type Service interface {
	Deliver(ctx context.Context, n Notification) error
}

// RetryableError marks a delivery failure the caller should retry, as
// distinct from a permanent configuration error (e.g. an unknown channel).
type RetryableError struct {
	Message string
	Cause   error
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Cause }

func retryable(message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause}
}
