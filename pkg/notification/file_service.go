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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cognigate/runtime/pkg/notification/sanitization"
)

// FileService writes each notification as a JSON line to its own file under
// dir. It exists for tests and air-gapped hosts with no outbound webhook.
type FileService struct {
	dir       string
	sanitizer *sanitization.Sanitizer
}

// NewFileDeliveryService returns a FileService writing under dir, creating it
// on first Deliver if it does not already exist.
func NewFileDeliveryService(dir string) *FileService {
	return &FileService{dir: dir, sanitizer: sanitization.NewSanitizer()}
}

type fileRecord struct {
	EscalationID string    `json:"escalationId"`
	ExecutionID  string    `json:"executionId"`
	TenantID     string    `json:"tenantId"`
	Priority     string    `json:"priority"`
	EscalatedTo  string    `json:"escalatedTo"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	DeliveredAt  time.Time `json:"deliveredAt"`
}

// Deliver writes n to a new file under dir. Directory-creation and
// write failures are both wrapped as RetryableError since both are
// transient on a shared filesystem (a concurrent cleanup job, a momentarily
// full disk) rather than a permanent misconfiguration.
func (s *FileService) Deliver(ctx context.Context, n Notification) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return retryable("failed to create output directory", err)
	}

	body, err := s.sanitizer.SanitizeWithFallback(n.Body)
	if err != nil {
		body = s.sanitizer.SafeFallback(n.Body)
	}

	record := fileRecord{
		EscalationID: n.EscalationID,
		ExecutionID:  n.ExecutionID,
		TenantID:     n.TenantID,
		Priority:     n.Priority,
		EscalatedTo:  n.EscalatedTo,
		Subject:      n.Subject,
		Body:         body,
		DeliveredAt:  time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling notification record: %w", err)
	}
	data = append(data, '\n')

	name := fmt.Sprintf("%s-%d.json", n.EscalationID, record.DeliveredAt.UnixNano())
	tmpPath := filepath.Join(s.dir, "."+name+".tmp")
	finalPath := filepath.Join(s.dir, name)

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return retryable("failed to write temporary file", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return retryable("failed to finalize notification file", err)
	}
	return nil
}
