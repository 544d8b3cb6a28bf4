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

// Package audit provides the outbound persistence contract (§6): execution
// rows, execution events, audit records, and escalation rows, plus a
// Postgres-backed implementation and a batching buffered writer.
package audit

import "time"

// ExecutionRow is the persisted shape of an ExecutionContext plus its
// terminal outcome.
type ExecutionRow struct {
	ExecutionID string
	TenantID    string
	IntentID    string
	HandlerName string
	Status      string
	Context     map[string]any
	Metadata    map[string]any
	Outputs     map[string]any
	RetryCount  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// ExecutionEvent is a single chronological occurrence on an execution
// (status change, resource signal, escalation raised, …).
type ExecutionEvent struct {
	ID          string
	ExecutionID string
	EventType   string
	Payload     map[string]any
	OccurredAt  time.Time
}

// AuditSeverity classifies an AuditRecord.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// AuditRecord is a single audit-log entry, independent of any one execution.
type AuditRecord struct {
	ID          string
	TenantID    string
	ExecutionID string
	IntentID    string
	EventType   string
	Severity    AuditSeverity
	Message     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// EscalationRow is the persisted shape of an escalation.EscalationRecord.
type EscalationRow struct {
	ID               string     `db:"id"`
	ExecutionID      string     `db:"execution_id"`
	TenantID         string     `db:"tenant_id"`
	IntentID         string     `db:"intent_id"`
	RuleID           string     `db:"rule_id"`
	Reason           string     `db:"reason"`
	Priority         string     `db:"priority"`
	Status           string     `db:"status"`
	EscalatedTo      string     `db:"escalated_to"`
	ResolvedBy       string     `db:"resolved_by"`
	ResolvedAt       *time.Time `db:"resolved_at"`
	ResolutionAction string     `db:"resolution_action"`
	TimeoutAt        time.Time  `db:"timeout_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// AuditQuery filters ListAuditRecords. Only TenantID is required; the rest
// narrow the result when non-zero.
type AuditQuery struct {
	TenantID    string
	EventType   string
	Severity    AuditSeverity
	ExecutionID string
	IntentID    string
	FromDate    time.Time
	ToDate      time.Time
	Limit       int
	Offset      int
}

// defaultPageSize and maxPageSize bound AuditQuery.Limit and any other
// offset-paginated listing (§6).
const (
	defaultPageSize = 50
	maxPageSize      = 1000
)

// normalizeLimit clamps limit into (0, maxPageSize], defaulting to
// defaultPageSize when unset.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// ExecutionStatistics is the aggregate §6 "execution statistics" result,
// scoped by (tenantId, since). TenantID/Since are filled in by the caller,
// not scanned from the row.
type ExecutionStatistics struct {
	TenantID     string    `db:"-"`
	Since        time.Time `db:"-"`
	Total        int64     `db:"total"`
	Completed    int64     `db:"completed"`
	Failed       int64     `db:"failed"`
	Running      int64     `db:"running"`
	AvgDurationMs float64  `db:"avg_duration_ms"`
	TotalRetries int64     `db:"total_retries"`
}
