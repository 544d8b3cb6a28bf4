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

package audit

import (
	"context"
	"time"
)

// Repository is the abstract store the governance core consumes (§6). The
// core treats persistence as opaque; PostgresRepository is the one
// implementation this module ships.
type Repository interface {
	CreateExecution(ctx context.Context, row ExecutionRow) error
	GetExecution(ctx context.Context, executionID string) (*ExecutionRow, error)
	ListExecutions(ctx context.Context, tenantID string, limit, offset int) ([]ExecutionRow, error)
	UpdateExecution(ctx context.Context, row ExecutionRow) error
	IncrementRetryCount(ctx context.Context, executionID string) error
	SoftDeleteExecution(ctx context.Context, executionID string) error
	HardDeleteExecution(ctx context.Context, executionID string) error

	AppendEvent(ctx context.Context, event ExecutionEvent) error
	ListEvents(ctx context.Context, executionID string) ([]ExecutionEvent, error)

	InsertAuditRecord(ctx context.Context, record AuditRecord) error
	InsertAuditRecords(ctx context.Context, records []AuditRecord) error
	ListAuditRecords(ctx context.Context, query AuditQuery) ([]AuditRecord, error)

	CreateEscalation(ctx context.Context, row EscalationRow) error
	GetEscalation(ctx context.Context, id string) (*EscalationRow, error)
	UpdateEscalation(ctx context.Context, row EscalationRow) error
	ListActiveEscalationsByTenant(ctx context.Context, tenantID string) ([]EscalationRow, error)

	DeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	ExecutionStats(ctx context.Context, tenantID string, since time.Time) (*ExecutionStatistics, error)
}
