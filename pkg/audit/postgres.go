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
	"database/sql"
	"time"

	"github.com/go-faster/jx"
	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	apperrors "github.com/cognigate/runtime/internal/errors"
)

// PostgresRepository implements Repository against a Postgres database via
// sqlx, with every call wrapped in a gobreaker.CircuitBreaker so repeated
// failures surface fast instead of piling up against a struggling database.
type PostgresRepository struct {
	db      *sqlx.DB
	breaker *gobreaker.CircuitBreaker
}

// NewPostgresRepository wraps an already-open *sql.DB (opened with the
// jackc/pgx/v5/stdlib driver by the caller) in a sqlx.DB and a circuit
// breaker.
func NewPostgresRepository(db *sql.DB, driverName string) *PostgresRepository {
	settings := gobreaker.Settings{
		Name:        "audit-postgres",
		MaxRequests: 5,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &PostgresRepository{
		db:      sqlx.NewDb(db, driverName),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (r *PostgresRepository) guarded(ctx context.Context, message string, fn func() error) error {
	_, err := r.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err != nil {
		return apperrors.RepositoryFailure(err, message)
	}
	return nil
}

func (r *PostgresRepository) CreateExecution(ctx context.Context, row ExecutionRow) error {
	return r.guarded(ctx, "create execution", func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO executions (execution_id, tenant_id, intent_id, handler_name, status, context, metadata, outputs, retry_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			row.ExecutionID, row.TenantID, row.IntentID, row.HandlerName, row.Status,
			mustMarshal(row.Context), mustMarshal(row.Metadata), mustMarshal(row.Outputs), row.RetryCount, row.CreatedAt)
		return err
	})
}

func (r *PostgresRepository) GetExecution(ctx context.Context, executionID string) (*ExecutionRow, error) {
	var row executionRecord
	err := r.guarded(ctx, "get execution", func() error {
		return r.db.GetContext(ctx, &row, `
			SELECT execution_id, tenant_id, intent_id, handler_name, status, context, metadata, outputs, retry_count, created_at, updated_at, deleted_at
			FROM executions WHERE execution_id = $1`, executionID)
	})
	if err != nil {
		return nil, err
	}
	return row.toRow(), nil
}

func (r *PostgresRepository) ListExecutions(ctx context.Context, tenantID string, limit, offset int) ([]ExecutionRow, error) {
	limit = normalizeLimit(limit)
	var rows []executionRecord
	err := r.guarded(ctx, "list executions", func() error {
		return r.db.SelectContext(ctx, &rows, `
			SELECT execution_id, tenant_id, intent_id, handler_name, status, context, metadata, outputs, retry_count, created_at, updated_at, deleted_at
			FROM executions WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			tenantID, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionRow, len(rows))
	for i, rec := range rows {
		out[i] = *rec.toRow()
	}
	return out, nil
}

func (r *PostgresRepository) UpdateExecution(ctx context.Context, row ExecutionRow) error {
	return r.guarded(ctx, "update execution", func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE executions SET status=$2, context=$3, metadata=$4, outputs=$5, retry_count=$6, updated_at=$7
			WHERE execution_id=$1`,
			row.ExecutionID, row.Status, mustMarshal(row.Context), mustMarshal(row.Metadata), mustMarshal(row.Outputs), row.RetryCount, row.UpdatedAt)
		return err
	})
}

// IncrementRetryCount bumps retry_count by one and is the call site the
// embedding host invokes each time it re-attempts an execution whose
// ResourceLimits.MaxRetries (spec.md §1) has not yet been exhausted.
func (r *PostgresRepository) IncrementRetryCount(ctx context.Context, executionID string) error {
	return r.guarded(ctx, "increment retry count", func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE executions SET retry_count = retry_count + 1, updated_at = now()
			WHERE execution_id = $1`, executionID)
		return err
	})
}

// SoftDeleteExecution clears context/metadata/outputs and stamps deletedAt,
// retaining structural fields for audit-trail continuity (§6).
func (r *PostgresRepository) SoftDeleteExecution(ctx context.Context, executionID string) error {
	return r.guarded(ctx, "soft delete execution", func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE executions SET context='{}', metadata='{}', outputs='{}', deleted_at=now()
			WHERE execution_id = $1`, executionID)
		return err
	})
}

// HardDeleteExecution removes the execution and its events and escalations in
// a single transaction.
func (r *PostgresRepository) HardDeleteExecution(ctx context.Context, executionID string) error {
	return r.guarded(ctx, "hard delete execution", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx, `DELETE FROM execution_events WHERE execution_id = $1`, executionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM escalations WHERE execution_id = $1`, executionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM executions WHERE execution_id = $1`, executionID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) AppendEvent(ctx context.Context, event ExecutionEvent) error {
	return r.guarded(ctx, "append event", func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO execution_events (id, execution_id, event_type, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5)`,
			event.ID, event.ExecutionID, event.EventType, mustMarshal(event.Payload), event.OccurredAt)
		return err
	})
}

func (r *PostgresRepository) ListEvents(ctx context.Context, executionID string) ([]ExecutionEvent, error) {
	var rows []eventRecord
	err := r.guarded(ctx, "list events", func() error {
		return r.db.SelectContext(ctx, &rows, `
			SELECT id, execution_id, event_type, payload, occurred_at
			FROM execution_events WHERE execution_id = $1 ORDER BY occurred_at ASC`, executionID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]ExecutionEvent, len(rows))
	for i, rec := range rows {
		out[i] = rec.toEvent()
	}
	return out, nil
}

func (r *PostgresRepository) InsertAuditRecord(ctx context.Context, record AuditRecord) error {
	return r.guarded(ctx, "insert audit record", func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO audit_records (id, tenant_id, execution_id, intent_id, event_type, severity, message, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			record.ID, record.TenantID, record.ExecutionID, record.IntentID, record.EventType,
			record.Severity, record.Message, mustMarshal(record.Metadata), record.CreatedAt)
		return err
	})
}

// InsertAuditRecords batches records in a single transaction, the insert path
// BufferedStore calls on flush.
func (r *PostgresRepository) InsertAuditRecords(ctx context.Context, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.guarded(ctx, "insert audit records", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		for _, record := range records {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO audit_records (id, tenant_id, execution_id, intent_id, event_type, severity, message, metadata, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				record.ID, record.TenantID, record.ExecutionID, record.IntentID, record.EventType,
				record.Severity, record.Message, mustMarshal(record.Metadata), record.CreatedAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) ListAuditRecords(ctx context.Context, query AuditQuery) ([]AuditRecord, error) {
	limit := normalizeLimit(query.Limit)

	var rows []auditRecordRow
	err := r.guarded(ctx, "list audit records", func() error {
		return r.db.SelectContext(ctx, &rows, `
			SELECT id, tenant_id, execution_id, intent_id, event_type, severity, message, metadata, created_at
			FROM audit_records
			WHERE tenant_id = $1
			  AND ($2 = '' OR event_type = $2)
			  AND ($3 = '' OR severity = $3)
			  AND ($4 = '' OR execution_id = $4)
			  AND ($5 = '' OR intent_id = $5)
			  AND ($6::timestamptz IS NULL OR created_at >= $6)
			  AND ($7::timestamptz IS NULL OR created_at <= $7)
			ORDER BY created_at DESC
			LIMIT $8 OFFSET $9`,
			query.TenantID, query.EventType, string(query.Severity), query.ExecutionID, query.IntentID,
			nullableTime(query.FromDate), nullableTime(query.ToDate), limit, query.Offset)
	})
	if err != nil {
		return nil, err
	}
	out := make([]AuditRecord, len(rows))
	for i, rec := range rows {
		out[i] = rec.toRecord()
	}
	return out, nil
}

func (r *PostgresRepository) CreateEscalation(ctx context.Context, row EscalationRow) error {
	return r.guarded(ctx, "create escalation", func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO escalations (id, execution_id, tenant_id, intent_id, rule_id, reason, priority, status, escalated_to, timeout_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			row.ID, row.ExecutionID, row.TenantID, row.IntentID, row.RuleID, row.Reason,
			row.Priority, row.Status, row.EscalatedTo, row.TimeoutAt, row.CreatedAt)
		return err
	})
}

func (r *PostgresRepository) GetEscalation(ctx context.Context, id string) (*EscalationRow, error) {
	var row EscalationRow
	err := r.guarded(ctx, "get escalation", func() error {
		return r.db.GetContext(ctx, &row, `
			SELECT id, execution_id, tenant_id, intent_id, rule_id, reason, priority, status, escalated_to,
			       resolved_by, resolved_at, resolution_action, timeout_at, created_at
			FROM escalations WHERE id = $1`, id)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *PostgresRepository) UpdateEscalation(ctx context.Context, row EscalationRow) error {
	return r.guarded(ctx, "update escalation", func() error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE escalations SET status=$2, resolved_by=$3, resolved_at=$4, resolution_action=$5
			WHERE id = $1`, row.ID, row.Status, row.ResolvedBy, row.ResolvedAt, row.ResolutionAction)
		return err
	})
}

func (r *PostgresRepository) ListActiveEscalationsByTenant(ctx context.Context, tenantID string) ([]EscalationRow, error) {
	var rows []EscalationRow
	err := r.guarded(ctx, "list active escalations", func() error {
		return r.db.SelectContext(ctx, &rows, `
			SELECT id, execution_id, tenant_id, intent_id, rule_id, reason, priority, status, escalated_to,
			       resolved_by, resolved_at, resolution_action, timeout_at, created_at
			FROM escalations WHERE tenant_id = $1 AND status IN ('pending', 'acknowledged')`, tenantID)
	})
	return rows, err
}

func (r *PostgresRepository) DeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.guarded(ctx, "deleted-before scan", func() error {
		return r.db.SelectContext(ctx, &ids, `
			SELECT execution_id FROM executions WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	})
	return ids, err
}

func (r *PostgresRepository) ExecutionStats(ctx context.Context, tenantID string, since time.Time) (*ExecutionStatistics, error) {
	stats := &ExecutionStatistics{TenantID: tenantID, Since: since}
	err := r.guarded(ctx, "execution statistics", func() error {
		return r.db.GetContext(ctx, stats, `
			SELECT
				count(*) AS total,
				count(*) FILTER (WHERE status = 'completed') AS completed,
				count(*) FILTER (WHERE status = 'failed') AS failed,
				count(*) FILTER (WHERE status = 'running') AS running,
				coalesce(avg(extract(epoch FROM (updated_at - created_at)) * 1000), 0) AS avg_duration_ms,
				coalesce(sum(retry_count), 0) AS total_retries
			FROM executions WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func mustMarshal(v map[string]any) []byte {
	if v == nil {
		return []byte("{}")
	}
	var e jx.Encoder
	writeJXObject(&e, v)
	return e.Bytes()
}

func writeJXObject(e *jx.Encoder, v map[string]any) {
	e.ObjStart()
	for k, val := range v {
		e.FieldStart(k)
		writeJXValue(e, val)
	}
	e.ObjEnd()
}

func writeJXValue(e *jx.Encoder, v any) {
	switch val := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(val)
	case bool:
		e.Bool(val)
	case int:
		e.Int(val)
	case int64:
		e.Int64(val)
	case float64:
		e.Float64(val)
	case map[string]any:
		writeJXObject(e, val)
	case []any:
		e.ArrStart()
		for _, item := range val {
			writeJXValue(e, item)
		}
		e.ArrEnd()
	default:
		e.Str("")
	}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
