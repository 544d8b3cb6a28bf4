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
	"time"

	"github.com/go-faster/jx"
)

// executionRecord is the sqlx scan target for the executions table; its
// jsonb columns arrive as raw bytes and are decoded with go-faster/jx rather
// than encoding/json, matching the encoder used on the write path.
type executionRecord struct {
	ExecutionID string     `db:"execution_id"`
	TenantID    string     `db:"tenant_id"`
	IntentID    string     `db:"intent_id"`
	HandlerName string     `db:"handler_name"`
	Status      string     `db:"status"`
	Context     []byte     `db:"context"`
	Metadata    []byte     `db:"metadata"`
	Outputs     []byte     `db:"outputs"`
	RetryCount  int64      `db:"retry_count"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
}

func (r executionRecord) toRow() *ExecutionRow {
	return &ExecutionRow{
		ExecutionID: r.ExecutionID,
		TenantID:    r.TenantID,
		IntentID:    r.IntentID,
		HandlerName: r.HandlerName,
		Status:      r.Status,
		Context:     decodeJXObject(r.Context),
		Metadata:    decodeJXObject(r.Metadata),
		Outputs:     decodeJXObject(r.Outputs),
		RetryCount:  r.RetryCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		DeletedAt:   r.DeletedAt,
	}
}

type eventRecord struct {
	ID          string    `db:"id"`
	ExecutionID string    `db:"execution_id"`
	EventType   string    `db:"event_type"`
	Payload     []byte    `db:"payload"`
	OccurredAt  time.Time `db:"occurred_at"`
}

func (r eventRecord) toEvent() ExecutionEvent {
	return ExecutionEvent{
		ID:          r.ID,
		ExecutionID: r.ExecutionID,
		EventType:   r.EventType,
		Payload:     decodeJXObject(r.Payload),
		OccurredAt:  r.OccurredAt,
	}
}

type auditRecordRow struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	ExecutionID string    `db:"execution_id"`
	IntentID    string    `db:"intent_id"`
	EventType   string    `db:"event_type"`
	Severity    string    `db:"severity"`
	Message     string    `db:"message"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r auditRecordRow) toRecord() AuditRecord {
	return AuditRecord{
		ID:          r.ID,
		TenantID:    r.TenantID,
		ExecutionID: r.ExecutionID,
		IntentID:    r.IntentID,
		EventType:   r.EventType,
		Severity:    AuditSeverity(r.Severity),
		Message:     r.Message,
		Metadata:    decodeJXObject(r.Metadata),
		CreatedAt:   r.CreatedAt,
	}
}

// decodeJXObject decodes a jsonb column into a generic map, tolerating a
// missing/empty column as an empty map rather than an error.
func decodeJXObject(raw []byte) map[string]any {
	out := make(map[string]any)
	if len(raw) == 0 {
		return out
	}

	d := jx.DecodeBytes(raw)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		val, err := decodeJXValue(d)
		if err != nil {
			return err
		}
		out[key] = val
		return nil
	})
	return out
}

func decodeJXValue(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		return n.Float64()
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		out := make(map[string]any)
		err := d.Obj(func(d *jx.Decoder, key string) error {
			val, err := decodeJXValue(d)
			if err != nil {
				return err
			}
			out[key] = val
			return nil
		})
		return out, err
	case jx.Array:
		var out []any
		err := d.Arr(func(d *jx.Decoder) error {
			val, err := decodeJXValue(d)
			if err != nil {
				return err
			}
			out = append(out, val)
			return nil
		})
		return out, err
	default:
		return nil, d.Skip()
	}
}
