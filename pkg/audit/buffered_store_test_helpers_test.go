package audit

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

func discardLogger() logr.Logger { return logr.Discard() }

// fakeRepository implements Repository with only InsertAuditRecords
// functional, recording every batch it receives; every other method panics
// if exercised, since the buffered-store tests never call them.
type fakeRepository struct {
	mu    sync.Mutex
	batch []AuditRecord
}

func (f *fakeRepository) flushed() []AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuditRecord, len(f.batch))
	copy(out, f.batch)
	return out
}

func (f *fakeRepository) InsertAuditRecords(ctx context.Context, records []AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batch = append(f.batch, records...)
	return nil
}

func (f *fakeRepository) CreateExecution(ctx context.Context, row ExecutionRow) error { panic("unused") }
func (f *fakeRepository) GetExecution(ctx context.Context, executionID string) (*ExecutionRow, error) {
	panic("unused")
}
func (f *fakeRepository) ListExecutions(ctx context.Context, tenantID string, limit, offset int) ([]ExecutionRow, error) {
	panic("unused")
}
func (f *fakeRepository) UpdateExecution(ctx context.Context, row ExecutionRow) error { panic("unused") }
func (f *fakeRepository) IncrementRetryCount(ctx context.Context, executionID string) error {
	panic("unused")
}
func (f *fakeRepository) SoftDeleteExecution(ctx context.Context, executionID string) error {
	panic("unused")
}
func (f *fakeRepository) HardDeleteExecution(ctx context.Context, executionID string) error {
	panic("unused")
}
func (f *fakeRepository) AppendEvent(ctx context.Context, event ExecutionEvent) error { panic("unused") }
func (f *fakeRepository) ListEvents(ctx context.Context, executionID string) ([]ExecutionEvent, error) {
	panic("unused")
}
func (f *fakeRepository) InsertAuditRecord(ctx context.Context, record AuditRecord) error {
	panic("unused")
}
func (f *fakeRepository) ListAuditRecords(ctx context.Context, query AuditQuery) ([]AuditRecord, error) {
	panic("unused")
}
func (f *fakeRepository) CreateEscalation(ctx context.Context, row EscalationRow) error {
	panic("unused")
}
func (f *fakeRepository) GetEscalation(ctx context.Context, id string) (*EscalationRow, error) {
	panic("unused")
}
func (f *fakeRepository) UpdateEscalation(ctx context.Context, row EscalationRow) error {
	panic("unused")
}
func (f *fakeRepository) ListActiveEscalationsByTenant(ctx context.Context, tenantID string) ([]EscalationRow, error) {
	panic("unused")
}
func (f *fakeRepository) DeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	panic("unused")
}
func (f *fakeRepository) ExecutionStats(ctx context.Context, tenantID string, since time.Time) (*ExecutionStatistics, error) {
	panic("unused")
}

var _ Repository = (*fakeRepository)(nil)
