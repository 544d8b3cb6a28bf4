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

// Package tracker implements the active execution tracker (C4): an indexed
// registry of in-flight executions by id and tenant, with cooperative
// cancellation, deadline scan, and bulk termination.
package tracker

import (
	"sync"

	apperrors "github.com/cognigate/runtime/internal/errors"
	"github.com/cognigate/runtime/pkg/governance/execcontext"
	"github.com/cognigate/runtime/pkg/shared/logging"
	"github.com/go-logr/logr"
)

// Status is an ActiveExecution's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusTerminated Status = "terminated"
)

// allowedTransitions implements Open-Question decision (a) from DESIGN.md:
// status updates are validated against this table rather than accepted
// unconditionally. An update not present here is a soft no-op with a warning
// (§7), never a hard error — the caller remains the ultimate source of truth,
// this only catches the clearly-wrong case (e.g. terminated -> running).
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning:    true,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusTimeout:    true,
		StatusTerminated: true,
	},
	StatusRunning: {
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusTimeout:    true,
		StatusTerminated: true,
	},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusTimeout:    {},
	StatusTerminated: {},
}

// CancelHandle is the single capability the tracker observes: "signal this
// work with a reason". The tracker never constructs one, only invokes it.
type CancelHandle interface {
	Signal(reason string) error
}

// Metrics is the instrumentation Track/Remove keep current. A nil Metrics
// (the zero value passed to New) disables it entirely.
type Metrics interface {
	IncExecutionsTracked()
	SetConcurrentExecutions(tenantID string, count float64)
}

// ActiveExecution is the mutable record C4 owns.
type ActiveExecution struct {
	ExecutionID     string
	TenantID        string
	IntentID        string
	HandlerName     string
	Status          Status
	StartedAtMs     int64
	DeadlineMs      int64
	Cancel          CancelHandle
	ResourceMonitor any
	Context         execcontext.ExecutionContext
}

// Tracker is C4. The zero value is not usable; construct with New.
type Tracker struct {
	log     logr.Logger
	metrics Metrics

	mu      sync.RWMutex
	primary map[string]*ActiveExecution
	byTenant map[string]map[string]struct{}
}

// New constructs an empty Tracker. metrics may be nil to disable
// instrumentation (e.g. in tests).
func New(log logr.Logger, metrics Metrics) *Tracker {
	return &Tracker{
		log:      log,
		metrics:  metrics,
		primary:  make(map[string]*ActiveExecution),
		byTenant: make(map[string]map[string]struct{}),
	}
}

// Track registers executionID. It fails if the id is already tracked. The
// deadline is taken from ctx.DeadlineMs if valid (> nowMs), else computed as
// nowMs + ctx.ResourceLimits.TimeoutMs.
func (t *Tracker) Track(executionID string, ctx execcontext.ExecutionContext, cancel CancelHandle, nowMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.primary[executionID]; exists {
		return apperrors.DuplicateTracking(executionID)
	}

	deadline := ctx.DeadlineMs
	if deadline <= nowMs {
		deadline = nowMs + ctx.ResourceLimits.TimeoutMs
	}

	exec := &ActiveExecution{
		ExecutionID: executionID,
		TenantID:    ctx.TenantID,
		IntentID:    ctx.Intent.ID,
		HandlerName: ctx.Handler,
		Status:      StatusPending,
		StartedAtMs: nowMs,
		DeadlineMs:  deadline,
		Cancel:      cancel,
		Context:     ctx,
	}

	t.primary[executionID] = exec
	set, ok := t.byTenant[ctx.TenantID]
	if !ok {
		set = make(map[string]struct{})
		t.byTenant[ctx.TenantID] = set
	}
	set[executionID] = struct{}{}

	if t.metrics != nil {
		t.metrics.IncExecutionsTracked()
		t.metrics.SetConcurrentExecutions(ctx.TenantID, float64(len(set)))
	}

	return nil
}

// Get looks up an execution by id.
func (t *Tracker) Get(executionID string) (*ActiveExecution, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	exec, ok := t.primary[executionID]
	return exec, ok
}

// Remove deletes executionID from both indices, maintaining the invariant
// that empty tenant sets are deleted too.
func (t *Tracker) Remove(executionID string) (*ActiveExecution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exec, ok := t.primary[executionID]
	if !ok {
		return nil, false
	}
	delete(t.primary, executionID)

	remaining := 0
	if set, ok := t.byTenant[exec.TenantID]; ok {
		delete(set, executionID)
		remaining = len(set)
		if remaining == 0 {
			delete(t.byTenant, exec.TenantID)
		}
	}

	if t.metrics != nil {
		t.metrics.SetConcurrentExecutions(exec.TenantID, float64(remaining))
	}

	return exec, true
}

// UpdateStatus performs a single-field status mutation. An update to an
// unknown executionID, or a transition not present in allowedTransitions, is
// a soft no-op logged at warn level.
func (t *Tracker) UpdateStatus(executionID string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exec, ok := t.primary[executionID]
	if !ok {
		logging.Warn(t.log, "updateStatus on unknown execution",
			logging.NewFields().Component("tracker").Execution(executionID))
		return
	}

	if !allowedTransitions[exec.Status][status] {
		logging.Warn(t.log, "rejected invalid status transition",
			logging.NewFields().Component("tracker").Execution(executionID).
				KV("from", exec.Status).KV("to", status))
		return
	}

	exec.Status = status
}

// GetByTenant returns every tracked execution for tenantID.
func (t *Tracker) GetByTenant(tenantID string) []*ActiveExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.byTenant[tenantID]
	out := make([]*ActiveExecution, 0, len(set))
	for id := range set {
		out = append(out, t.primary[id])
	}
	return out
}

// CountByTenant returns the number of tracked executions for tenantID.
func (t *Tracker) CountByTenant(tenantID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byTenant[tenantID])
}

// Count returns the total number of tracked executions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.primary)
}

// GetExpired returns every tracked execution whose deadline has passed as of
// nowMs. It is read-only by design: acting on expiry is the orchestration
// layer's decision (§5).
func (t *Tracker) GetExpired(nowMs int64) []*ActiveExecution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*ActiveExecution
	for _, exec := range t.primary {
		if nowMs > exec.DeadlineMs {
			out = append(out, exec)
		}
	}
	return out
}

// TerminateAll invokes the cancel handle with reason for every tracked
// execution and sets its status to terminated; an execution already completed,
// failed or timed out keeps its status, since UpdateStatus refuses that
// transition. A failing individual cancel is logged and does not abort the sweep.
func (t *Tracker) TerminateAll(reason string) {
	t.mu.Lock()
	snapshot := make([]*ActiveExecution, 0, len(t.primary))
	for _, exec := range t.primary {
		snapshot = append(snapshot, exec)
	}
	t.mu.Unlock()

	for _, exec := range snapshot {
		if exec.Cancel != nil {
			if err := exec.Cancel.Signal(reason); err != nil {
				logging.Warn(t.log, "cancel handle failed during terminateAll",
					logging.NewFields().Component("tracker").Execution(exec.ExecutionID).Error(err))
			}
		}
		t.UpdateStatus(exec.ExecutionID, StatusTerminated)
	}
}

// SetResourceMonitor attaches a resource-monitor handle to a tracked
// execution. It fails loudly (NotTracked) if the execution is not tracked.
func (t *Tracker) SetResourceMonitor(executionID string, monitor any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	exec, ok := t.primary[executionID]
	if !ok {
		return apperrors.NotTracked(executionID)
	}
	exec.ResourceMonitor = monitor
	return nil
}
