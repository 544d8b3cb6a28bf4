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

package escalation

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/cognigate/runtime/pkg/shared/logging"
)

// defaultScanInterval is the periodic timeout scan's default period (§4.5).
const defaultScanInterval = 30 * time.Second

// TerminationCallback is invoked exactly once per expired record whose rule
// has AutoTerminateOnTimeout set. It abstractly asks the tracker to abort
// executionID; the engine never talks to C4 directly.
type TerminationCallback func(executionID, reason string)

// Engine is C5. The zero value is not usable; construct with New.
type Engine struct {
	log   logr.Logger
	rules *ruleStore

	mu     sync.Mutex
	active map[string]*EscalationRecord

	onTimeout TerminationCallback

	scanMu       sync.Mutex
	scanInterval time.Duration
	scanStop     chan struct{}
	scanDone     chan struct{}

	now func() time.Time
}

// New constructs an empty Engine. onTimeout may be nil if auto-termination is
// unused.
func New(log logr.Logger, onTimeout TerminationCallback) *Engine {
	return &Engine{
		log:       log,
		rules:     newRuleStore(),
		active:    make(map[string]*EscalationRecord),
		onTimeout: onTimeout,
		now:       time.Now,
	}
}

// AddRule appends rule to the rule store.
func (e *Engine) AddRule(rule EscalationRule) {
	e.rules.Add(rule)
}

// RemoveRule deletes the rule with the given id.
func (e *Engine) RemoveRule(id string) bool {
	return e.rules.Remove(id)
}

// GetRule returns the rule with the given id.
func (e *Engine) GetRule(id string) (EscalationRule, bool) {
	return e.rules.Get(id)
}

// Rules returns a snapshot of the current rule order.
func (e *Engine) Rules() []EscalationRule {
	return e.rules.Snapshot()
}

// ReplaceRules atomically swaps the entire rule set, for a hot-reloaded
// rules file. Evaluate never observes a partially-updated store.
func (e *Engine) ReplaceRules(rules []EscalationRule) {
	e.rules.Replace(rules)
}

// Evaluate returns the first rule in store order whose condition matches
// ectx, or false if none do.
func (e *Engine) Evaluate(ectx EvalContext) (EscalationRule, bool) {
	for _, rule := range e.rules.Snapshot() {
		if matches(rule.Condition, ectx, e.log) {
			return rule, true
		}
	}
	return EscalationRule{}, false
}

// Escalate creates a pending EscalationRecord bound to rule and inserts it
// into the active map. timeoutAt is now + parseISODuration(rule.Timeout); a
// malformed duration logs EscalationParseWarning and falls back to one hour.
func (e *Engine) Escalate(executionID, tenantID, intentID string, rule EscalationRule, reason string, violation *Violation) *EscalationRecord {
	now := e.now()

	timeout, ok := parseISODuration(rule.Timeout)
	if !ok {
		logging.Warn(e.log, "EscalationParseWarning: malformed rule timeout, defaulting to 1h",
			logging.NewFields().Component("escalation").KV("ruleId", rule.ID).KV("timeout", rule.Timeout))
	}

	record := &EscalationRecord{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		TenantID:    tenantID,
		IntentID:    intentID,
		Rule:        rule,
		Reason:      reason,
		Priority:    rule.Priority,
		Status:      StatusPending,
		EscalatedTo: rule.EscalateTo,
		Violation:   violation,
		TimeoutAt:   now.Add(timeout),
		CreatedAt:   now,
	}

	e.mu.Lock()
	e.active[record.ID] = record
	e.mu.Unlock()

	return record
}

// Acknowledge transitions a pending record to acknowledged. Any other
// transition (unknown id, or a record already acknowledged/resolved/expired)
// is a warning no-op.
func (e *Engine) Acknowledge(id, actor string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.active[id]
	if !ok || record.Status != StatusPending {
		e.warnInvalidTransition(id, "acknowledge")
		return
	}
	record.Status = StatusAcknowledged
	_ = actor
}

// Resolve transitions a pending or acknowledged record to resolved, records
// resolution metadata, and removes it from the active map. Already-terminal
// records are a warning no-op.
func (e *Engine) Resolve(id, actor, action, notes string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.active[id]
	if !ok || (record.Status != StatusPending && record.Status != StatusAcknowledged) {
		e.warnInvalidTransition(id, "resolve")
		return
	}

	record.Status = StatusResolved
	record.ResolvedBy = actor
	record.ResolvedAt = e.now()
	record.ResolutionAction = action
	if notes != "" {
		record.Reason = record.Reason + " | " + notes
	}
	delete(e.active, id)
}

func (e *Engine) warnInvalidTransition(id, op string) {
	logging.Warn(e.log, "rejected escalation record transition on unknown or terminal record",
		logging.NewFields().Component("escalation").KV("escalationId", id).KV("op", op))
}

// GetActive returns every record in {pending, acknowledged}, optionally
// filtered to tenantID when non-empty.
func (e *Engine) GetActive(tenantID string) []*EscalationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*EscalationRecord, 0, len(e.active))
	for _, record := range e.active {
		if tenantID != "" && record.TenantID != tenantID {
			continue
		}
		out = append(out, record)
	}
	return out
}

// GetPending returns only records in status pending.
func (e *Engine) GetPending() []*EscalationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*EscalationRecord
	for _, record := range e.active {
		if record.Status == StatusPending {
			out = append(out, record)
		}
	}
	return out
}

// ScanTimeouts runs a single timeout sweep as of now: a snapshot of the
// active map is taken under lock, then each snapshot entry still pending or
// acknowledged with timeoutAt <= now is expired, optionally auto-terminated,
// and removed. Concurrent Acknowledge/Resolve calls during the sweep cannot
// double-finalize a record because each entry is re-checked against the live
// map before mutation.
func (e *Engine) ScanTimeouts(now time.Time) {
	e.mu.Lock()
	snapshot := make([]*EscalationRecord, 0, len(e.active))
	for _, record := range e.active {
		snapshot = append(snapshot, record)
	}
	e.mu.Unlock()

	for _, record := range snapshot {
		e.mu.Lock()
		live, ok := e.active[record.ID]
		if !ok || (live.Status != StatusPending && live.Status != StatusAcknowledged) {
			e.mu.Unlock()
			continue
		}
		if live.TimeoutAt.After(now) {
			e.mu.Unlock()
			continue
		}

		live.Status = StatusExpired
		autoTerminate := live.Rule.AutoTerminateOnTimeout
		executionID := live.ExecutionID
		delete(e.active, live.ID)
		e.mu.Unlock()

		if autoTerminate && e.onTimeout != nil {
			e.onTimeout(executionID, "escalation timeout")
		}
	}
}

// StartScan starts a periodic timeout scan at interval (defaultScanInterval
// if <= 0). Start/stop are idempotent: starting an already-running scan
// replaces its interval.
func (e *Engine) StartScan(interval time.Duration) {
	if interval <= 0 {
		interval = defaultScanInterval
	}

	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	if e.scanStop != nil {
		close(e.scanStop)
		<-e.scanDone
	}

	e.scanInterval = interval
	stop := make(chan struct{})
	done := make(chan struct{})
	e.scanStop = stop
	e.scanDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.ScanTimeouts(e.now())
			}
		}
	}()
}

// StopScan stops the periodic timeout scan. Stopping an already-stopped scan
// is a no-op.
func (e *Engine) StopScan() {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	if e.scanStop == nil {
		return
	}
	close(e.scanStop)
	<-e.scanDone
	e.scanStop = nil
	e.scanDone = nil
}

// Shutdown stops the timeout scan and clears the active map. A non-empty map
// at shutdown is logged at warn level as an observability signal, not an error.
func (e *Engine) Shutdown() {
	e.StopScan()

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.active) > 0 {
		logging.Warn(e.log, "escalation engine shut down with active records outstanding",
			logging.NewFields().Component("escalation").KV("activeCount", len(e.active)))
	}
	e.active = make(map[string]*EscalationRecord)
}
