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

// Package escalation implements the rule-driven escalation engine (C5): rule
// evaluation, the escalation record lifecycle, and a periodic timeout scan
// with optional auto-termination.
package escalation

import "time"

// Priority is the severity an EscalationRule assigns to any record it raises.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is an EscalationRecord's lifecycle state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusExpired      Status = "expired"
)

// ConditionKind discriminates the EscalationCondition tagged union.
type ConditionKind string

const (
	ConditionResourceExceeded ConditionKind = "resource_exceeded"
	ConditionExecutionFailed  ConditionKind = "execution_failed"
	ConditionTimeoutExceeded  ConditionKind = "timeout_exceeded"
	ConditionSandboxViolation ConditionKind = "sandbox_violation"
	ConditionTrustBelow       ConditionKind = "trust_below"
	ConditionCustom           ConditionKind = "custom"
)

// EscalationCondition is a tagged union: exactly one field group is populated,
// selected by Kind. This mirrors the condition variants the engine matches
// against an EvalContext in Evaluate.
type EscalationCondition struct {
	Kind ConditionKind

	// resource_exceeded
	Resource  string
	Threshold float64

	// execution_failed
	HandlerName         string
	ConsecutiveFailures int

	// timeout_exceeded
	ThresholdMs int64

	// sandbox_violation
	ViolationType string

	// trust_below
	TrustLevel float64

	// custom
	Predicate CustomPredicate
}

// CustomPredicate is the opaque predicate a "custom" condition delegates to.
// Implementations must never panic out to the caller; Evaluate recovers and
// treats a panicking or erroring predicate as a non-match.
type CustomPredicate interface {
	Evaluate(ctx EvalContext) (bool, error)
}

// CustomPredicateFunc adapts a plain function to CustomPredicate, for
// in-process closures and tests.
type CustomPredicateFunc func(ctx EvalContext) (bool, error)

func (f CustomPredicateFunc) Evaluate(ctx EvalContext) (bool, error) { return f(ctx) }

// EvalContext is the generic signal set Evaluate matches rules against. It is
// deliberately loose (a grab-bag of optional observations) because the
// upstream caller — executing handler code, a resource monitor, a sandbox —
// only ever has a subset of these at any one time.
type EvalContext struct {
	ExecutionID        string
	TenantID           string
	IntentID           string
	HandlerName        string
	ResourceUsage      map[string]float64
	WallTimeMs         int64
	Err                error
	ConsecutiveFailures int
	Violation          *Violation
	TrustLevel         *float64
	Extra              map[string]any
}

// Violation describes a sandbox_violation signal.
type Violation struct {
	Type    string
	Details string
}

// EscalationRule binds a condition to an escalation recipient, timeout, and
// priority. Rules are evaluated in rule-store order; the first match wins.
type EscalationRule struct {
	ID                     string              `validate:"required"`
	Name                   string              `validate:"required"`
	Condition              EscalationCondition `validate:"-"`
	EscalateTo             string              `validate:"required"`
	Timeout                string              `validate:"-"` // ISO-8601 duration, e.g. "PT1H"
	Priority               Priority            `validate:"-"`
	AutoTerminateOnTimeout bool
	RequireAcknowledgement bool
	Metadata               map[string]any `validate:"-"`
}

// EscalationRecord is the persisted (in this package, in-memory) result of a
// rule match.
type EscalationRecord struct {
	ID               string
	ExecutionID      string
	TenantID         string
	IntentID         string
	Rule             EscalationRule
	Reason           string
	Priority         Priority
	Status           Status
	EscalatedTo      string
	Violation        *Violation
	ResolvedBy       string
	ResolvedAt       time.Time
	ResolutionAction string
	TimeoutAt        time.Time
	CreatedAt        time.Time
}
