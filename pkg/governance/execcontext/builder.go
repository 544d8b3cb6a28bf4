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

package execcontext

import (
	apperrors "github.com/cognigate/runtime/internal/errors"
)

const defaultHandler = "default"

// Build validates params and, on success, emits a fresh immutable
// ExecutionContext. nowMs is the construction time in epoch-ms.
func Build(params BuildParams, nowMs int64) (*ExecutionContext, error) {
	if err := validateIntentDecision(params.Intent, params.Decision, params.TenantID); err != nil {
		return nil, err
	}

	limits := params.ResourceLimits.Merge(DefaultResourceLimits())

	handler := params.Handler
	if handler == "" {
		handler = defaultHandler
	}

	correlationID := params.CorrelationID
	if correlationID == "" {
		correlationID = newExecutionID()
	}
	traceID := params.TraceID
	if traceID == "" {
		traceID = newTraceID()
	}

	metadata := copyMetadata(params.Metadata)

	ctx := &ExecutionContext{
		ExecutionID:       newExecutionID(),
		Intent:            params.Intent,
		Decision:          params.Decision,
		TenantID:          params.TenantID,
		ResourceLimits:    limits,
		Handler:           handler,
		ParentExecutionID: params.ParentExecutionID,
		CorrelationID:     correlationID,
		TraceID:           traceID,
		SpanID:            newSpanID(),
		Priority:          params.Priority,
		Metadata:          metadata,
		CreatedAtMs:       nowMs,
		DeadlineMs:        nowMs + limits.TimeoutMs,
	}

	return ctx, nil
}

// validateIntentDecision enforces the invariants shared by Build and
// Validate: intent present, decision present, decision.intentId == intent.id,
// decision.action in {allow, monitor}, non-empty tenantId.
func validateIntentDecision(intent Intent, decision Decision, tenantID string) error {
	if intent.ID == "" {
		return apperrors.ValidationFailure("intent is required")
	}
	if decision.Action == "" {
		return apperrors.ValidationFailure("decision is required")
	}
	if tenantID == "" {
		return apperrors.ValidationFailure("tenantId must not be empty")
	}
	if decision.IntentID != intent.ID {
		return apperrors.ValidationFailuref(
			"decision.intentId %q does not match intent.id %q", decision.IntentID, intent.ID)
	}
	if decision.Action != ActionAllow && decision.Action != ActionMonitor {
		return apperrors.ValidationFailuref(
			"decision %q does not authorize execution (action must be allow or monitor)", decision.Action)
	}
	return nil
}

// Validate is a stand-alone post-hoc check: the same invariants as Build,
// plus positive timeoutMs, positive maxMemoryMb, non-empty handler when
// supplied, and a parseable deadline.
func Validate(ctx *ExecutionContext) error {
	if err := validateIntentDecision(ctx.Intent, ctx.Decision, ctx.TenantID); err != nil {
		return err
	}
	if ctx.ResourceLimits.TimeoutMs <= 0 {
		return apperrors.ValidationFailure("resourceLimits.timeoutMs must be positive")
	}
	if ctx.ResourceLimits.MaxMemoryMb <= 0 {
		return apperrors.ValidationFailure("resourceLimits.maxMemoryMb must be positive")
	}
	if ctx.Handler == "" {
		return apperrors.ValidationFailure("handler must not be empty when supplied")
	}
	if ctx.DeadlineMs <= 0 {
		return apperrors.ValidationFailure("deadline is not parseable")
	}
	return nil
}

// CreateChild builds a child context inheriting tenant, intent, decision,
// correlationId, traceId, handler, priority, and metadata (shallow copy) from
// parent. It generates a fresh executionId and spanId, and computes a fresh
// deadline from overrides.timeoutMs ← parent.timeoutMs ← default.
// parentExecutionId is the parent's executionId unless overrides explicitly
// set it.
func CreateChild(parent *ExecutionContext, overrides ChildOverrides, nowMs int64) *ExecutionContext {
	limits := overrides.ResourceLimits.Merge(parent.ResourceLimits)

	parentExecutionID := parent.ExecutionID
	if overrides.ParentExecutionID != nil {
		parentExecutionID = *overrides.ParentExecutionID
	}

	priority := parent.Priority
	if overrides.Priority != nil {
		priority = *overrides.Priority
	}

	metadata := copyMetadata(parent.Metadata)
	for k, v := range overrides.Metadata {
		metadata[k] = v
	}

	return &ExecutionContext{
		ExecutionID:       newExecutionID(),
		Intent:            parent.Intent,
		Decision:          parent.Decision,
		TenantID:          parent.TenantID,
		ResourceLimits:    limits,
		Handler:           parent.Handler,
		ParentExecutionID: parentExecutionID,
		CorrelationID:     parent.CorrelationID,
		TraceID:           parent.TraceID,
		SpanID:            newSpanID(),
		Priority:          priority,
		Metadata:          metadata,
		CreatedAtMs:       nowMs,
		DeadlineMs:        nowMs + limits.TimeoutMs,
	}
}

func copyMetadata(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
