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

// Package execcontext implements the execution context builder (C3):
// validating intent+decision pairs, merging resource limits, computing
// deadlines, and emitting immutable execution contexts (including children).
package execcontext

import (
	"k8s.io/apimachinery/pkg/api/resource"
)

// Action is the upstream authorization verdict that reaches this subsystem.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionMonitor Action = "monitor"
)

// Intent is the external, client-authored request shape this subsystem
// consumes. It is already admitted by an upstream policy.
type Intent struct {
	ID       string         `validate:"required"`
	Kind     string         `validate:"required"`
	Payload  map[string]any `validate:"-"`
	Metadata map[string]any `validate:"-"`
}

// Decision is the upstream authorization verdict attached to an Intent.
type Decision struct {
	IntentID string `validate:"required"`
	Action   Action `validate:"required"`
	Reason   string `validate:"-"`
}

// ResourceLimits is the merged, effective limit set for one execution.
// MaxMemoryMb and MaxCpuPercent are also obtainable as resource.Quantity via
// MemoryQuantity/CPUQuantity for components (e.g. metrics, sandbox handoff)
// that want a well-known bounded-quantity type rather than a bare int64.
type ResourceLimits struct {
	MaxMemoryMb         int64 `validate:"gt=0"`
	MaxCpuPercent       int64 `validate:"gte=0,lte=100"`
	TimeoutMs           int64 `validate:"gt=0"`
	MaxNetworkRequests  int   `validate:"gte=0"`
	MaxFileSystemOps    int   `validate:"gte=0"`
	MaxConcurrentOps    int   `validate:"gte=0"`
	MaxPayloadSizeBytes int64 `validate:"gte=0"`
	MaxRetries          int   `validate:"gte=0"`
	NetworkTimeoutMs    int64 `validate:"gte=0"`
}

// DefaultResourceLimits are the documented fallback values (§3).
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMb:         512,
		MaxCpuPercent:       80,
		TimeoutMs:           300_000,
		MaxNetworkRequests:  100,
		MaxFileSystemOps:    1_000,
		MaxConcurrentOps:    10,
		MaxPayloadSizeBytes: 10 * 1024 * 1024,
		MaxRetries:          3,
		NetworkTimeoutMs:    30_000,
	}
}

// MemoryQuantity returns the memory ceiling as a binary-SI resource.Quantity
// (e.g. "512Mi"), the same representation Kubernetes-adjacent components use
// for bounded memory quantities.
func (r ResourceLimits) MemoryQuantity() *resource.Quantity {
	return resource.NewQuantity(r.MaxMemoryMb*1024*1024, resource.BinarySI)
}

// CPUQuantity returns the CPU ceiling as a milli-value resource.Quantity
// (e.g. 80 → "800m" == 80% of one core's milli-capacity, consistent with the
// "millicores" convention for fractional CPU quantities).
func (r ResourceLimits) CPUQuantity() *resource.Quantity {
	return resource.NewMilliQuantity(r.MaxCpuPercent*10, resource.DecimalSI)
}

// ResourceLimitsOverride carries the subset of ResourceLimits a caller wants
// to change; nil fields inherit from whatever base they are merged against.
type ResourceLimitsOverride struct {
	MaxMemoryMb         *int64
	MaxCpuPercent       *int64
	TimeoutMs           *int64
	MaxNetworkRequests  *int
	MaxFileSystemOps    *int
	MaxConcurrentOps    *int
	MaxPayloadSizeBytes *int64
	MaxRetries          *int
	NetworkTimeoutMs    *int64
}

// Merge applies o's non-nil fields onto base, returning a new ResourceLimits.
func (o *ResourceLimitsOverride) Merge(base ResourceLimits) ResourceLimits {
	if o == nil {
		return base
	}
	out := base
	if o.MaxMemoryMb != nil {
		out.MaxMemoryMb = *o.MaxMemoryMb
	}
	if o.MaxCpuPercent != nil {
		out.MaxCpuPercent = *o.MaxCpuPercent
	}
	if o.TimeoutMs != nil {
		out.TimeoutMs = *o.TimeoutMs
	}
	if o.MaxNetworkRequests != nil {
		out.MaxNetworkRequests = *o.MaxNetworkRequests
	}
	if o.MaxFileSystemOps != nil {
		out.MaxFileSystemOps = *o.MaxFileSystemOps
	}
	if o.MaxConcurrentOps != nil {
		out.MaxConcurrentOps = *o.MaxConcurrentOps
	}
	if o.MaxPayloadSizeBytes != nil {
		out.MaxPayloadSizeBytes = *o.MaxPayloadSizeBytes
	}
	if o.MaxRetries != nil {
		out.MaxRetries = *o.MaxRetries
	}
	if o.NetworkTimeoutMs != nil {
		out.NetworkTimeoutMs = *o.NetworkTimeoutMs
	}
	return out
}

// ExecutionContext is immutable once built.
type ExecutionContext struct {
	ExecutionID       string
	Intent            Intent
	Decision          Decision
	TenantID          string
	ResourceLimits    ResourceLimits
	Handler           string
	ParentExecutionID string
	CorrelationID     string
	TraceID           string
	SpanID            string
	Priority          int
	Metadata          map[string]any
	CreatedAtMs       int64
	DeadlineMs        int64
}

// BuildParams is the input to Build.
type BuildParams struct {
	Intent            Intent
	Decision          Decision
	TenantID          string
	ResourceLimits    *ResourceLimitsOverride
	Handler           string
	ParentExecutionID string
	CorrelationID     string
	TraceID           string
	Priority          int
	Metadata          map[string]any
}

// ChildOverrides is the input to CreateChild.
type ChildOverrides struct {
	ResourceLimits    *ResourceLimitsOverride
	ParentExecutionID *string
	Priority          *int
	Metadata          map[string]any
}
