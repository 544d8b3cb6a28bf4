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

// Package admission implements the four-horizon rate/quota admission
// controller (C2): burst/minute/hour request limits, minute execution rate,
// and the concurrent-execution ceiling, per tenant tier.
package admission

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cognigate/runtime/pkg/governance/window"
)

const (
	burstWindowMs  int64 = 5_000
	minuteWindowMs int64 = 60_000
	hourWindowMs   int64 = 3_600_000
)

// Outcome is the result of a checkLimit/checkExecutionLimit call. Horizon
// names the gate that decided it: "burst", "minute", or "hour" for CheckLimit,
// "concurrent" or "execution_minute" for CheckExecutionLimit.
type Outcome struct {
	Allowed      bool
	Remaining    int
	ResetAtMs    int64
	RetryAfterMs int64
	Reason       string
	Horizon      string
}

// Controller is C2: the rate admission controller. The zero value is not
// usable; construct with NewController.
type Controller struct {
	windows *window.Registry

	mu              sync.RWMutex
	tiers           map[string]RateLimitConfig
	globalOverride  Override
	tenantOverrides map[string]Override

	concurrentMu sync.Mutex
	concurrent   map[string]*int64
}

// NewController constructs a Controller seeded with the shipped tier table.
func NewController() *Controller {
	return &Controller{
		windows:         window.NewRegistry(),
		tiers:           DefaultTiers(),
		tenantOverrides: make(map[string]Override),
		concurrent:      make(map[string]*int64),
	}
}

// SetGlobalOverride installs a constructor-wide override applied to every
// tenant ahead of any per-tenant override.
func (c *Controller) SetGlobalOverride(o Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalOverride = o
}

// SetTenantOverrides installs a per-tenant override (admin operation).
func (c *Controller) SetTenantOverrides(tenantID string, o Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantOverrides[tenantID] = o
}

// ReplaceTenantOverrides atomically swaps the entire tenant-overrides map,
// for hot-reloading an overrides file. GetEffectiveLimits never observes a
// partially-updated map.
func (c *Controller) ReplaceTenantOverrides(overrides map[string]Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantOverrides = overrides
}

// GetEffectiveLimits resolves tier-default ← constructor-wide override ←
// per-tenant override (rightmost wins) into one RateLimitConfig. An unknown
// tier falls back to "free".
func (c *Controller) GetEffectiveLimits(tenantID, tier string) RateLimitConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	base, ok := c.tiers[tier]
	if !ok {
		base = c.tiers[fallbackTier]
	}
	merged := c.globalOverride.apply(base)
	if o, ok := c.tenantOverrides[tenantID]; ok {
		merged = o.apply(merged)
	}
	return merged
}

func requestKey(tenantID, horizon string) string {
	return tenantID + ":req:" + horizon
}

func execKey(tenantID string) string {
	return tenantID + ":exec:minute"
}

// CheckLimit evaluates, in order, burst (5s) → per-minute (60s) → per-hour
// (3600s) against the next would-be recordRequest. It does not record.
func (c *Controller) CheckLimit(tenantID, tier string, nowMs int64) Outcome {
	limits := c.GetEffectiveLimits(tenantID, tier)

	burstKey := requestKey(tenantID, "burst")
	if !c.windows.Admit(burstKey, nowMs, burstWindowMs, limits.BurstLimit) {
		return Outcome{
			Allowed:      false,
			Remaining:    0,
			ResetAtMs:    c.windows.ResetAt(burstKey, nowMs, burstWindowMs),
			RetryAfterMs: c.windows.RetryAfter(burstKey, nowMs, burstWindowMs),
			Reason:       "Burst rate limit exceeded",
			Horizon:      "burst",
		}
	}

	minuteKey := requestKey(tenantID, "minute")
	minuteCount := c.windows.Count(minuteKey, nowMs, minuteWindowMs)
	if minuteCount >= limits.RequestsPerMinute {
		return Outcome{
			Allowed:      false,
			Remaining:    0,
			ResetAtMs:    c.windows.ResetAt(minuteKey, nowMs, minuteWindowMs),
			RetryAfterMs: c.windows.RetryAfter(minuteKey, nowMs, minuteWindowMs),
			Reason:       "Per-minute rate limit exceeded",
			Horizon:      "minute",
		}
	}

	hourKey := requestKey(tenantID, "hour")
	hourCount := c.windows.Count(hourKey, nowMs, hourWindowMs)
	if hourCount >= limits.RequestsPerHour {
		return Outcome{
			Allowed:      false,
			Remaining:    0,
			ResetAtMs:    c.windows.ResetAt(hourKey, nowMs, hourWindowMs),
			RetryAfterMs: c.windows.RetryAfter(hourKey, nowMs, hourWindowMs),
			Reason:       "Per-hour rate limit exceeded",
			Horizon:      "hour",
		}
	}

	minuteRemaining := limits.RequestsPerMinute - minuteCount
	hourRemaining := limits.RequestsPerHour - hourCount
	remaining := minuteRemaining
	if hourRemaining < remaining {
		remaining = hourRemaining
	}

	return Outcome{
		Allowed:   true,
		Remaining: remaining,
		ResetAtMs: c.windows.ResetAt(minuteKey, nowMs, minuteWindowMs),
		Horizon:   "hour",
	}
}

// RecordRequest inserts nowMs into all three request horizons. Separate from
// CheckLimit so callers may consume a slot only on successful downstream
// processing.
func (c *Controller) RecordRequest(tenantID string, nowMs int64) {
	c.windows.Record(requestKey(tenantID, "burst"), nowMs, burstWindowMs)
	c.windows.Record(requestKey(tenantID, "minute"), nowMs, minuteWindowMs)
	c.windows.Record(requestKey(tenantID, "hour"), nowMs, hourWindowMs)
}

// CheckExecutionLimit evaluates the concurrent ceiling first, then
// executions-per-minute.
func (c *Controller) CheckExecutionLimit(tenantID, tier string, nowMs int64) Outcome {
	limits := c.GetEffectiveLimits(tenantID, tier)

	current := c.concurrentCount(tenantID)
	if current >= int64(limits.ConcurrentExecutions) {
		return Outcome{
			Allowed: false,
			Reason: fmt.Sprintf("Concurrent execution limit reached (%d/%d)",
				current, limits.ConcurrentExecutions),
			Horizon: "concurrent",
		}
	}

	key := execKey(tenantID)
	if !c.windows.Admit(key, nowMs, minuteWindowMs, limits.ExecutionsPerMinute) {
		return Outcome{
			Allowed:      false,
			RetryAfterMs: c.windows.RetryAfter(key, nowMs, minuteWindowMs),
			Reason:       "Execution rate limit exceeded",
			Horizon:      "execution_minute",
		}
	}

	return Outcome{
		Allowed:   true,
		Remaining: int(int64(limits.ConcurrentExecutions) - current),
		Horizon:   "execution_minute",
	}
}

// RecordExecution inserts into the exec-minute window and increments the
// concurrent counter. Pair with CompleteExecution by caller discipline (§5).
func (c *Controller) RecordExecution(tenantID string, nowMs int64) {
	c.windows.Record(execKey(tenantID), nowMs, minuteWindowMs)
	atomic.AddInt64(c.counterFor(tenantID), 1)
}

// CompleteExecution decrements the concurrent counter, floored at zero.
// Idempotent below zero so a duplicate completion cannot free phantom slots.
func (c *Controller) CompleteExecution(tenantID string) {
	counter := c.counterFor(tenantID)
	for {
		cur := atomic.LoadInt64(counter)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(counter, cur, cur-1) {
			return
		}
	}
}

// ReconcileConcurrency resets the tenant's concurrent counter to liveCount,
// the caller-invoked (never implicit) remedy for §9's documented
// cross-structure drift between this counter and the tracker's per-tenant
// count.
func (c *Controller) ReconcileConcurrency(tenantID string, liveCount int64) {
	atomic.StoreInt64(c.counterFor(tenantID), liveCount)
}

// ResetTenant clears all windows and the concurrent counter for tenantID.
func (c *Controller) ResetTenant(tenantID string) {
	c.windows.Reset(requestKey(tenantID, "burst"))
	c.windows.Reset(requestKey(tenantID, "minute"))
	c.windows.Reset(requestKey(tenantID, "hour"))
	c.windows.Reset(execKey(tenantID))
	atomic.StoreInt64(c.counterFor(tenantID), 0)
}

func (c *Controller) concurrentCount(tenantID string) int64 {
	return atomic.LoadInt64(c.counterFor(tenantID))
}

func (c *Controller) counterFor(tenantID string) *int64 {
	c.concurrentMu.Lock()
	defer c.concurrentMu.Unlock()
	counter, ok := c.concurrent[tenantID]
	if !ok {
		counter = new(int64)
		c.concurrent[tenantID] = counter
	}
	return counter
}
