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
	"github.com/go-logr/logr"

	"github.com/cognigate/runtime/pkg/shared/logging"
)

// matches reports whether cond matches ectx, per the table in §4.5. A
// panicking or erroring custom predicate is caught here and treated as a
// non-match; it is never allowed to propagate to the caller.
func matches(cond EscalationCondition, ectx EvalContext, log logr.Logger) bool {
	switch cond.Kind {
	case ConditionResourceExceeded:
		value, ok := ectx.ResourceUsage[cond.Resource]
		return ok && value > cond.Threshold

	case ConditionExecutionFailed:
		if ectx.Err == nil {
			return false
		}
		if cond.HandlerName != "" && cond.HandlerName != ectx.HandlerName {
			return false
		}
		if cond.ConsecutiveFailures > 0 && ectx.ConsecutiveFailures < cond.ConsecutiveFailures {
			return false
		}
		return true

	case ConditionTimeoutExceeded:
		return ectx.WallTimeMs > cond.ThresholdMs

	case ConditionSandboxViolation:
		return ectx.Violation != nil && ectx.Violation.Type == cond.ViolationType

	case ConditionTrustBelow:
		return ectx.TrustLevel != nil && *ectx.TrustLevel < cond.TrustLevel

	case ConditionCustom:
		return evaluateCustom(cond.Predicate, ectx, log)

	default:
		return false
	}
}

// evaluateCustom invokes a custom predicate under a recover guard. Both a
// panic and a returned error are logged and treated as non-match.
func evaluateCustom(predicate CustomPredicate, ectx EvalContext, log logr.Logger) (matched bool) {
	if predicate == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Warn(log, "custom escalation predicate panicked",
				logging.NewFields().Component("escalation").Execution(ectx.ExecutionID).KV("panic", r))
			matched = false
		}
	}()

	ok, err := predicate.Evaluate(ectx)
	if err != nil {
		logging.Warn(log, "custom escalation predicate returned an error",
			logging.NewFields().Component("escalation").Execution(ectx.ExecutionID).Error(err))
		return false
	}
	return ok
}
