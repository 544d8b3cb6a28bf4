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
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// OPAPredicate evaluates a Rego query against an EvalContext's loosely typed
// input, for operators who want escalation conditions expressed as policy
// rather than Go closures. The query must produce a boolean at Query (default
// "data.cognigate.escalation.allow").
type OPAPredicate struct {
	query    string
	prepared *rego.PreparedEvalQuery
}

// NewOPAPredicate compiles module (Rego source) and prepares query for
// repeated evaluation. query defaults to "data.cognigate.escalation.allow"
// when empty.
func NewOPAPredicate(ctx context.Context, module, query string) (*OPAPredicate, error) {
	if query == "" {
		query = "data.cognigate.escalation.allow"
	}

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module("escalation.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compiling escalation policy: %w", err)
	}

	return &OPAPredicate{query: query, prepared: &prepared}, nil
}

// Evaluate runs the prepared query with ectx flattened into a generic input
// map. An empty result set (the query is undefined for this input) is treated
// as no-match, not as an error; a value that is not a boolean is returned as
// an error.
func (p *OPAPredicate) Evaluate(ectx EvalContext) (bool, error) {
	input := evalContextToInput(ectx)

	results, err := p.prepared.Eval(context.Background(), rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluating escalation policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("escalation policy query %q did not yield a boolean", p.query)
	}
	return allowed, nil
}

func evalContextToInput(ectx EvalContext) map[string]any {
	input := map[string]any{
		"executionId":         ectx.ExecutionID,
		"tenantId":            ectx.TenantID,
		"intentId":            ectx.IntentID,
		"handlerName":         ectx.HandlerName,
		"resourceUsage":       ectx.ResourceUsage,
		"wallTimeMs":          ectx.WallTimeMs,
		"consecutiveFailures": ectx.ConsecutiveFailures,
	}
	if ectx.Err != nil {
		input["error"] = ectx.Err.Error()
	}
	if ectx.Violation != nil {
		input["violation"] = map[string]any{
			"type":    ectx.Violation.Type,
			"details": ectx.Violation.Details,
		}
	}
	if ectx.TrustLevel != nil {
		input["trustLevel"] = *ectx.TrustLevel
	}
	for k, v := range ectx.Extra {
		input[k] = v
	}
	return input
}
