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

package middleware

import (
	"net/http"
	"time"

	"github.com/cognigate/runtime/pkg/governance/admission"
)

// TenantResolver extracts the tenant id a request is admitted against.
type TenantResolver func(*http.Request) (tenantID, tier string)

// AdmissionMetrics is the subset of instrumentation RateLimitHeaders updates.
// Defined here rather than imported from pkg/httpapi to avoid a package
// cycle; *httpapi.Metrics satisfies it structurally.
type AdmissionMetrics interface {
	ObserveAdmissionDecision(tenantID, horizon, outcome string)
}

// RateLimitHeaders wraps every request through ctrl.CheckLimit, writing the
// RateLimit-*/X-RateLimit-*/Retry-After headers from the outcome, and denying
// with 429 when the outcome is not allowed. A successful pass-through records
// the request against the sliding windows. metrics may be nil, which disables
// the admission-decision counter.
func RateLimitHeaders(ctrl *admission.Controller, resolve TenantResolver, metrics AdmissionMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, tier := resolve(r)
			nowMs := time.Now().UnixMilli()

			outcome := ctrl.CheckLimit(tenantID, tier, nowMs)
			limits := ctrl.GetEffectiveLimits(tenantID, tier)
			for k, v := range outcome.Headers(limits.RequestsPerMinute, nowMs) {
				w.Header()[k] = v
			}

			if metrics != nil {
				result := "denied"
				if outcome.Allowed {
					result = "allowed"
				}
				metrics.ObserveAdmissionDecision(tenantID, outcome.Horizon, result)
			}

			if !outcome.Allowed {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"` + outcome.Reason + `"}`))
				return
			}

			ctrl.RecordRequest(tenantID, nowMs)
			next.ServeHTTP(w, r)
		})
	}
}
