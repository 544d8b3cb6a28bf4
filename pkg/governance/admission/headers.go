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

package admission

import (
	"net/http"
	"strconv"
)

// Headers converts the Outcome to both the IETF-draft RateLimit-* headers
// and the legacy X-RateLimit-* equivalents, plus Retry-After when denied.
// nowMs is the time the check was evaluated at, used to turn the outcome's
// absolute ResetAtMs into a seconds-until-reset delta. Remaining/Reset are
// clamped to >= 0.
func (o Outcome) Headers(limit int, nowMs int64) http.Header {
	h := make(http.Header, 8)

	remaining := o.Remaining
	if remaining < 0 {
		remaining = 0
	}
	resetSeconds := ceilMsToSeconds(o.ResetAtMs - nowMs)
	if resetSeconds < 0 {
		resetSeconds = 0
	}

	limitStr := strconv.Itoa(limit)
	remainingStr := strconv.Itoa(remaining)
	resetStr := strconv.FormatInt(resetSeconds, 10)

	h.Set("RateLimit-Limit", limitStr)
	h.Set("RateLimit-Remaining", remainingStr)
	h.Set("RateLimit-Reset", resetStr)

	h.Set("X-RateLimit-Limit", limitStr)
	h.Set("X-RateLimit-Remaining", remainingStr)
	h.Set("X-RateLimit-Reset", resetStr)

	if !o.Allowed {
		h.Set("Retry-After", strconv.FormatInt(ceilMsToSeconds(o.RetryAfterMs), 10))
	}

	return h
}

func ceilMsToSeconds(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}
