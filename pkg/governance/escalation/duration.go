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
	"regexp"
	"strconv"
	"time"
)

// isoDurationPattern matches the restricted ISO-8601 duration grammar
// EscalationRule.Timeout is specified in: P[nD][T[nH][nM][nS]]. Every
// component is optional; a bare "P" or "PT" parses to zero.
var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// defaultParseFailureTimeout is the fallback applied when Timeout cannot be
// parsed against isoDurationPattern (EscalationParseWarning, §7).
const defaultParseFailureTimeout = time.Hour

// parseISODuration parses an ISO-8601 duration of the form P[nD][T[nH][nM][nS]].
// Missing components default to zero. A malformed string degrades to
// defaultParseFailureTimeout and reports ok=false so the caller can log a
// warning; it never returns an error.
func parseISODuration(s string) (d time.Duration, ok bool) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return defaultParseFailureTimeout, false
	}

	days := atoiOrZero(m[1])
	hours := atoiOrZero(m[2])
	minutes := atoiOrZero(m[3])
	seconds := atoiOrZero(m[4])

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second

	return total, true
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
