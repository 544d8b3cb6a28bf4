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

// Package sanitization redacts secrets from escalation text before it leaves
// the process, with a regex-free fallback for when the primary pass fails.
package sanitization

import (
	"fmt"
	"regexp"
	"strings"
)

const redactedMarker = "***REDACTED***"
const fallbackMarker = "[REDACTED]"

// pattern holds a compiled matcher for one secret shape. Sanitize splits each
// match at its first ':' or '=', keeping the key ("password:") and blanking
// only the value.
type pattern struct {
	re *regexp.Regexp
}

// Sanitizer redacts secret-shaped substrings (passwords, tokens, API keys)
// from arbitrary text, such as an escalation reason or violation detail.
type Sanitizer struct {
	patterns []pattern
}

// NewSanitizer builds a Sanitizer with the default secret patterns.
func NewSanitizer() *Sanitizer {
	specs := []string{
		`(?i)(password)\s*[:=]\s*['"]?[^\s'",}]+['"]?`,
		`(?i)(token)\s*[:=]\s*['"]?[^\s'",}]+['"]?`,
		`(?i)(api[_-]?key)\s*[:=]\s*['"]?[^\s'",}]+['"]?`,
		`(?i)(secret)\s*[:=]\s*['"]?[^\s'",}]+['"]?`,
		`(?i)(authorization)\s*[:=]\s*['"]?[^\s'",}]+['"]?`,
	}
	patterns := make([]pattern, 0, len(specs))
	for _, s := range specs {
		patterns = append(patterns, pattern{re: regexp.MustCompile(s)})
	}
	return &Sanitizer{patterns: patterns}
}

// Sanitize redacts every recognized secret pattern in input, replacing the
// value (not the key) with a fixed marker.
func (s *Sanitizer) Sanitize(input string) string {
	out := input
	for _, p := range s.patterns {
		out = p.re.ReplaceAllStringFunc(out, func(match string) string {
			idx := strings.IndexAny(match, ":=")
			if idx < 0 {
				return redactedMarker
			}
			return match[:idx+1] + " " + redactedMarker
		})
	}
	return out
}

// SanitizeWithFallback runs Sanitize, recovering from any panic in the regex
// engine (e.g. catastrophic backtracking on adversarial input) and falling
// back to SafeFallback so a broken pattern never drops an escalation.
func (s *Sanitizer) SanitizeWithFallback(input string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = s.SafeFallback(input)
			err = fmt.Errorf("sanitization panicked, used safe fallback: %v", r)
		}
	}()
	return s.Sanitize(input), nil
}

// secretKeys are the literal, case-insensitive key names SafeFallback looks
// for. Kept separate from the regex patterns above since this path must never
// itself invoke a regex engine.
var secretKeys = []string{"password", "token", "api_key", "api-key", "apikey", "secret", "authorization"}

// SafeFallback redacts secret-shaped substrings using plain string scanning,
// with no regex involved, so it cannot fail the way the primary pass can.
func (s *Sanitizer) SafeFallback(input string) string {
	lower := strings.ToLower(input)
	var b strings.Builder
	i := 0
	for i < len(input) {
		matchedKey := ""
		for _, key := range secretKeys {
			if strings.HasPrefix(lower[i:], key) {
				matchedKey = key
				break
			}
		}
		if matchedKey == "" {
			b.WriteByte(input[i])
			i++
			continue
		}
		after := i + len(matchedKey)
		sepStart := after
		for sepStart < len(input) && (input[sepStart] == ' ' || input[sepStart] == '\t') {
			sepStart++
		}
		if sepStart >= len(input) || (input[sepStart] != ':' && input[sepStart] != '=') {
			b.WriteByte(input[i])
			i++
			continue
		}
		valStart := sepStart + 1
		for valStart < len(input) && (input[valStart] == ' ' || input[valStart] == '\t') {
			valStart++
		}
		quote := byte(0)
		if valStart < len(input) && (input[valStart] == '\'' || input[valStart] == '"') {
			quote = input[valStart]
			valStart++
		}
		valEnd := valStart
		for valEnd < len(input) {
			c := input[valEnd]
			if quote != 0 {
				if c == quote {
					break
				}
			} else if c == ' ' || c == '\t' || c == ',' || c == '}' || c == '\n' {
				break
			}
			valEnd++
		}
		b.WriteString(input[i:sepStart])
		b.WriteByte(input[sepStart])
		b.WriteString(" ")
		b.WriteString(fallbackMarker)
		i = valEnd
		if quote != 0 && i < len(input) && input[i] == quote {
			i++
		}
	}
	return b.String()
}
