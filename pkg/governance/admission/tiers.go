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

// RateLimitConfig is the effective set of limits evaluated for one tenant.
type RateLimitConfig struct {
	RequestsPerMinute    int
	RequestsPerHour      int
	BurstLimit           int
	ExecutionsPerMinute  int
	ConcurrentExecutions int
}

// Override carries a partial RateLimitConfig; a nil field means "inherit".
type Override struct {
	RequestsPerMinute    *int
	RequestsPerHour      *int
	BurstLimit           *int
	ExecutionsPerMinute  *int
	ConcurrentExecutions *int
}

// apply merges o onto base, returning a new RateLimitConfig with o's non-nil
// fields taking precedence.
func (o Override) apply(base RateLimitConfig) RateLimitConfig {
	out := base
	if o.RequestsPerMinute != nil {
		out.RequestsPerMinute = *o.RequestsPerMinute
	}
	if o.RequestsPerHour != nil {
		out.RequestsPerHour = *o.RequestsPerHour
	}
	if o.BurstLimit != nil {
		out.BurstLimit = *o.BurstLimit
	}
	if o.ExecutionsPerMinute != nil {
		out.ExecutionsPerMinute = *o.ExecutionsPerMinute
	}
	if o.ConcurrentExecutions != nil {
		out.ConcurrentExecutions = *o.ConcurrentExecutions
	}
	return out
}

// DefaultTiers are the shipped tier table: free/pro/enterprise.
func DefaultTiers() map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"free": {
			RequestsPerMinute:    30,
			RequestsPerHour:      500,
			BurstLimit:           5,
			ExecutionsPerMinute:  10,
			ConcurrentExecutions: 5,
		},
		"pro": {
			RequestsPerMinute:    150,
			RequestsPerHour:      5_000,
			BurstLimit:           25,
			ExecutionsPerMinute:  50,
			ConcurrentExecutions: 20,
		},
		"enterprise": {
			RequestsPerMinute:    500,
			RequestsPerHour:      25_000,
			BurstLimit:           50,
			ExecutionsPerMinute:  200,
			ConcurrentExecutions: 100,
		},
	}
}

const fallbackTier = "free"
