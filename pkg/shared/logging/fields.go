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

// Package logging provides the standard field vocabulary logged across
// Cognigate's packages, and a thin construction helper for the process logger.
package logging

import "time"

// Fields is a fluent builder over the key/value pairs attached to a log line.
// Every package logs through Fields rather than formatting strings by hand, so
// log output stays greppable across the whole service.
type Fields map[string]any

// NewFields returns an empty field set.
func NewFields() Fields {
	return Fields{}
}

// Component tags the log line with the emitting subsystem (e.g. "admission",
// "tracker", "escalation").
func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

// Operation tags the log line with the operation being performed.
func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

// Resource tags the log line with the kind and, if non-empty, the name of the
// resource the operation concerns.
func (f Fields) Resource(kind, name string) Fields {
	f["resource_type"] = kind
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

// Tenant tags the log line with the tenant id.
func (f Fields) Tenant(tenantID string) Fields {
	if tenantID != "" {
		f["tenant_id"] = tenantID
	}
	return f
}

// Execution tags the log line with the execution id.
func (f Fields) Execution(executionID string) Fields {
	if executionID != "" {
		f["execution_id"] = executionID
	}
	return f
}

// Duration records an elapsed time in whole milliseconds.
func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Error records err's message, and is a no-op for a nil error.
func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

// KV attaches an arbitrary key/value pair.
func (f Fields) KV(key string, value any) Fields {
	f[key] = value
	return f
}

// KeysAndValues flattens Fields into the alternating key/value slice that
// go-logr's Logger.Info/Error expect.
func (f Fields) KeysAndValues() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
