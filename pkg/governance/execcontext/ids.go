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

package execcontext

import (
	"crypto/rand"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// newExecutionID generates an opaque, globally-unique execution identifier.
func newExecutionID() string {
	return uuid.New().String()
}

// newTraceID generates a fresh 32-hex-char trace identifier, reusing OTel's
// TraceID encoding so a context is directly usable as a real span's trace id
// if the host later wires distributed tracing.
func newTraceID() string {
	var id trace.TraceID
	_, _ = rand.Read(id[:])
	return id.String()
}

// newSpanID generates a fresh 16-hex-char ("16-char tail") span identifier.
func newSpanID() string {
	var id trace.SpanID
	_, _ = rand.Read(id[:])
	return id.String()
}
