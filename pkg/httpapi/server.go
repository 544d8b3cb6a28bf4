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

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cognigate/runtime/pkg/governance/admission"
	"github.com/cognigate/runtime/pkg/governance/escalation"
	"github.com/cognigate/runtime/pkg/httpapi/middleware"
)

// ServerDeps is everything the admin router needs to handle a request.
type ServerDeps struct {
	Admission   *admission.Controller
	Escalations *escalation.Engine
	Idempotency *middleware.IdempotencyCache // optional; nil disables the check
	Metrics     *Metrics
	// Registry is the registerer Metrics was built against. /metrics serves
	// whatever it gathers; nil falls back to the global default registry.
	Registry *prometheus.Registry
	Log      logr.Logger
}

// tenantHeader names the header callers use to identify themselves to the
// admin API. There is no separate authn layer in this subsystem (§1
// Non-goals): authorization happens upstream, before a request reaches here.
const tenantHeader = "X-Tenant-Id"
const tierHeader = "X-Tenant-Tier"

func resolveTenant(r *http.Request) (tenantID, tier string) {
	tenantID = r.Header.Get(tenantHeader)
	tier = r.Header.Get(tierHeader)
	if tier == "" {
		tier = "free"
	}
	return tenantID, tier
}

// NewRouter builds the chi router mounting the admin surface: rate-limit
// headers on every request, the escalation ack/resolve endpoints, and a
// Prometheus metrics endpoint.
func NewRouter(deps ServerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", tenantHeader, tierHeader, "Idempotency-Key"},
		AllowCredentials: false,
	}))
	var admissionMetrics middleware.AdmissionMetrics
	if deps.Metrics != nil {
		admissionMetrics = deps.Metrics
	}
	if deps.Idempotency != nil {
		r.Use(deps.Idempotency.Middleware(func(req *http.Request) string {
			tenantID, _ := resolveTenant(req)
			return tenantID
		}))
	}
	r.Use(middleware.RateLimitHeaders(deps.Admission, resolveTenant, admissionMetrics))

	metricsHandler := promhttp.Handler()
	if deps.Registry != nil {
		metricsHandler = promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})
	}
	r.Get("/metrics", metricsHandler.ServeHTTP)

	r.Route("/escalations", func(r chi.Router) {
		r.Get("/", deps.listEscalations)
		r.Post("/{id}/acknowledge", deps.acknowledgeEscalation)
		r.Post("/{id}/resolve", deps.resolveEscalation)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (d ServerDeps) listEscalations(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := resolveTenant(r)
	writeJSON(w, http.StatusOK, d.Escalations.GetActive(tenantID))
}

type acknowledgeRequest struct {
	Actor string `json:"actor"`
}

func (d ServerDeps) acknowledgeEscalation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body acknowledgeRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	d.Escalations.Acknowledge(id, body.Actor)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "acknowledged"})
}

type resolveRequest struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

func (d ServerDeps) resolveEscalation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	d.Escalations.Resolve(id, body.Actor, body.Action, body.Notes)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resolved"})
}
