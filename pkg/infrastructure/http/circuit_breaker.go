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

// Package http provides an outbound circuit breaker wrapping any HTTP call
// Cognigate's ambient services make (notification delivery; the audit
// repository guards its database calls with its own breaker), so repeated
// failures trip fast instead of piling up retries against a struggling
// dependency.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cognigate/runtime/pkg/shared/logging"
)

// State mirrors gobreaker's three states under Cognigate's own names, so
// callers never import gobreaker directly.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// CircuitBreakerConfig configures both the breaker and the token-bucket rate
// limiter guarding Do.
type CircuitBreakerConfig struct {
	FailureThreshold    uint32
	RecoveryTimeout     time.Duration
	SuccessThreshold    uint32
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	BurstLimit          int
	HealthCheckInterval time.Duration
	HealthCheckPath     string
	EnableMetrics       bool
	MetricsInterval     time.Duration
}

// Metrics is a point-in-time snapshot of a CircuitBreaker's counters.
type Metrics struct {
	State                State
	TotalRequests        int64
	SuccessfulRequests   int64
	FailedRequests       int64
	RejectedRequests     int64
	RateLimitHits        int64
	ConsecutiveFailures  int32
	ConsecutiveSuccesses int32
	AverageResponseTime  time.Duration
	HealthScore          float64
	LastSuccessTime      time.Time
	LastFailureTime      time.Time
}

// CircuitBreaker wraps an *http.Client with a gobreaker state machine and a
// token-bucket rate limiter, tracking the counters callers poll via
// GetMetrics.
type CircuitBreaker struct {
	name   string
	client *http.Client
	config *CircuitBreakerConfig
	log    logr.Logger

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	mu                   sync.Mutex
	totalRequests        int64
	successfulRequests   int64
	failedRequests       int64
	rejectedRequests     int64
	rateLimitHits        int64
	consecutiveFailures  int32
	consecutiveSuccesses int32
	totalResponseTime    time.Duration
	lastSuccessTime      time.Time
	lastFailureTime      time.Time

	stopHealthCheck chan struct{}
	healthCheckOnce sync.Once
}

// ErrRateLimited is returned by Do when the token bucket has no room.
var ErrRateLimited = errors.New("rate limit exceeded")

// NewCircuitBreaker constructs a CircuitBreaker named name.
func NewCircuitBreaker(name string, config *CircuitBreakerConfig, client *http.Client, log logr.Logger) *CircuitBreaker {
	if client == nil {
		client = &http.Client{}
	}

	cb := &CircuitBreaker{
		name:    name,
		client:  client,
		config:  config,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstLimit),
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.SuccessThreshold,
		Interval:    0,
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
	}
	cb.breaker = gobreaker.NewCircuitBreaker(settings)

	if config.EnableMetrics && config.HealthCheckInterval > 0 {
		cb.startHealthCheck()
	}

	return cb
}

// Do executes req through the rate limiter and circuit breaker, applying
// RequestTimeout via context to every attempt (an earlier deadline already on
// req's context still wins).
func (cb *CircuitBreaker) Do(req *http.Request) (*http.Response, error) {
	if !cb.limiter.Allow() {
		cb.mu.Lock()
		cb.rateLimitHits++
		cb.rejectedRequests++
		cb.mu.Unlock()
		return nil, ErrRateLimited
	}

	start := time.Now()

	result, err := cb.breaker.Execute(func() (any, error) {
		ctx := req.Context()
		if cb.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cb.config.RequestTimeout)
			defer cancel()
		}
		resp, doErr := cb.client.Do(req.WithContext(ctx))
		if doErr != nil {
			return nil, doErr
		}
		if resp.StatusCode >= 500 {
			return resp, errors.New("upstream returned a server error")
		}
		return resp, nil
	})

	elapsed := time.Since(start)
	cb.recordOutcome(result, err, elapsed)

	if err != nil {
		if resp, ok := result.(*http.Response); ok {
			return resp, err
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func (cb *CircuitBreaker) recordOutcome(result any, err error, elapsed time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.totalResponseTime += elapsed

	if err == nil {
		cb.successfulRequests++
		cb.consecutiveSuccesses++
		cb.consecutiveFailures = 0
		cb.lastSuccessTime = time.Now()
		return
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejectedRequests++
		return
	}

	if resp, ok := result.(*http.Response); ok && resp != nil {
		// A 5xx counts as a failed request, not merely rejected.
		cb.failedRequests++
		cb.consecutiveFailures++
		cb.consecutiveSuccesses = 0
		cb.lastFailureTime = time.Now()
		return
	}

	cb.failedRequests++
	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0
	cb.lastFailureTime = time.Now()
}

// GetState reports the breaker's current gobreaker state, translated.
func (cb *CircuitBreaker) GetState() State {
	switch cb.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// IsHealthy reports whether the breaker is currently closed.
func (cb *CircuitBreaker) IsHealthy() bool {
	return cb.GetState() == StateClosed
}

// GetMetrics returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) GetMetrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var avg time.Duration
	if cb.totalRequests > 0 {
		avg = cb.totalResponseTime / time.Duration(cb.totalRequests)
	}

	var healthScore float64
	if attempted := cb.successfulRequests + cb.failedRequests; attempted > 0 {
		healthScore = float64(cb.successfulRequests) / float64(attempted)
	} else {
		healthScore = 1.0
	}

	return Metrics{
		State:                cb.GetState(),
		TotalRequests:        cb.totalRequests,
		SuccessfulRequests:   cb.successfulRequests,
		FailedRequests:       cb.failedRequests,
		RejectedRequests:     cb.rejectedRequests,
		RateLimitHits:        cb.rateLimitHits,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		AverageResponseTime:  avg,
		HealthScore:          healthScore,
		LastSuccessTime:      cb.lastSuccessTime,
		LastFailureTime:      cb.lastFailureTime,
	}
}

// Reset clears the breaker's counters and returns it to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.totalRequests = 0
	cb.successfulRequests = 0
	cb.failedRequests = 0
	cb.rejectedRequests = 0
	cb.rateLimitHits = 0
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.totalResponseTime = 0
	cb.mu.Unlock()

	settings := gobreaker.Settings{
		Name:        cb.name,
		MaxRequests: cb.config.SuccessThreshold,
		Timeout:     cb.config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.config.FailureThreshold
		},
	}
	cb.breaker = gobreaker.NewCircuitBreaker(settings)
}

// Stop halts the background health-check loop, if running. Safe to call more
// than once.
func (cb *CircuitBreaker) Stop() {
	cb.healthCheckOnce.Do(func() {
		if cb.stopHealthCheck != nil {
			close(cb.stopHealthCheck)
		}
	})
}

func (cb *CircuitBreaker) startHealthCheck() {
	cb.stopHealthCheck = make(chan struct{})
	go func() {
		ticker := time.NewTicker(cb.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cb.stopHealthCheck:
				return
			case <-ticker.C:
				metrics := cb.GetMetrics()
				logging.Warn(cb.log, "circuit breaker health snapshot",
					logging.NewFields().Component("circuit_breaker").
						KV("name", cb.name).KV("state", metrics.State).KV("healthScore", metrics.HealthScore))
			}
		}
	}()
}
