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

// Package middleware holds chi-compatible HTTP middleware for the admin
// surface: the Redis-backed idempotency cache and the rate-limit header
// writer built from an admission.Outcome.
package middleware

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyHeader = "Idempotency-Key"

// IdempotencyCache deduplicates retried requests that carry an Idempotency-Key
// header, keyed per tenant so two tenants can reuse the same key value without
// colliding.
type IdempotencyCache struct {
	client *redis.Client
	ttl    int64 // seconds
}

// NewIdempotencyCache returns a cache backed by client, remembering a key for
// ttlSeconds.
func NewIdempotencyCache(client *redis.Client, ttlSeconds int64) *IdempotencyCache {
	return &IdempotencyCache{client: client, ttl: ttlSeconds}
}

// Middleware returns a chi-compatible middleware that short-circuits a
// duplicate request (same tenant + Idempotency-Key seen within the TTL) with
// 409 Conflict, and lets a first-seen request through unmodified.
func (c *IdempotencyCache) Middleware(tenantOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			redisKey := "idempotency:" + tenantOf(r) + ":" + key
			ctx := r.Context()
			ok, err := c.client.SetNX(ctx, redisKey, "1", secondsToDuration(c.ttl)).Result()
			if err != nil {
				// Cache unavailable: fail open rather than block admission checks
				// on a Redis outage.
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate request"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
