package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/cognigate/runtime/pkg/governance/admission"
	"github.com/cognigate/runtime/pkg/httpapi/middleware"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTP Middleware Suite")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

var _ = Describe("IdempotencyCache", func() {
	var (
		server *miniredis.Miniredis
		client *redis.Client
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: server.Addr()})
	})

	AfterEach(func() {
		_ = client.Close()
		server.Close()
	})

	It("passes through a request with no Idempotency-Key", func() {
		cache := middleware.NewIdempotencyCache(client, 60)
		handler := cache.Middleware(func(*http.Request) string { return "tenant-1" })(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/check", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("admits the first request and rejects a retried duplicate", func() {
		cache := middleware.NewIdempotencyCache(client, 60)
		handler := cache.Middleware(func(*http.Request) string { return "tenant-1" })(okHandler())

		req := httptest.NewRequest("POST", "/admin/check", nil)
		req.Header.Set("Idempotency-Key", "key-1")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec2 := httptest.NewRecorder()
		handler.ServeHTTP(rec2, req)
		Expect(rec2.Code).To(Equal(http.StatusConflict))
	})

	It("does not collide across tenants reusing the same key", func() {
		cache := middleware.NewIdempotencyCache(client, 60)
		tenant := "tenant-1"
		handler := cache.Middleware(func(*http.Request) string { return tenant })(okHandler())

		req := httptest.NewRequest("POST", "/admin/check", nil)
		req.Header.Set("Idempotency-Key", "shared-key")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))

		tenant = "tenant-2"
		rec2 := httptest.NewRecorder()
		handler.ServeHTTP(rec2, req)
		Expect(rec2.Code).To(Equal(http.StatusOK))
	})
})

var _ = Describe("RateLimitHeaders", func() {
	It("denies with 429 once the tier's burst limit is exceeded", func() {
		ctrl := admission.NewController()
		resolve := func(*http.Request) (string, string) { return "tenant-1", "free" }
		handler := middleware.RateLimitHeaders(ctrl, resolve, nil)(okHandler())

		var last *httptest.ResponseRecorder
		for i := 0; i < 10; i++ {
			last = httptest.NewRecorder()
			handler.ServeHTTP(last, httptest.NewRequest("GET", "/admin/status", nil))
		}
		Expect(last.Code).To(Equal(http.StatusTooManyRequests))
		Expect(last.Header().Get("Retry-After")).NotTo(BeEmpty())
	})
})
