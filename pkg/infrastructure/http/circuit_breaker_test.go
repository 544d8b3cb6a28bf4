package http

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCircuitBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Circuit Breaker Suite")
}

var _ = Describe("CircuitBreaker", func() {
	var (
		cb           *CircuitBreaker
		testServer   *httptest.Server
		successCount int64
		failureCount int64
	)

	BeforeEach(func() {
		atomic.StoreInt64(&successCount, 0)
		atomic.StoreInt64(&failureCount, 0)

		testServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/success":
				atomic.AddInt64(&successCount, 1)
				w.WriteHeader(http.StatusOK)
			case "/failure":
				atomic.AddInt64(&failureCount, 1)
				w.WriteHeader(http.StatusInternalServerError)
			case "/slow":
				time.Sleep(200 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))

		config := &CircuitBreakerConfig{
			FailureThreshold:  3,
			RecoveryTimeout:   100 * time.Millisecond,
			SuccessThreshold:  2,
			RequestTimeout:    50 * time.Millisecond,
			RequestsPerSecond: 100,
			BurstLimit:        50,
		}
		cb = NewCircuitBreaker("test-circuit", config, &http.Client{}, logr.Discard())
	})

	AfterEach(func() {
		cb.Stop()
		testServer.Close()
	})

	It("starts closed and healthy", func() {
		Expect(cb.GetState()).To(Equal(StateClosed))
		Expect(cb.IsHealthy()).To(BeTrue())
		Expect(cb.GetMetrics().TotalRequests).To(Equal(int64(0)))
	})

	It("stays closed across successful requests", func() {
		for i := 0; i < 5; i++ {
			req, _ := http.NewRequest(http.MethodGet, testServer.URL+"/success", nil)
			resp, err := cb.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		Expect(cb.GetState()).To(Equal(StateClosed))
		metrics := cb.GetMetrics()
		Expect(metrics.TotalRequests).To(Equal(int64(5)))
		Expect(metrics.SuccessfulRequests).To(Equal(int64(5)))
	})

	It("opens after consecutive failures reach the threshold", func() {
		for i := 0; i < 3; i++ {
			req, _ := http.NewRequest(http.MethodGet, testServer.URL+"/failure", nil)
			_, _ = cb.Do(req)
		}
		Expect(cb.GetState()).To(Equal(StateOpen))
		Expect(cb.IsHealthy()).To(BeFalse())
	})

	It("rejects requests once the token bucket is exhausted", func() {
		config := &CircuitBreakerConfig{
			FailureThreshold:  3,
			RecoveryTimeout:   time.Second,
			SuccessThreshold:  2,
			RequestTimeout:    time.Second,
			RequestsPerSecond: 1,
			BurstLimit:        1,
		}
		limited := NewCircuitBreaker("rate-limited", config, &http.Client{}, logr.Discard())
		defer limited.Stop()

		req, _ := http.NewRequest(http.MethodGet, testServer.URL+"/success", nil)
		_, err := limited.Do(req)
		Expect(err).NotTo(HaveOccurred())

		_, err = limited.Do(req)
		Expect(err).To(MatchError(ErrRateLimited))
	})

	It("times out slow upstream calls within RequestTimeout", func() {
		req, _ := http.NewRequest(http.MethodGet, testServer.URL+"/slow", nil)
		start := time.Now()
		_, err := cb.Do(req)
		Expect(err).To(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically("<", 150*time.Millisecond))
	})

	It("resets counters and state on Reset", func() {
		for i := 0; i < 3; i++ {
			req, _ := http.NewRequest(http.MethodGet, testServer.URL+"/failure", nil)
			_, _ = cb.Do(req)
		}
		Expect(cb.GetState()).To(Equal(StateOpen))

		cb.Reset()
		Expect(cb.GetState()).To(Equal(StateClosed))
		Expect(cb.GetMetrics().ConsecutiveFailures).To(Equal(int32(0)))
	})

	It("handles concurrent requests without corrupting counters", func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				path := "/success"
				if n%4 == 0 {
					path = "/failure"
				}
				req, _ := http.NewRequest(http.MethodGet, testServer.URL+path, nil)
				_, _ = cb.Do(req)
			}(i)
		}
		wg.Wait()

		metrics := cb.GetMetrics()
		total := metrics.SuccessfulRequests + metrics.FailedRequests + metrics.RejectedRequests
		Expect(total).To(Equal(metrics.TotalRequests))
	})
})
