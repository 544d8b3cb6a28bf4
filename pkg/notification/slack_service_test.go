package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/slack-go/slack"

	cbhttp "github.com/cognigate/runtime/pkg/infrastructure/http"
	"github.com/cognigate/runtime/pkg/notification"
)

var _ = Describe("SlackService", func() {
	var (
		ctx     context.Context
		breaker *cbhttp.CircuitBreaker
	)

	BeforeEach(func() {
		ctx = context.Background()
		breaker = cbhttp.NewCircuitBreaker("slack-test", &cbhttp.CircuitBreakerConfig{
			FailureThreshold:  3,
			RecoveryTimeout:   time.Second,
			SuccessThreshold:  1,
			RequestsPerSecond: 100,
			BurstLimit:        100,
		}, nil, logr.Discard())
	})

	It("posts a sanitized message to the webhook", func() {
		var received slack.WebhookMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		service := notification.NewSlackService(server.URL, breaker, logr.Discard())
		err := service.Deliver(ctx, notification.Notification{
			EscalationID: "esc-1",
			ExecutionID:  "exec-1",
			TenantID:     "tenant-1",
			Priority:     "critical",
			EscalatedTo:  "#incidents",
			Subject:      "Execution escalated",
			Body:         "password: secret123 exceeded resource threshold",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(received.Channel).To(Equal("#incidents"))
		Expect(received.Text).NotTo(ContainSubstring("secret123"))
	})

	It("treats a non-2xx response as retryable", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		service := notification.NewSlackService(server.URL, breaker, logr.Discard())
		err := service.Deliver(ctx, notification.Notification{EscalationID: "esc-2", Body: "body"})
		Expect(err).To(HaveOccurred())

		var retryableErr *notification.RetryableError
		Expect(err).To(BeAssignableToTypeOf(retryableErr))
	})
})
