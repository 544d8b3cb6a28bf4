package sanitization_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cognigate/runtime/pkg/notification/sanitization"
)

func TestSanitization(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sanitization Suite")
}

var _ = Describe("Sanitizer", func() {
	var sanitizer *sanitization.Sanitizer

	BeforeEach(func() {
		sanitizer = sanitization.NewSanitizer()
	})

	Context("SanitizeWithFallback", func() {
		It("redacts a password field", func() {
			result, err := sanitizer.SanitizeWithFallback("password: secret123")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(ContainSubstring("***REDACTED***"))
			Expect(result).NotTo(ContainSubstring("secret123"))
		})

		It("returns empty output for empty input", func() {
			result, err := sanitizer.SanitizeWithFallback("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(""))
		})

		It("redacts secrets in a large payload", func() {
			input := make([]byte, 1024*1024)
			for i := range input {
				input[i] = 'a'
			}
			result, err := sanitizer.SanitizeWithFallback(string(input) + " password: secret123")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(ContainSubstring("***REDACTED***"))
			Expect(result).NotTo(ContainSubstring("secret123"))
		})
	})

	Context("SafeFallback", func() {
		It("redacts passwords with simple string matching", func() {
			result := sanitizer.SafeFallback("Connection failed: password: secret123 access denied")
			Expect(result).To(ContainSubstring("[REDACTED]"))
			Expect(result).NotTo(ContainSubstring("secret123"))
		})

		It("redacts api keys", func() {
			result := sanitizer.SafeFallback("Authentication failed: api_key: sk-abc123def456 invalid")
			Expect(result).To(ContainSubstring("[REDACTED]"))
			Expect(result).NotTo(ContainSubstring("sk-abc123def456"))
		})

		It("redacts multiple secrets in one string", func() {
			result := sanitizer.SafeFallback("password: secret1 token: abc789 api_key: xyz123")
			Expect(result).NotTo(ContainSubstring("secret1"))
			Expect(result).NotTo(ContainSubstring("abc789"))
			Expect(result).NotTo(ContainSubstring("xyz123"))
		})

		It("handles varied delimiters", func() {
			inputs := []string{
				"password:secret123",
				"password: secret123",
				"password:  secret123",
				"password: secret123,",
				"password: 'secret123'",
				`password: "secret123"`,
				"password: secret123}",
			}
			for _, input := range inputs {
				result := sanitizer.SafeFallback(input)
				Expect(result).NotTo(ContainSubstring("secret123"), "input: "+input)
				Expect(result).To(ContainSubstring("[REDACTED]"), "input: "+input)
			}
		})

		It("is case-insensitive", func() {
			inputs := []string{"PASSWORD: secret123", "Password: secret123", "TOKEN: abc789"}
			for _, input := range inputs {
				Expect(sanitizer.SafeFallback(input)).To(ContainSubstring("[REDACTED]"))
			}
		})

		It("preserves non-secret content", func() {
			result := sanitizer.SafeFallback("Deployment failed for app:v1.2.3 due to password: secret123 error")
			Expect(result).To(ContainSubstring("Deployment failed"))
			Expect(result).To(ContainSubstring("app:v1.2.3"))
			Expect(result).NotTo(ContainSubstring("secret123"))
		})

		It("returns the input unchanged when there is nothing to redact", func() {
			input := "This is a normal log message with no credentials"
			Expect(sanitizer.SafeFallback(input)).To(Equal(input))
		})
	})
})
