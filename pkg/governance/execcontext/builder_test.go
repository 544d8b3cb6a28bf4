package execcontext

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/cognigate/runtime/internal/errors"
)

func TestExecContext(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Execution Context Builder Suite")
}

func validParams() BuildParams {
	return BuildParams{
		Intent:   Intent{ID: "intent-1", Kind: "remediate"},
		Decision: Decision{IntentID: "intent-1", Action: ActionAllow},
		TenantID: "tenant-1",
	}
}

var _ = Describe("Build", func() {
	It("constructs a context with generated ids and a computed deadline", func() {
		ctx, err := Build(validParams(), 1000)
		Expect(err).NotTo(HaveOccurred())

		Expect(ctx.ExecutionID).NotTo(BeEmpty())
		Expect(ctx.CorrelationID).NotTo(BeEmpty())
		Expect(ctx.TraceID).To(HaveLen(32))
		Expect(ctx.SpanID).To(HaveLen(16))
		Expect(ctx.Handler).To(Equal("default"))
		Expect(ctx.ResourceLimits).To(Equal(DefaultResourceLimits()))
		Expect(ctx.DeadlineMs).To(Equal(int64(1000) + DefaultResourceLimits().TimeoutMs))
	})

	It("merges caller-provided resource limits left-to-right over defaults", func() {
		timeout := int64(5_000)
		params := validParams()
		params.ResourceLimits = &ResourceLimitsOverride{TimeoutMs: &timeout}

		ctx, err := Build(params, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.ResourceLimits.TimeoutMs).To(Equal(timeout))
		Expect(ctx.ResourceLimits.MaxMemoryMb).To(Equal(DefaultResourceLimits().MaxMemoryMb))
		Expect(ctx.DeadlineMs).To(Equal(int64(5_000)))
	})

	It("exposes memory and cpu limits as resource.Quantity", func() {
		ctx, err := Build(validParams(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.ResourceLimits.MemoryQuantity().String()).To(Equal("512Mi"))
		Expect(ctx.ResourceLimits.CPUQuantity().String()).To(Equal("800m"))
	})

	It("preserves caller-supplied correlation and trace ids", func() {
		params := validParams()
		params.CorrelationID = "corr-123"
		params.TraceID = "11111111111111111111111111111111"

		ctx, err := Build(params, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.CorrelationID).To(Equal("corr-123"))
		Expect(ctx.TraceID).To(Equal("11111111111111111111111111111111"))
	})

	Describe("Scenario 5: rejection of unauthorized decision", func() {
		It("rejects a decision whose action is not allow/monitor", func() {
			params := validParams()
			params.Decision = Decision{IntentID: "intent-1", Action: "deny"}

			_, err := Build(params, 0)
			Expect(err).To(HaveOccurred())
			appErr, ok := err.(*apperrors.AppError)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
			Expect(appErr.Message).To(ContainSubstring("does not authorize execution"))
		})
	})

	It("rejects a mismatched intent/decision pair", func() {
		params := validParams()
		params.Decision.IntentID = "some-other-intent"

		_, err := Build(params, 0)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an empty tenant id", func() {
		params := validParams()
		params.TenantID = ""

		_, err := Build(params, 0)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Validate", func() {
	It("accepts a well-formed context built via Build", func() {
		ctx, err := Build(validParams(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(Validate(ctx)).To(Succeed())
	})

	It("rejects a non-positive timeoutMs", func() {
		ctx, _ := Build(validParams(), 0)
		ctx.ResourceLimits.TimeoutMs = 0
		Expect(Validate(ctx)).To(HaveOccurred())
	})

	It("rejects a non-positive maxMemoryMb", func() {
		ctx, _ := Build(validParams(), 0)
		ctx.ResourceLimits.MaxMemoryMb = 0
		Expect(Validate(ctx)).To(HaveOccurred())
	})

	It("rejects an empty handler", func() {
		ctx, _ := Build(validParams(), 0)
		ctx.Handler = ""
		Expect(Validate(ctx)).To(HaveOccurred())
	})
})

var _ = Describe("CreateChild", func() {
	It("Scenario 6 / invariant 5: inherits tenant/intent/decision/correlation, gets fresh execution+span ids", func() {
		parent, err := Build(validParams(), 0)
		Expect(err).NotTo(HaveOccurred())

		timeout := int64(1_000)
		child := CreateChild(parent, ChildOverrides{
			ResourceLimits: &ResourceLimitsOverride{TimeoutMs: &timeout},
		}, 0)

		Expect(child.ParentExecutionID).To(Equal(parent.ExecutionID))
		Expect(child.CorrelationID).To(Equal(parent.CorrelationID))
		Expect(child.TenantID).To(Equal(parent.TenantID))
		Expect(child.ExecutionID).NotTo(Equal(parent.ExecutionID))
		Expect(child.SpanID).NotTo(Equal(parent.SpanID))
		Expect(child.DeadlineMs).To(Equal(int64(1_000)))
	})

	It("lets an explicit parentExecutionId override take precedence", func() {
		parent, _ := Build(validParams(), 0)
		explicit := "external-parent"
		child := CreateChild(parent, ChildOverrides{ParentExecutionID: &explicit}, 0)
		Expect(child.ParentExecutionID).To(Equal(explicit))
	})

	It("falls back through overrides.timeoutMs <- parent.timeoutMs <- default", func() {
		parent, _ := Build(validParams(), 0)
		child := CreateChild(parent, ChildOverrides{}, 0)
		Expect(child.ResourceLimits.TimeoutMs).To(Equal(parent.ResourceLimits.TimeoutMs))
	})

	It("copies parent metadata and merges override metadata without mutating the parent", func() {
		params := validParams()
		params.Metadata = map[string]any{"a": 1}
		parent, _ := Build(params, 0)

		child := CreateChild(parent, ChildOverrides{Metadata: map[string]any{"b": 2}}, 0)
		Expect(child.Metadata).To(HaveKeyWithValue("a", 1))
		Expect(child.Metadata).To(HaveKeyWithValue("b", 2))
		Expect(parent.Metadata).NotTo(HaveKey("b"))
	})
})
