package window

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWindow(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sliding Window Counter Suite")
}

var _ = Describe("Registry", func() {
	var reg *Registry

	BeforeEach(func() {
		reg = NewRegistry()
	})

	Describe("Admit and Record", func() {
		It("admits while under max and denies once the window is full", func() {
			const key = "tenant-1:burst"
			const windowMs = int64(5000)
			const max = 5

			for i := int64(0); i < 5; i++ {
				now := i
				Expect(reg.Admit(key, now, windowMs, max)).To(BeTrue())
				reg.Record(key, now, windowMs)
			}

			Expect(reg.Admit(key, 4, windowMs, max)).To(BeFalse())
		})

		It("does not insert on Admit alone", func() {
			const key = "tenant-2:minute"
			reg.Admit(key, 0, 60_000, 1)
			Expect(reg.Count(key, 0, 60_000)).To(Equal(0))
		})

		It("admits again once the oldest timestamp falls out of the window", func() {
			const key = "tenant-3:burst"
			const windowMs = int64(5000)
			const max = 1

			reg.Record(key, 0, windowMs)
			Expect(reg.Admit(key, 1, windowMs, max)).To(BeFalse())
			Expect(reg.Admit(key, windowMs+1, windowMs, max)).To(BeTrue())
		})
	})

	Describe("lazy cleanup", func() {
		It("prunes stale entries on access after the cleanup interval elapses, without affecting admit correctness before that", func() {
			const key = "tenant-4:minute"
			const windowMs = int64(60_000)

			reg.Record(key, 0, windowMs)
			// Access within the 1s lazy-cleanup interval: no physical prune yet,
			// but admit? still correctly ignores the now-stale entry once it is
			// actually outside the window.
			Expect(reg.Count(key, 500, windowMs)).To(Equal(1))

			// Far past both the cleanup interval and the window: entry is both
			// physically pruned and logically excluded.
			Expect(reg.Count(key, windowMs+10_000, windowMs)).To(Equal(0))
		})
	})

	Describe("Reset", func() {
		It("clears all retained timestamps", func() {
			const key = "tenant-5:hour"
			const windowMs = int64(3_600_000)

			reg.Record(key, 0, windowMs)
			reg.Record(key, 1, windowMs)
			Expect(reg.Count(key, 1, windowMs)).To(Equal(2))

			reg.Reset(key)
			Expect(reg.Count(key, 1, windowMs)).To(Equal(0))
		})
	})

	Describe("ResetAt / RetryAfter", func() {
		It("computes resetAt as oldestRetainedTimestamp + W and retryAfter as max(0, resetAt-now)", func() {
			const key = "tenant-6:burst"
			const windowMs = int64(5000)

			reg.Record(key, 1000, windowMs)
			reg.Record(key, 2000, windowMs)

			Expect(reg.ResetAt(key, 3000, windowMs)).To(Equal(int64(6000)))
			Expect(reg.RetryAfter(key, 3000, windowMs)).To(Equal(int64(3000)))
		})

		It("never returns a negative retryAfter", func() {
			const key = "tenant-7:burst"
			const windowMs = int64(5000)

			reg.Record(key, 0, windowMs)
			Expect(reg.RetryAfter(key, 10_000, windowMs)).To(Equal(int64(0)))
		})
	})

	Describe("invariant: recordRequest establishes happens-before on future admit observations", func() {
		It("no longer contributes to the count once now exceeds t+W", func() {
			const key = "tenant-8:minute"
			const windowMs = int64(60_000)

			reg.Record(key, 0, windowMs)
			Expect(reg.Count(key, windowMs+1, windowMs)).To(Equal(0))
		})
	})
})
