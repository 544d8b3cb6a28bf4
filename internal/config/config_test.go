package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  admin_port: "8080"
  metrics_port: "9090"

logging:
  level: "info"
  format: "json"

rate_limits:
  default_tier: "pro"
  tenant_overrides:
    tenant-a:
      burst_limit: 10

escalation:
  rules_file: "/etc/cognigate/rules.yaml"
  scan_interval: "45s"

audit:
  dsn: "postgres://localhost/cognigate"
  flush_interval: "10s"
  batch_size: 250

notification:
  slack_webhook_url: "https://hooks.slack.example/abc"
  file_delivery_dir: "/var/lib/cognigate/notifications"
`
				Expect(os.WriteFile(configFile, []byte(validConfig), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Server.AdminPort).To(Equal("8080"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))

				Expect(cfg.RateLimits.DefaultTier).To(Equal("pro"))
				Expect(*cfg.RateLimits.TenantOverrides["tenant-a"].BurstLimit).To(Equal(10))

				Expect(cfg.Escalation.RulesFile).To(Equal("/etc/cognigate/rules.yaml"))
				Expect(cfg.Escalation.ScanInterval).To(Equal(45 * time.Second))

				Expect(cfg.Audit.DSN).To(Equal("postgres://localhost/cognigate"))
				Expect(cfg.Audit.FlushInterval).To(Equal(10 * time.Second))
				Expect(cfg.Audit.BatchSize).To(Equal(250))

				Expect(cfg.Notification.SlackWebhookURL).To(Equal("https://hooks.slack.example/abc"))
			})
		})

		Context("when config file is missing", func() {
			It("should return an error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("when the file omits sections", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(configFile, []byte("server:\n  admin_port: \"9999\"\n"), 0644)).To(Succeed())
			})

			It("should fill in documented defaults for everything else", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.AdminPort).To(Equal("9999"))
				Expect(cfg.RateLimits.DefaultTier).To(Equal("free"))
				Expect(cfg.Escalation.ScanInterval).To(Equal(30 * time.Second))
				Expect(cfg.Audit.BatchSize).To(Equal(100))
			})
		})
	})
})
