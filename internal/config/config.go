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

// Package config loads Cognigate's process configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	RateLimits   RateLimitsConfig   `yaml:"rate_limits"`
	Escalation   EscalationConfig   `yaml:"escalation"`
	Audit        AuditConfig        `yaml:"audit"`
	Notification NotificationConfig `yaml:"notification"`
	Idempotency  IdempotencyConfig  `yaml:"idempotency"`
}

// ServerConfig configures the admin/webhook-header HTTP surface.
type ServerConfig struct {
	AdminPort   string `yaml:"admin_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TierOverride carries the subset of RateLimitConfig fields a tenant or a
// constructor-wide override wants to change; nil fields are left unset
// (see precedence rule in admission.Controller.GetEffectiveLimits).
type TierOverride struct {
	RequestsPerMinute   *int `yaml:"requests_per_minute,omitempty"`
	RequestsPerHour     *int `yaml:"requests_per_hour,omitempty"`
	BurstLimit          *int `yaml:"burst_limit,omitempty"`
	ExecutionsPerMinute *int `yaml:"executions_per_minute,omitempty"`
	ConcurrentExecutions *int `yaml:"concurrent_executions,omitempty"`
}

// RateLimitsConfig configures C2's tier table and any standing overrides.
type RateLimitsConfig struct {
	DefaultTier     string                  `yaml:"default_tier"`
	GlobalOverride  TierOverride            `yaml:"global_override"`
	TenantOverrides map[string]TierOverride `yaml:"tenant_overrides"`
	// OverridesFile, when set, is hot-reloaded by cmd/cognigate: its content
	// atomically replaces TenantOverrides without a process restart.
	OverridesFile string `yaml:"overrides_file"`
}

// EscalationConfig configures C5's rule store and timeout scanner.
type EscalationConfig struct {
	RulesFile    string        `yaml:"rules_file"`
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// AuditConfig configures the repository and buffered writer.
type AuditConfig struct {
	DSN           string        `yaml:"dsn"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// NotificationConfig configures the escalation webhook dispatcher.
type NotificationConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	FileDeliveryDir string `yaml:"file_delivery_dir"`
}

// IdempotencyConfig configures the optional Redis-backed request dedup cache
// on the admin HTTP surface. A blank RedisAddr disables the cache entirely.
type IdempotencyConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// Load reads and parses a YAML configuration file, applying documented
// defaults for any field the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a Config populated with Cognigate's documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AdminPort:   "8080",
			MetricsPort: "9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimits: RateLimitsConfig{
			DefaultTier:     "free",
			TenantOverrides: map[string]TierOverride{},
		},
		Escalation: EscalationConfig{
			ScanInterval: 30 * time.Second,
		},
		Audit: AuditConfig{
			FlushInterval: 5 * time.Second,
			BatchSize:     100,
		},
		Idempotency: IdempotencyConfig{
			TTL: 5 * time.Minute,
		},
	}
}
