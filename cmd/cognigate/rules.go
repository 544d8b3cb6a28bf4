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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/cognigate/runtime/pkg/governance/escalation"
	"github.com/cognigate/runtime/pkg/shared/logging"
	"github.com/cognigate/runtime/pkg/shared/validation"
)

// ruleFile is the on-disk shape of the escalation rules file: a flat,
// YAML-friendly projection of escalation.EscalationRule. The "custom"
// condition kind has no file representation — a CustomPredicate is a Go
// value, not data — so rules of that kind can only be registered in-process.
type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID                     string         `yaml:"id" validate:"required"`
	Name                   string         `yaml:"name" validate:"required"`
	EscalateTo             string         `yaml:"escalate_to" validate:"required"`
	Timeout                string         `yaml:"timeout"`
	Priority               string         `yaml:"priority"`
	AutoTerminateOnTimeout bool           `yaml:"auto_terminate_on_timeout"`
	RequireAcknowledgement bool           `yaml:"require_acknowledgement"`
	Metadata               map[string]any `yaml:"metadata"`
	Condition              conditionSpec  `yaml:"condition" validate:"required"`
}

type conditionSpec struct {
	Kind                string  `yaml:"kind" validate:"required,oneof=resource_exceeded execution_failed timeout_exceeded sandbox_violation trust_below"`
	Resource            string  `yaml:"resource"`
	Threshold           float64 `yaml:"threshold"`
	HandlerName         string  `yaml:"handler_name"`
	ConsecutiveFailures int     `yaml:"consecutive_failures"`
	ThresholdMs         int64   `yaml:"threshold_ms"`
	ViolationType       string  `yaml:"violation_type"`
	TrustLevel          float64 `yaml:"trust_level"`
}

func (s ruleSpec) toRule() escalation.EscalationRule {
	return escalation.EscalationRule{
		ID:                     s.ID,
		Name:                   s.Name,
		EscalateTo:             s.EscalateTo,
		Timeout:                s.Timeout,
		Priority:               escalation.Priority(s.Priority),
		AutoTerminateOnTimeout: s.AutoTerminateOnTimeout,
		RequireAcknowledgement: s.RequireAcknowledgement,
		Metadata:               s.Metadata,
		Condition: escalation.EscalationCondition{
			Kind:                escalation.ConditionKind(s.Condition.Kind),
			Resource:            s.Condition.Resource,
			Threshold:           s.Condition.Threshold,
			HandlerName:         s.Condition.HandlerName,
			ConsecutiveFailures: s.Condition.ConsecutiveFailures,
			ThresholdMs:         s.Condition.ThresholdMs,
			ViolationType:       s.Condition.ViolationType,
			TrustLevel:          s.Condition.TrustLevel,
		},
	}
}

// loadRuleFile reads and validates path, returning the rules it declares in
// file order (rule-store order is evaluation order: first match wins).
func loadRuleFile(path string) ([]escalation.EscalationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	rules := make([]escalation.EscalationRule, 0, len(doc.Rules))
	for i, spec := range doc.Rules {
		if err := validation.Struct(spec); err != nil {
			return nil, fmt.Errorf("rule %d (%s) in %s: %w", i, spec.ID, path, err)
		}
		rules = append(rules, spec.toRule())
	}
	return rules, nil
}

// ruleWatcher keeps an escalation.Engine's rule store in sync with a YAML
// file on disk, reloading it in full (ReplaceRules) whenever the file
// changes. The engine exposes no partial-update primitive for rules loaded
// from a file, so every reload is a full atomic swap.
type ruleWatcher struct {
	engine *escalation.Engine
	path   string
	log    logr.Logger
}

func newRuleWatcher(engine *escalation.Engine, path string, log logr.Logger) *ruleWatcher {
	return &ruleWatcher{engine: engine, path: path, log: log.WithName("rule-watcher")}
}

// Load performs the initial rules load, returning an error if the file is
// missing or invalid. Call this once before Watch.
func (w *ruleWatcher) Load() error {
	rules, err := loadRuleFile(w.path)
	if err != nil {
		return err
	}
	w.engine.ReplaceRules(rules)
	w.log.Info("loaded escalation rules",
		logging.NewFields().Component("cognigate").Operation("rules-load").
			KV("count", len(rules)).KV("path", w.path).KeysAndValues()...)
	return nil
}

// Watch blocks, reloading the rules file on every write/create event until
// ctx is cancelled. A malformed reload is logged and discarded; the engine
// keeps running on its last-known-good rule set.
func (w *ruleWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating rules file watcher: %w", err)
	}
	defer watcher.Close()

	// fsnotify watches directories, not files directly, so an editor that
	// replaces the file via rename-over (vim, many config management tools)
	// still triggers an event.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching rules directory %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.Load(); err != nil {
				logging.Warn(w.log, "escalation rules reload failed, keeping previous rules",
					logging.NewFields().Component("cognigate").Operation("rules-reload").Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(w.log, "rules file watcher error",
				logging.NewFields().Component("cognigate").Operation("rules-reload").Error(err))
		}
	}
}
