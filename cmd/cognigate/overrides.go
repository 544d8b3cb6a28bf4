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

	"github.com/cognigate/runtime/internal/config"
	"github.com/cognigate/runtime/pkg/governance/admission"
	"github.com/cognigate/runtime/pkg/shared/logging"
)

type overridesFile struct {
	TenantOverrides map[string]config.TierOverride `yaml:"tenant_overrides"`
}

func loadOverridesFile(path string) (map[string]admission.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides file %s: %w", path, err)
	}

	var doc overridesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing overrides file %s: %w", path, err)
	}

	out := make(map[string]admission.Override, len(doc.TenantOverrides))
	for tenantID, o := range doc.TenantOverrides {
		out[tenantID] = admission.Override{
			RequestsPerMinute:    o.RequestsPerMinute,
			RequestsPerHour:      o.RequestsPerHour,
			BurstLimit:           o.BurstLimit,
			ExecutionsPerMinute:  o.ExecutionsPerMinute,
			ConcurrentExecutions: o.ConcurrentExecutions,
		}
	}
	return out, nil
}

// overridesWatcher keeps an admission.Controller's per-tenant overrides in
// sync with a YAML file on disk, following the same load-then-watch,
// full-replace-on-change shape as ruleWatcher.
type overridesWatcher struct {
	ctrl *admission.Controller
	path string
	log  logr.Logger
}

func newOverridesWatcher(ctrl *admission.Controller, path string, log logr.Logger) *overridesWatcher {
	return &overridesWatcher{ctrl: ctrl, path: path, log: log.WithName("overrides-watcher")}
}

func (w *overridesWatcher) Load() error {
	overrides, err := loadOverridesFile(w.path)
	if err != nil {
		return err
	}
	w.ctrl.ReplaceTenantOverrides(overrides)
	w.log.Info("loaded tenant rate-limit overrides",
		logging.NewFields().Component("cognigate").Operation("overrides-load").
			KV("count", len(overrides)).KV("path", w.path).KeysAndValues()...)
	return nil
}

func (w *overridesWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating overrides file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching overrides directory %s: %w", dir, err)
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
				logging.Warn(w.log, "tenant overrides reload failed, keeping previous overrides",
					logging.NewFields().Component("cognigate").Operation("overrides-reload").Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(w.log, "overrides file watcher error",
				logging.NewFields().Component("cognigate").Operation("overrides-reload").Error(err))
		}
	}
}
