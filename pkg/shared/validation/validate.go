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

// Package validation runs struct-tag validation ahead of the semantic checks
// the governance packages perform themselves, so a malformed payload (missing
// id, negative limit) is rejected before it reaches them. Its caller in this
// repository is cmd/cognigate's rule-file loader, ahead of
// escalation.Engine.ReplaceRules.
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/cognigate/runtime/internal/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
	})
	return instance
}

// Struct validates v against its `validate:"..."` struct tags, returning a
// single ValidationFailure AppError summarizing every violated field.
func Struct(v any) error {
	if err := get().Struct(v); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "validation failed")
		}
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return apperrors.ValidationFailure(strings.Join(parts, "; "))
	}
	return nil
}
