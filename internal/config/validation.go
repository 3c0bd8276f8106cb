// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/fsconvert/pkg/types"
)

// validate is the singleton validator instance.
var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		return fmt.Errorf("journal.dir: required when the journal is enabled")
	}
	if cfg.Copy.AttemptTimeout < cfg.Copy.RetryDelay {
		return fmt.Errorf("copy.attempt_timeout: must not be shorter than copy.retry_delay")
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
