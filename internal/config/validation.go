package config

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then cross-field rules that tags cannot
// express: unique names and dependency order.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return validationError("invalid configuration", describeValidation(err))
	}
	if err := validateComponents(cfg.Components); err != nil {
		return err
	}
	if err := validateBuild(cfg); err != nil {
		return err
	}
	if err := validatePublish(cfg.Publish); err != nil {
		return err
	}
	if strings.ContainsAny(cfg.RootDir, `/\`) {
		return validationError("root_dir must be a single directory name", fmt.Errorf("got %q", cfg.RootDir))
	}
	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return validationError("invalid schedule.cron expression", err)
	}
	return nil
}

// validateComponents enforces unique names and that every dependency is
// declared earlier, so declaration order is a valid build order.
func validateComponents(components []Component) error {
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if seen[c.Name] {
			return validationError("duplicate component name", fmt.Errorf("component %q declared twice", c.Name))
		}
		for _, dep := range c.DependsOn {
			if dep == c.Name {
				return validationError("component depends on itself", fmt.Errorf("component %q", c.Name))
			}
			if !seen[dep] {
				return validationError("component dependency out of order",
					fmt.Errorf("component %q depends on %q which is not declared before it", c.Name, dep))
			}
		}
		seen[c.Name] = true
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if cfg.Build == nil {
		return nil
	}
	if _, ok := cfg.Component(cfg.Build.Component); !ok {
		return validationError("build component is not declared", fmt.Errorf("component %q", cfg.Build.Component))
	}
	for _, dep := range cfg.Build.DependsOn {
		if _, ok := cfg.Component(dep); !ok {
			return validationError("build dependency is not declared", fmt.Errorf("component %q", dep))
		}
	}
	return nil
}

func validatePublish(targets []PublishTarget) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.Name] {
			return validationError("duplicate publish target name", fmt.Errorf("target %q declared twice", t.Name))
		}
		seen[t.Name] = true
	}
	return nil
}

func validationError(msg string, cause error) error {
	return errors.ValidationError(msg).WithCause(cause).Build()
}

// describeValidation renders validator field errors as one readable line.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !stdErrors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return stdErrors.New(strings.Join(parts, "; "))
}
