// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

var (
	domainSuffixPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)
	namePattern         = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateDomain(cfg, errs)
	v.validateSupervisor(cfg, errs)
	v.validateProxy(cfg, errs)
	v.validateServices(cfg, errs)
	v.validateScripts(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert", "tls_cert and tls_key must be set together")
	}
}

func (v *Validator) validateDomain(cfg *Config, errs *ValidationError) {
	if cfg.DomainSuffix != "" && !domainSuffixPattern.MatchString(cfg.DomainSuffix) {
		errs.Add("domain_suffix", fmt.Sprintf("invalid domain suffix '%s'", cfg.DomainSuffix))
	}
}

func (v *Validator) validateSupervisor(cfg *Config, errs *ValidationError) {
	if cfg.Supervisor.LogCapacity < 0 {
		errs.Add("supervisor.log_capacity", "must not be negative")
	}
	if cfg.Supervisor.Workers < 0 {
		errs.Add("supervisor.workers", "must not be negative")
	}
}

func (v *Validator) validateProxy(cfg *Config, errs *ValidationError) {
	switch cfg.Proxy.Backend {
	case "", "traefik", "builtin":
	default:
		errs.Add("proxy.backend", fmt.Sprintf("invalid backend '%s', must be one of: traefik, builtin", cfg.Proxy.Backend))
	}
	if cfg.Proxy.HTTPPort < 0 || cfg.Proxy.HTTPPort > 65535 {
		errs.Add("proxy.http_port", "must be between 0 and 65535")
	}
	if cfg.Proxy.HTTPSPort < 0 || cfg.Proxy.HTTPSPort > 65535 {
		errs.Add("proxy.https_port", "must be between 0 and 65535")
	}
	if cfg.Proxy.TLSTailscale && cfg.Proxy.Backend == "traefik" {
		errs.Add("proxy.tls_tailscale", "only supported with the builtin backend")
	}
}

func (v *Validator) validateServices(cfg *Config, errs *ValidationError) {
	seenNames := make(map[string]bool)

	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)

		switch {
		case svc.Name == "":
			errs.Add(prefix+".name", "is required")
		case !namePattern.MatchString(svc.Name):
			errs.Add(prefix+".name", fmt.Sprintf("invalid service name '%s'", svc.Name))
		case seenNames[svc.Name]:
			errs.Add(prefix+".name", fmt.Sprintf("duplicate service name '%s'", svc.Name))
		default:
			seenNames[svc.Name] = true
		}

		if svc.Command == "" && svc.StartCommand == "" {
			errs.Add(prefix+".command", "command or start_command is required")
		}
		if svc.Command != "" && svc.StartCommand != "" {
			errs.Add(prefix+".start_command", "cannot be combined with command")
		}
		if svc.Port < 0 || svc.Port > 65535 {
			errs.Add(prefix+".port", "must be between 0 and 65535")
		}
	}
}

func (v *Validator) validateScripts(cfg *Config, errs *ValidationError) {
	seenNames := make(map[string]bool)

	for i, s := range cfg.Scripts {
		prefix := fmt.Sprintf("scripts[%d]", i)

		switch {
		case s.Name == "":
			errs.Add(prefix+".name", "is required")
		case !namePattern.MatchString(s.Name):
			errs.Add(prefix+".name", fmt.Sprintf("invalid script name '%s'", s.Name))
		case seenNames[s.Name]:
			errs.Add(prefix+".name", fmt.Sprintf("duplicate script name '%s'", s.Name))
		default:
			seenNames[s.Name] = true
		}

		if s.Command == "" {
			errs.Add(prefix+".command", "is required")
		}
		if s.Timeout != "" {
			validatePositiveDuration(prefix+".timeout", s.Timeout, errs)
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	fields := []struct {
		name  string
		value string
	}{
		{"supervisor.stop_timeout", cfg.Supervisor.StopTimeout},
		{"supervisor.ready_timeout", cfg.Supervisor.ReadyTimeout},
		{"supervisor.ready_grace", cfg.Supervisor.ReadyGrace},
		{"git.timeout", cfg.Git.Timeout},
		{"scripts_timeout", cfg.ScriptsTimeout},
		{"events.history.max_age", cfg.Events.History.MaxAge},
		{"watch.debounce", cfg.Watch.Debounce},
	}
	for _, f := range fields {
		if f.value != "" {
			validatePositiveDuration(f.name, f.value, errs)
		}
	}
}

func validatePositiveDuration(field, value string, errs *ValidationError) {
	d, err := time.ParseDuration(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration '%s'", value))
		return
	}
	if d <= 0 {
		errs.Add(field, "must be positive")
	}
}
