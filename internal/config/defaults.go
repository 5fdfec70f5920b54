package config

import "time"

// Defaults applied after decoding when the corresponding key is absent.
const (
	DefaultRootDir    = "nightly-root"
	DefaultRevision   = "1"
	DefaultAppVersion = "nightly"
	DefaultKeep       = 7
	DefaultCron       = "0 2 * * *"
)

func applyDefaults(cfg *Config) {
	if cfg.RootDir == "" {
		cfg.RootDir = DefaultRootDir
	}
	if cfg.Revision == "" {
		cfg.Revision = DefaultRevision
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = DefaultAppVersion
	}
	if cfg.Policy.Fetch == "" {
		cfg.Policy.Fetch = PolicyFailFast
	} else if p := NormalizeErrorPolicy(string(cfg.Policy.Fetch)); p != "" {
		cfg.Policy.Fetch = p
	}
	// Publish targets are independent channels; one failed upload should not
	// block the others.
	if cfg.Policy.Publish == "" {
		cfg.Policy.Publish = PolicyContinue
	} else if p := NormalizeErrorPolicy(string(cfg.Policy.Publish)); p != "" {
		cfg.Policy.Publish = p
	}
	if cfg.Retention.Keep == nil {
		keep := DefaultKeep
		cfg.Retention.Keep = &keep
	}
	if cfg.Retry.Mode == "" {
		cfg.Retry.Mode = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(cfg.Retry.Mode)); m != "" {
		cfg.Retry.Mode = m
	}
	if cfg.Retry.Initial == 0 {
		cfg.Retry.Initial = time.Second
	}
	if cfg.Retry.Max == 0 {
		cfg.Retry.Max = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == nil {
		n := 2
		cfg.Retry.MaxRetries = &n
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = DefaultCron
	}
	for i := range cfg.Publish {
		if cfg.Publish[i].Kind == PublishKindNATS && cfg.Publish[i].Subject == "" {
			cfg.Publish[i].Subject = "neon.nightly"
		}
	}
}

// KeepDays returns the effective retention count.
func (r RetentionConfig) KeepDays() int {
	if r.Keep == nil {
		return DefaultKeep
	}
	return *r.Keep
}
