package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Gemini = cfg.Gemini
	redact(&out.Gemini.APIKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Fusion.ContractUnitSources != nil {
		out.Fusion.ContractUnitSources = make([]string, len(cfg.Fusion.ContractUnitSources))
		copy(out.Fusion.ContractUnitSources, cfg.Fusion.ContractUnitSources)
	}
	if cfg.Fusion.DeepSources != nil {
		out.Fusion.DeepSources = make([]string, len(cfg.Fusion.DeepSources))
		copy(out.Fusion.DeepSources, cfg.Fusion.DeepSources)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
