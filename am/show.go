package am

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

const redacted = "********"

// Redacted returns a copy of cfg with secrets masked, for display.
func Redacted(cfg *Config) *Config {
	shown := *cfg
	if shown.Inference.APIKey != "" {
		shown.Inference.APIKey = redacted
	}
	if shown.Marks.Redis.Password != "" {
		shown.Marks.Redis.Password = redacted
	}
	return &shown
}

// Marshal renders the effective configuration as TOML with secrets redacted.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := toml.Marshal(Redacted(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config as toml")
	}
	return out, nil
}
