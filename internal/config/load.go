// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: AUTHGATE_TOKEN__SECRET sets token.secret.
const EnvPrefix = "AUTHGATE_"

// LoadOptions selects the sources Load reads besides the defaults.
type LoadOptions struct {
	// File is an optional YAML file. It is validated against the schema
	// before it is merged.
	File string
	// Flags holds command-line overrides. Only flags the user set are
	// applied; their names are koanf keys such as "http.addr".
	Flags *pflag.FlagSet
	// SkipValidation returns the merged configuration without running
	// Validate. Callers check the fields they use.
	SkipValidation bool
}

// Load layers defaults, the YAML file, AUTHGATE_ environment variables and
// changed flags, in that order, then validates the result unless
// SkipValidation is set.
func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return Config{}, oops.Code("CONFIG_SCHEMA_INVALID").With("file", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps AUTHGATE_HTTP__CLIENT_URL to http.client_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
