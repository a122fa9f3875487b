// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rum

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/z5labs/rum/config"

	bedrockcfg "github.com/z5labs/bedrock/config"
)

// ConfigSource wraps r, which must read YAML, into a [bedrockcfg.Source]
// for [LoadConfig]. The YAML may use Go template expressions with two
// functions available:
//   - env - substitutes the named environment variable, or nil when unset
//   - default - replaces a nil value with the given default
func ConfigSource(r io.Reader) bedrockcfg.Source {
	return bedrockcfg.FromYaml(
		bedrockcfg.RenderTextTemplate(
			r,
			bedrockcfg.TemplateFunc("env", func(key string) any {
				v, ok := os.LookupEnv(key)
				if ok {
					return v
				}
				return nil
			}),
			bedrockcfg.TemplateFunc("default", func(def, v any) any {
				if v == nil {
					return def
				}
				return v
			}),
		),
	)
}

//go:embed default_config.yaml
var defaultConfig []byte

// DefaultConfig returns the agent's embedded default configuration. It
// is meant to be the first source given to [LoadConfig] so later sources
// only need to state what differs.
func DefaultConfig() bedrockcfg.Source {
	return ConfigSource(bytes.NewReader(defaultConfig))
}

// Config defines the configuration of the agent.
type Config struct {
	RUM config.RUM `config:"rum"`
}

// LoadConfig reads and merges the given sources, later sources taking
// precedence, into a [Config].
func LoadConfig(srcs ...bedrockcfg.Source) (Config, error) {
	var cfg Config

	m, err := bedrockcfg.Read(srcs...)
	if err != nil {
		return cfg, fmt.Errorf("rum: read config: %w", err)
	}

	err = m.Unmarshal(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("rum: unmarshal config: %w", err)
	}
	return cfg, nil
}
