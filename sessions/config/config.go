// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deephaven/deephaven-mcp-sub000/sessions/base"
)

// Controller type constants for enterprise systems.
const (
	ControllerRedis     = "redis"
	ControllerPostgres  = "postgres"
	ControllerMySQL     = "mysql"
	ControllerMongoDB   = "mongodb"
	ControllerCassandra = "cassandra"
)

// ValidControllerTypes is the list of supported enterprise controller types.
var ValidControllerTypes = []string{
	ControllerRedis,
	ControllerPostgres,
	ControllerMySQL,
	ControllerMongoDB,
	ControllerCassandra,
}

// IsValidControllerType checks if the given controller type is supported.
func IsValidControllerType(controllerType string) bool {
	for _, ct := range ValidControllerTypes {
		if ct == controllerType {
			return true
		}
	}
	return false
}

const (
	defaultTimeout         = 30 * time.Second
	defaultBackoffInitial  = 5 * time.Second
	defaultBackoffMax      = 5 * time.Minute
	defaultCommunityPort   = 10000
	defaultMaxAddedSession = 5
)

// Source provides the current configuration. Implementations may cache.
type Source interface {
	Config(ctx context.Context) (*Config, error)
}

// Config is the root structure of a configuration document.
type Config struct {
	Version    string           `yaml:"version"`
	Community  CommunityConfig  `yaml:"community"`
	Enterprise EnterpriseConfig `yaml:"enterprise"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
}

// CommunityConfig holds statically configured community sessions keyed by name.
type CommunityConfig struct {
	Sessions map[string]CommunitySessionConfig `yaml:"sessions,omitempty"`
}

// CommunitySessionConfig describes how to reach one community worker.
type CommunitySessionConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port,omitempty"`
	SessionType string `yaml:"session_type,omitempty"`
	AuthType    string `yaml:"auth_type,omitempty"`
	AuthToken   string `yaml:"auth_token,omitempty"`
	UseTLS      bool   `yaml:"use_tls,omitempty"`
	TimeoutMs   int    `yaml:"timeout_ms,omitempty"`
}

// Timeout returns the connect timeout, defaulting to 30s.
func (c CommunitySessionConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// EnterpriseConfig holds discoverable enterprise systems keyed by source name.
type EnterpriseConfig struct {
	Systems map[string]EnterpriseSystemConfig `yaml:"systems,omitempty"`
}

// EnterpriseSystemConfig describes how to reach the controller of one
// enterprise system.
type EnterpriseSystemConfig struct {
	Type                 string                 `yaml:"type"`
	ConnectionURL        string                 `yaml:"connection_url"`
	Credentials          map[string]string      `yaml:"credentials,omitempty"`
	CredentialsSecretARN string                 `yaml:"credentials_secret_arn,omitempty"`
	Options              map[string]interface{} `yaml:"options,omitempty"`
	TimeoutMs            int                    `yaml:"timeout_ms,omitempty"`
	MaxAddedSessions     int                    `yaml:"max_added_sessions,omitempty"`
}

// Timeout returns the controller operation timeout, defaulting to 30s.
func (c EnterpriseSystemConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// StringOption returns a string option or def when absent.
func (c EnterpriseSystemConfig) StringOption(key, def string) string {
	if v, ok := c.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// DiscoveryConfig tunes the background discovery of enterprise sessions.
type DiscoveryConfig struct {
	// RefreshInterval re-runs a full discovery pass periodically once the
	// first pass completed. Zero disables periodic passes; reads still
	// refresh on demand.
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty"`

	// MaxConcurrency bounds concurrent per-source queries. Zero is unbounded.
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`

	// BackoffInitial and BackoffMax bound how long on-demand refresh skips
	// a source after consecutive failures.
	BackoffInitial time.Duration `yaml:"backoff_initial,omitempty"`
	BackoffMax     time.Duration `yaml:"backoff_max,omitempty"`
}

// Parse expands environment variables in data, decodes it, applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Community.Sessions == nil {
		c.Community.Sessions = make(map[string]CommunitySessionConfig)
	}
	if c.Enterprise.Systems == nil {
		c.Enterprise.Systems = make(map[string]EnterpriseSystemConfig)
	}
	for name, s := range c.Community.Sessions {
		if s.Port == 0 {
			s.Port = defaultCommunityPort
		}
		if s.SessionType == "" {
			s.SessionType = "python"
		}
		c.Community.Sessions[name] = s
	}
	for name, s := range c.Enterprise.Systems {
		if s.MaxAddedSessions == 0 {
			s.MaxAddedSessions = defaultMaxAddedSession
		}
		if s.Credentials == nil {
			s.Credentials = make(map[string]string)
		}
		if s.Options == nil {
			s.Options = make(map[string]interface{})
		}
		c.Enterprise.Systems[name] = s
	}
	if c.Discovery.BackoffInitial == 0 {
		c.Discovery.BackoffInitial = defaultBackoffInitial
	}
	if c.Discovery.BackoffMax == 0 {
		c.Discovery.BackoffMax = defaultBackoffMax
	}
}

// Validate checks names, controller types and numeric ranges.
func (c *Config) Validate() error {
	for name, s := range c.Community.Sessions {
		if err := validateName("community session", name); err != nil {
			return err
		}
		if s.Host == "" {
			return fmt.Errorf("community session '%s' must specify a host", name)
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("community session '%s' has invalid port %d", name, s.Port)
		}
	}

	for name, s := range c.Enterprise.Systems {
		if err := validateName("enterprise system", name); err != nil {
			return err
		}
		if s.Type == "" {
			return fmt.Errorf("enterprise system '%s' must specify a type", name)
		}
		if !IsValidControllerType(s.Type) {
			return fmt.Errorf("enterprise system '%s' has invalid type '%s'", name, s.Type)
		}
		if s.ConnectionURL == "" {
			return fmt.Errorf("enterprise system '%s' must specify a connection_url", name)
		}
		if s.MaxAddedSessions < 0 {
			return fmt.Errorf("enterprise system '%s' max_added_sessions must be >= 0", name)
		}
	}

	d := c.Discovery
	if d.RefreshInterval < 0 || d.MaxConcurrency < 0 || d.BackoffInitial < 0 || d.BackoffMax < 0 {
		return fmt.Errorf("discovery settings must not be negative")
	}
	if d.BackoffMax < d.BackoffInitial {
		return fmt.Errorf("discovery backoff_max (%s) must be >= backoff_initial (%s)", d.BackoffMax, d.BackoffInitial)
	}
	return nil
}

func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name must not be empty", base.ErrInvalidName, kind)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: %s name '%s' must not contain ':'", base.ErrInvalidName, kind, name)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a cached config.
func (c *Config) Clone() *Config {
	out := *c
	out.Community.Sessions = make(map[string]CommunitySessionConfig, len(c.Community.Sessions))
	for k, v := range c.Community.Sessions {
		out.Community.Sessions[k] = v
	}
	out.Enterprise.Systems = make(map[string]EnterpriseSystemConfig, len(c.Enterprise.Systems))
	for k, v := range c.Enterprise.Systems {
		creds := make(map[string]string, len(v.Credentials))
		for ck, cv := range v.Credentials {
			creds[ck] = cv
		}
		opts := make(map[string]interface{}, len(v.Options))
		for ok, ov := range v.Options {
			opts[ok] = ov
		}
		v.Credentials = creds
		v.Options = opts
		out.Enterprise.Systems[k] = v
	}
	return &out
}

// StaticSource serves a fixed configuration. Useful for tests and embedding.
type StaticSource struct {
	cfg *Config
}

// NewStaticSource wraps cfg, applying defaults.
func NewStaticSource(cfg *Config) *StaticSource {
	c := cfg.Clone()
	c.ApplyDefaults()
	return &StaticSource{cfg: c}
}

// Config returns a copy of the wrapped configuration.
func (s *StaticSource) Config(ctx context.Context) (*Config, error) {
	return s.cfg.Clone(), nil
}
