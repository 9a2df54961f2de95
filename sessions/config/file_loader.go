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
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// FileSourceOptions holds options for creating a FileSource
type FileSourceOptions struct {
	CacheTTL       time.Duration
	Watch          bool
	SecretsManager SecretsManager
	Logger         *logger.Logger
}

// FileSource loads the configuration from a YAML file. The parsed result is
// cached; when Watch is set, writes to the file invalidate the cache.
type FileSource struct {
	path    string
	cache   *ConfigCache
	secrets SecretsManager
	logger  *logger.Logger

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileSource creates a FileSource and loads the file once so a broken
// configuration fails at startup.
func NewFileSource(ctx context.Context, path string, opts FileSourceOptions) (*FileSource, error) {
	log := opts.Logger
	if log == nil {
		log = logger.New("config")
	}

	s := &FileSource{
		path:    path,
		cache:   NewConfigCache(opts.CacheTTL),
		secrets: opts.SecretsManager,
		logger:  log,
		done:    make(chan struct{}),
	}

	if _, err := s.Config(ctx); err != nil {
		return nil, err
	}

	if opts.Watch {
		if err := s.watch(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Config returns the current configuration, reading the file on cache miss.
func (s *FileSource) Config(ctx context.Context) (*Config, error) {
	if cfg, ok := s.cache.Get(s.path); ok {
		return cfg, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", s.path, err)
	}

	cfg, err := load(ctx, data, s.secrets)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", s.path, err)
	}

	s.cache.Set(s.path, cfg)
	s.logger.Debug("Loaded configuration file", map[string]interface{}{
		"path":               s.path,
		"community_sessions": len(cfg.Community.Sessions),
		"enterprise_systems": len(cfg.Enterprise.Systems),
	})
	return cfg, nil
}

// Invalidate forces the next Config call to re-read the file.
func (s *FileSource) Invalidate() {
	s.cache.Invalidate(s.path)
}

// CacheStats returns cache statistics for this source.
func (s *FileSource) CacheStats() CacheStats {
	return s.cache.GetStats()
}

// Close stops the file watcher, if any.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

// watch invalidates the cache whenever the file is written, created or
// replaced. The directory is watched so editors that rename over the file
// are handled.
func (s *FileSource) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	s.watcher = w

	go func() {
		target := filepath.Clean(s.path)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				s.Invalidate()
				s.logger.Info("Configuration file changed, cache invalidated", map[string]interface{}{
					"path": s.path,
					"op":   event.Op.String(),
				})
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.WarnWithErr("Configuration watcher error", werr, nil)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// load parses a configuration document and resolves secret references.
func load(ctx context.Context, data []byte, secrets SecretsManager) (*Config, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := ResolveCredentials(ctx, cfg, secrets); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, ${VAR_NAME:-default} and $VAR_NAME; undefined
// variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// GenerateExampleConfigFile generates an example configuration file
func GenerateExampleConfigFile() string {
	return `# Session registry configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

version: "1.0"

community:
  sessions:
    local:
      host: ${WORKER_HOST:-localhost}
      port: 10000
      session_type: python
      auth_type: anonymous

enterprise:
  systems:
    prod:
      type: redis
      connection_url: ${CONTROLLER_REDIS_URL:-redis://localhost:6379/0}
      options:
        key_prefix: controller
      max_added_sessions: 5
    analytics:
      type: postgres
      connection_url: ${CONTROLLER_DATABASE_URL}
      credentials_secret_arn: ${CONTROLLER_SECRET_ARN}
      timeout_ms: 10000

discovery:
  refresh_interval: 0s
  max_concurrency: 4
  backoff_initial: 5s
  backoff_max: 5m
`
}
