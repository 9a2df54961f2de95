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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	gocache "github.com/patrickmn/go-cache"

	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// SecretsManager provides an interface for retrieving secrets
// This allows for different implementations (AWS Secrets Manager, local map, etc.)
type SecretsManager interface {
	GetSecret(ctx context.Context, secretARN string) (map[string]string, error)
}

// secretsManagerAPI is the subset of the AWS client used here.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsManagerAPI
	cache  *gocache.Cache
	logger *logger.Logger
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newAWSSecretsManager(client secretsManagerAPI, opts AWSSecretsManagerOptions) *AWSSecretsManager {
	log := opts.Logger
	if log == nil {
		log = logger.New("secrets")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSSecretsManager{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		logger: log,
	}
}

// GetSecret retrieves a secret from AWS Secrets Manager.
// The secret value is expected to be a JSON object with string values; any
// other payload is returned under the "value" key.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	if v, found := s.cache.Get(secretARN); found {
		return copyStrings(v.(map[string]string)), nil
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	var credentials map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &credentials); err != nil {
		credentials = map[string]string{"value": *result.SecretString}
	}

	s.cache.SetDefault(secretARN, credentials)
	s.logger.Debug("Retrieved and cached secret", map[string]interface{}{"secret": maskARN(secretARN)})
	return copyStrings(credentials), nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(secretARN string) {
	s.cache.Delete(secretARN)
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// LocalSecretsManager implements SecretsManager from an in-memory map.
// Useful for development and tests.
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
}

// NewLocalSecretsManager creates a local secrets manager for development
func NewLocalSecretsManager() *LocalSecretsManager {
	return &LocalSecretsManager{secrets: make(map[string]map[string]string)}
}

// GetSecret retrieves a secret from local storage
func (s *LocalSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[secretARN]; exists {
		return copyStrings(secret), nil
	}
	return nil, fmt.Errorf("secret %s not found in local secrets manager", maskARN(secretARN))
}

// SetSecret stores a secret locally
func (s *LocalSecretsManager) SetSecret(secretARN string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretARN] = copyStrings(value)
}

// ResolveCredentials fills the credentials of every enterprise system that
// references a secret. Keys set explicitly in the document win over keys
// from the secret.
func ResolveCredentials(ctx context.Context, cfg *Config, secrets SecretsManager) error {
	for name, sys := range cfg.Enterprise.Systems {
		if sys.CredentialsSecretARN == "" {
			continue
		}
		if secrets == nil {
			return fmt.Errorf("enterprise system '%s' references a secret but no secrets manager is configured", name)
		}
		values, err := secrets.GetSecret(ctx, sys.CredentialsSecretARN)
		if err != nil {
			return fmt.Errorf("enterprise system '%s': %w", name, err)
		}
		merged := make(map[string]string, len(values)+len(sys.Credentials))
		for k, v := range values {
			merged[k] = v
		}
		for k, v := range sys.Credentials {
			merged[k] = v
		}
		sys.Credentials = merged
		cfg.Enterprise.Systems[name] = sys
	}
	return nil
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
