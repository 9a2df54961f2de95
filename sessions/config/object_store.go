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
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// ClosableSource is a Source holding resources (watchers, SDK clients).
type ClosableSource interface {
	Source
	Close() error
}

// OpenOptions configures OpenSource. Object store fields are ignored for
// local files.
type OpenOptions struct {
	FileSourceOptions

	// S3
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool

	// GCS
	GCSCredentialsFile string
}

// OpenSource opens a configuration source by URI. Supported schemes are
// file (or a bare path), s3://bucket/key, gs://bucket/object and
// azblob://account/container/blob.
func OpenSource(ctx context.Context, uri string, opts OpenOptions) (ClosableSource, error) {
	loc, err := parseLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.scheme {
	case "file":
		return NewFileSource(ctx, loc.key, opts.FileSourceOptions)
	case "s3":
		return NewS3Source(ctx, loc.bucket, loc.key, opts)
	case "gs":
		return NewGCSSource(ctx, loc.bucket, loc.key, opts)
	case "azblob":
		return NewAzureBlobSource(ctx, loc.account, loc.bucket, loc.key, opts)
	}
	return nil, fmt.Errorf("unsupported config source scheme %q", loc.scheme)
}

// location is a parsed source URI. For azblob, bucket holds the container.
type location struct {
	scheme  string
	account string
	bucket  string
	key     string
}

func parseLocation(uri string) (location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return location{}, fmt.Errorf("config source must not be empty")
		}
		return location{scheme: "file", key: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return location{}, fmt.Errorf("invalid config source %q: %w", uri, err)
	}
	path := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "file":
		p := u.Path
		if u.Host != "" {
			p = u.Host + u.Path
		}
		return location{scheme: "file", key: p}, nil
	case "s3", "gs":
		if u.Host == "" || path == "" {
			return location{}, fmt.Errorf("config source %q must be %s://bucket/key", uri, u.Scheme)
		}
		return location{scheme: u.Scheme, bucket: u.Host, key: path}, nil
	case "azblob":
		parts := strings.SplitN(path, "/", 2)
		if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return location{}, fmt.Errorf("config source %q must be azblob://account/container/blob", uri)
		}
		return location{scheme: "azblob", account: u.Host, bucket: parts[0], key: parts[1]}, nil
	}
	return location{}, fmt.Errorf("unsupported config source scheme %q", u.Scheme)
}

// objectFetcher downloads one configuration object.
type objectFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Close() error
}

// ObjectSource loads the configuration from an object store. Results are
// cached for CacheTTL; there is no change notification.
type ObjectSource struct {
	location string
	fetcher  objectFetcher
	cache    *ConfigCache
	secrets  SecretsManager
	logger   *logger.Logger
}

func newObjectSource(ctx context.Context, location string, fetcher objectFetcher, opts FileSourceOptions) (*ObjectSource, error) {
	log := opts.Logger
	if log == nil {
		log = logger.New("config")
	}
	s := &ObjectSource{
		location: location,
		fetcher:  fetcher,
		cache:    NewConfigCache(opts.CacheTTL),
		secrets:  opts.SecretsManager,
		logger:   log,
	}
	if _, err := s.Config(ctx); err != nil {
		_ = fetcher.Close()
		return nil, err
	}
	return s, nil
}

// Config returns the current configuration, downloading it on cache miss.
func (s *ObjectSource) Config(ctx context.Context) (*Config, error) {
	if cfg, ok := s.cache.Get(s.location); ok {
		return cfg, nil
	}

	start := time.Now()
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config %s: %w", s.location, err)
	}
	cfg, err := load(ctx, data, s.secrets)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", s.location, err)
	}

	s.cache.Set(s.location, cfg)
	s.logger.InfoWithDuration("Fetched configuration object", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"location": s.location,
	})
	return cfg, nil
}

// Invalidate forces the next Config call to download the object again.
func (s *ObjectSource) Invalidate() {
	s.cache.Invalidate(s.location)
}

// Close releases the underlying SDK client.
func (s *ObjectSource) Close() error {
	return s.fetcher.Close()
}

// s3GetObjectAPI is the subset of the S3 client used here.
type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Fetcher struct {
	client s3GetObjectAPI
	bucket string
	key    string
}

func (f *s3Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (f *s3Fetcher) Close() error { return nil }

// NewS3Source creates a source reading s3://bucket/key. Explicit keys in
// opts take precedence over the default AWS credential chain.
func NewS3Source(ctx context.Context, bucket, key string, opts OpenOptions) (*ObjectSource, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.ForcePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	fetcher := &s3Fetcher{client: s3.NewFromConfig(awsCfg, s3Options...), bucket: bucket, key: key}
	return newObjectSource(ctx, "s3://"+bucket+"/"+key, fetcher, opts.FileSourceOptions)
}

type gcsFetcher struct {
	client *storage.Client
	bucket string
	object string
}

func (f *gcsFetcher) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := f.client.Bucket(f.bucket).Object(f.object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (f *gcsFetcher) Close() error { return f.client.Close() }

// NewGCSSource creates a source reading gs://bucket/object.
func NewGCSSource(ctx context.Context, bucket, object string, opts OpenOptions) (*ObjectSource, error) {
	var clientOpts []option.ClientOption
	if opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCSCredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	fetcher := &gcsFetcher{client: client, bucket: bucket, object: object}
	return newObjectSource(ctx, "gs://"+bucket+"/"+object, fetcher, opts.FileSourceOptions)
}

type azureBlobFetcher struct {
	client    *azblob.Client
	container string
	blob      string
}

func (f *azureBlobFetcher) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := f.client.DownloadStream(ctx, f.container, f.blob, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (f *azureBlobFetcher) Close() error { return nil }

// NewAzureBlobSource creates a source reading a blob. The connection string
// in AZURE_STORAGE_CONNECTION_STRING is used when set, otherwise the
// default Azure credential chain.
func NewAzureBlobSource(ctx context.Context, account, container, blob string, opts OpenOptions) (*ObjectSource, error) {
	var (
		client *azblob.Client
		err    error
	)
	if connStr := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); connStr != "" {
		client, err = azblob.NewClientFromConnectionString(connStr, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", credErr)
		}
		serviceURL := opts.Endpoint
		if serviceURL == "" {
			serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	fetcher := &azureBlobFetcher{client: client, container: container, blob: blob}
	return newObjectSource(ctx, "azblob://"+account+"/"+container+"/"+blob, fetcher, opts.FileSourceOptions)
}
