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

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/deephaven/deephaven-mcp-sub000/controllers/store"
	"github.com/deephaven/deephaven-mcp-sub000/sessions/config"
	"github.com/deephaven/deephaven-mcp-sub000/shared/logger"
)

// Defaults for the catalog location.
const (
	DefaultDatabase   = "controller"
	DefaultCollection = "persistent_queries"
)

// queryDocument is the catalog document shape.
type queryDocument struct {
	Name  string `bson:"name"`
	Host  string `bson:"host"`
	Port  int    `bson:"port"`
	State string `bson:"state"`
}

func (d queryDocument) info() store.QueryInfo {
	return store.QueryInfo{Name: d.Name, Host: d.Host, Port: d.Port, State: d.State}
}

// collection is the subset of *mongo.Collection the store uses.
type collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// Store reads the persistent-query catalog from a MongoDB collection.
type Store struct {
	source string
	coll   collection
	ping   func(ctx context.Context) error
	close  func(ctx context.Context) error
	logger *logger.Logger
}

// Open connects to the MongoDB controller of an enterprise system.
// connection_url is a mongodb:// URI; username and password credentials
// override those in the URI.
func Open(ctx context.Context, source string, cfg config.EnterpriseSystemConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.New("mongodb_controller")
	}
	clientOpts := clientOptions(cfg)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := cfg.StringOption("database", DefaultDatabase)
	collName := cfg.StringOption("collection", DefaultCollection)
	s := &Store{
		source: source,
		coll:   client.Database(database).Collection(collName),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close:  client.Disconnect,
		logger: log,
	}
	log.Info("Connected to MongoDB controller", map[string]interface{}{
		"source":     source,
		"database":   database,
		"collection": collName,
	})
	return s, nil
}

func clientOptions(cfg config.EnterpriseSystemConfig) *options.ClientOptions {
	opts := options.Client().ApplyURI(cfg.ConnectionURL)
	opts.SetConnectTimeout(cfg.Timeout())
	opts.SetServerSelectionTimeout(cfg.Timeout())
	opts.SetMaxPoolSize(5)
	opts.SetAppName(cfg.StringOption("app_name", "sessionhub"))
	opts.SetRetryReads(true)

	user, hasUser := cfg.Credentials["username"]
	password := cfg.Credentials["password"]
	if hasUser && user != "" {
		opts.SetAuth(options.Credential{
			Username:   user,
			Password:   password,
			AuthSource: cfg.StringOption("auth_source", "admin"),
		})
	}
	return opts
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// ListQueries returns every catalog entry ordered by name.
func (s *Store) ListQueries(ctx context.Context) ([]store.QueryInfo, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer cursor.Close(ctx)

	var out []store.QueryInfo
	for cursor.Next(ctx) {
		var doc queryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode catalog document: %w", err)
		}
		out = append(out, doc.info())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return out, nil
}

// GetQuery returns one catalog entry.
func (s *Store) GetQuery(ctx context.Context, name string) (*store.QueryInfo, error) {
	var doc queryDocument
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up '%s': %w", name, err)
	}
	q := doc.info()
	return &q, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.close(ctx)
}

var _ store.Store = (*Store)(nil)
