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

// Package main implements the sessionhub service and its admin CLI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Every flag is bound to v so it can
// also be set from a SESSIONHUB_* environment variable.
func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sessionhub",
		Short:   "Session registry for community and enterprise workers",
		Long:    `sessionhub keeps a registry of statically configured community sessions and enterprise sessions discovered from each system's controller.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(v)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "sessionhub.yaml", "configuration source: path, file://, s3://, gs:// or azblob:// URI")
	flags.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("aws-region", "", "AWS region for S3 sources and Secrets Manager")
	flags.String("s3-endpoint", "", "custom S3 endpoint (e.g. MinIO)")
	flags.Bool("s3-path-style", false, "use path-style S3 addressing")
	flags.String("gcs-credentials", "", "GCS service account credentials file")
	flags.Bool("secrets-manager", false, "resolve credentials_secret_arn with AWS Secrets Manager")
	flags.Duration("config-cache-ttl", 5*time.Minute, "how long a loaded configuration is cached")
	bindFlags(v, rootCmd)

	v.SetEnvPrefix("SESSIONHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(serveCmd(v))
	rootCmd.AddCommand(sessionsCmd(v))
	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlags(cmd.PersistentFlags())
	_ = v.BindPFlags(cmd.Flags())
}
