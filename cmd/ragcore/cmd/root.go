// Package cmd provides the CLI commands for ragcore.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calyptra/ragcore/internal/config"
	"github.com/calyptra/ragcore/internal/embed"
	"github.com/calyptra/ragcore/internal/logging"
	"github.com/calyptra/ragcore/internal/store"
	"github.com/calyptra/ragcore/internal/vector"
	"github.com/calyptra/ragcore/pkg/retriever"
	"github.com/calyptra/ragcore/pkg/version"
)

// rootOptions are the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
	dataDir    string
	debug      bool
}

var rootOpts rootOptions

// NewRootCmd creates the root command for the ragcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragcore",
		Short: "Local hybrid retrieval over plain-text documents",
		Long: `ragcore indexes plain-text documents and retrieves context for them
with hybrid search: BM25 keyword matching fused with semantic
embeddings via Reciprocal Rank Fusion.

Everything runs locally; indexed data lives under the data directory
(default .ragcore).`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("ragcore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&rootOpts.dataDir, "data", ".ragcore", "Data directory for index files")
	cmd.PersistentFlags().BoolVar(&rootOpts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the config file (or defaults) and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootOpts.configPath)
	if err != nil {
		return nil, err
	}
	if rootOpts.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogging configures slog from cfg for CLI runs. Logs go to a file
// under the data directory so they never mix with command output.
func setupLogging(cfg *config.Config) func() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = false
	logCfg.FilePath = cfg.Logging.FilePath
	if logCfg.FilePath == "" {
		logCfg.FilePath = filepath.Join(rootOpts.dataDir, "ragcore.log")
	}
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		return cleanup
	}
	return func() {}
}

const vectorsFile = "vectors.hnsw"

// openRetriever wires a Retriever over the persistent stores in the data
// directory, loading the vector snapshot when one exists.
func openRetriever(cfg *config.Config) (*retriever.Retriever, *vector.HNSWStore, error) {
	if err := os.MkdirAll(rootOpts.dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	chunks, err := store.NewSQLiteStore(filepath.Join(rootOpts.dataDir, "metadata.db"))
	if err != nil {
		return nil, nil, err
	}

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Vector.CacheSize)

	vectors, err := vector.NewHNSWStore(vector.HNSWConfig{
		Dimensions: cfg.Vector.Dimensions,
		Metric:     cfg.Vector.Metric,
	})
	if err != nil {
		_ = chunks.Close()
		return nil, nil, err
	}
	snapshotPath := filepath.Join(rootOpts.dataDir, vectorsFile)
	if _, err := os.Stat(snapshotPath); err == nil {
		if err := vectors.Load(snapshotPath); err != nil {
			_ = chunks.Close()
			return nil, nil, fmt.Errorf("load vector snapshot: %w", err)
		}
	}

	r, err := retriever.New(cfg,
		retriever.WithChunkStore(chunks),
		retriever.WithVectorStore(vectors),
		retriever.WithEmbedder(embedder),
	)
	if err != nil {
		_ = chunks.Close()
		_ = vectors.Close()
		return nil, nil, err
	}
	return r, vectors, nil
}
