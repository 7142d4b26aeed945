package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calyptra/ragcore/internal/embed"
	"github.com/calyptra/ragcore/internal/output"
	"github.com/calyptra/ragcore/internal/store"
	"github.com/calyptra/ragcore/internal/vector"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}

type indexStats struct {
	Documents int                  `json:"documents"`
	Chunks    int                  `json:"chunks"`
	Vectors   int                  `json:"vectors"`
	Listing   []store.DocumentMeta `json:"listing,omitempty"`
}

func runStats(cmd *cobra.Command, format string) error {
	dbPath := filepath.Join(rootOpts.dataDir, "metadata.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found under %s; run 'ragcore index' first", rootOpts.dataDir)
	}

	chunks, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = chunks.Close() }()

	docs, err := chunks.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	chunkCount, err := chunks.ChunkCount(cmd.Context())
	if err != nil {
		return err
	}

	vectorCount := 0
	snapshotPath := filepath.Join(rootOpts.dataDir, vectorsFile)
	if _, err := os.Stat(snapshotPath); err == nil {
		vectors, err := vector.NewHNSWStore(vector.HNSWConfig{Dimensions: embed.StaticDimensions})
		if err != nil {
			return err
		}
		if err := vectors.Load(snapshotPath); err != nil {
			return fmt.Errorf("load vector snapshot: %w", err)
		}
		vectorCount = vectors.Count()
		_ = vectors.Close()
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(indexStats{
			Documents: len(docs),
			Chunks:    chunkCount,
			Vectors:   vectorCount,
			Listing:   docs,
		})
	}

	out := output.New(cmd.OutOrStdout())
	out.KV("Documents", len(docs))
	out.KV("Chunks", chunkCount)
	out.KV("Vectors", vectorCount)
	for _, d := range docs {
		out.Status("", fmt.Sprintf("%s (%d chunks)", d.ID, d.ChunkCount))
	}
	return nil
}
