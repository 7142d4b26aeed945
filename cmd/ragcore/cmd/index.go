package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calyptra/ragcore/internal/output"
	"github.com/calyptra/ragcore/internal/store"
	"github.com/calyptra/ragcore/pkg/retriever"
)

// indexableExtensions are the plain-text formats the indexer accepts when
// walking a directory. Explicit file arguments bypass the filter.
var indexableExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".rst":      true,
	".adoc":     true,
}

func newIndexCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Index documents for retrieval",
		Long: `Index one or more files or directories.

Directories are walked recursively; only plain-text formats (.txt, .md,
.markdown, .rst, .adoc) are picked up. Files named explicitly are always
indexed. Re-indexing a file replaces its previous chunks.

Examples:
  ragcore index docs/
  ragcore index README.md notes.txt --workers 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args, workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent documents during indexing")

	return cmd
}

func runIndex(cmd *cobra.Command, paths []string, workers int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()

	docs, err := collectDocuments(paths)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no indexable documents under %s", strings.Join(paths, ", "))
	}

	// One writer at a time per data directory.
	lock := store.NewFileLock(rootOpts.dataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another ragcore process is writing to %s", rootOpts.dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	r, vectors, err := openRetriever(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	start := time.Now()
	results, err := r.IndexDocuments(cmd.Context(), docs, workers)
	if err != nil {
		return err
	}
	if err := vectors.Save(filepath.Join(rootOpts.dataDir, vectorsFile)); err != nil {
		return fmt.Errorf("save vector snapshot: %w", err)
	}

	chunkTotal := 0
	fallbacks := 0
	for _, res := range results {
		chunkTotal += res.ChunkCount
		if res.Fallback {
			fallbacks++
		}
	}
	out := output.New(cmd.OutOrStdout())
	out.Successf("Indexed %d documents (%d chunks) in %s",
		len(results), chunkTotal, time.Since(start).Round(time.Millisecond))
	if fallbacks > 0 {
		out.Warningf("%d documents fell back to fixed-size chunking", fallbacks)
	}
	return nil
}

// collectDocuments reads the given files and directories into Documents.
// The document ID is the cleaned path, so re-indexing is idempotent.
func collectDocuments(paths []string) ([]retriever.Document, error) {
	var docs []retriever.Document
	seen := make(map[string]bool)

	addFile := func(path string) error {
		path = filepath.Clean(path)
		if seen[path] {
			return nil
		}
		seen[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		docs = append(docs, retriever.Document{
			ID:        filepath.ToSlash(path),
			Title:     filepath.Base(path),
			FileType:  strings.TrimPrefix(filepath.Ext(path), "."),
			Content:   string(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := addFile(p); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != p {
					return filepath.SkipDir
				}
				return nil
			}
			if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			return addFile(path)
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}
