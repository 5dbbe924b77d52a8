// Command indexctl is the thin ingestion wrapper spec.md calls out-of-scope
// beyond "PDF text extraction and chunking": walk a directory of text/markdown
// files, chunk and embed each one, and upsert the resulting records into the
// fixed collection the session engine searches.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/knoguchi/docmemory/internal/config"
	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/ingestion"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

func main() {
	dir := flag.String("dir", "", "directory of .md/.txt files to ingest")
	recreate := flag.Bool("recreate", false, "drop and recreate the collection before ingesting")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: indexctl -dir <path> [-recreate]")
		os.Exit(2)
	}

	if err := run(*dir, *recreate); err != nil {
		slog.Error("indexctl failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string, recreate bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("connecting to Qdrant: %w", err)
	}
	defer store.Close()

	if recreate {
		exists, err := store.CollectionExists(ctx, cfg.Collection)
		if err != nil {
			return fmt.Errorf("checking collection: %w", err)
		}
		if exists {
			if err := store.DeleteCollection(ctx, cfg.Collection); err != nil {
				return fmt.Errorf("deleting collection: %w", err)
			}
		}
	}

	if exists, err := store.CollectionExists(ctx, cfg.Collection); err != nil {
		return fmt.Errorf("checking collection: %w", err)
	} else if !exists {
		if err := store.CreateHybridCollection(ctx, cfg.Collection, cfg.EmbeddingDimension); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}

	dense := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:    cfg.OllamaURL,
		Model:      cfg.OllamaEmbeddingModel,
		Dimension:  cfg.EmbeddingDimension,
		HTTPClient: &http.Client{Timeout: cfg.OracleTimeout},
	})
	sparse := embedder.NewBM25Vectorizer()

	pipeline := ingestion.NewPipeline(ingestion.PipelineConfig{
		Chunker: ingestion.ChunkerConfig{
			TargetWords: cfg.DefaultChunkTargetWords,
			MaxWords:    cfg.DefaultChunkMaxWords,
		},
	}, dense, sparse)

	files, err := collectFiles(dir)
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}

	var total int
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		title := titleFromFilename(rel)

		chunks, err := pipeline.Process(ctx, rel, title, string(raw))
		if err != nil {
			slog.Warn("skipping file", "file", rel, "error", err)
			continue
		}

		if err := store.Upsert(ctx, cfg.Collection, chunks); err != nil {
			return fmt.Errorf("upserting %s: %w", rel, err)
		}

		total += len(chunks)
		slog.Info("indexed file", "file", rel, "chunks", len(chunks))
	}

	slog.Info("ingestion complete", "files", len(files), "chunks", total)
	return nil
}

func collectFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".md" || ext == ".txt" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func titleFromFilename(rel string) string {
	base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")

	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
