package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/DocQA/internal/bootstrap"
	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/ragErrors"
	"github.com/akolanti/DocQA/internal/rag/ingest"
	"github.com/akolanti/DocQA/pkg/logger_i"
)

func main() {
	var (
		configPath string
		file       string
		collection string
	)
	flag.StringVar(&configPath, "config", "", "path to a yaml or toml config file")
	flag.StringVar(&file, "file", "", "document to index (pdf, docx, rtf, odt, txt, md)")
	flag.StringVar(&collection, "collection", "", "target collection, defaults to the configured one")
	flag.Parse()

	if err := run(configPath, file, collection); err != nil {
		fmt.Fprintln(os.Stderr, "reindex:", err)
		os.Exit(1)
	}
}

func run(configPath string, file string, collection string) error {
	if file == "" {
		return errors.New("-file is required")
	}
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger_i.Init(settings.Log.Level, settings.Log.JSON)
	logger := logger_i.NewLogger("reindex")

	if collection == "" {
		collection = settings.RAG.Collection
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, config.TRACE_ID_KEY, "reindex-cli")

	text, err := ingest.ExtractText(file)
	if err != nil {
		return err
	}

	app, err := bootstrap.Build(ctx, settings)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.RagService.Reindex(ctx, text, collection)
	if errors.Is(err, ragErrors.ErrNoEmbeddableContent) {
		logger.Error("Collection left empty", "collection", collection, "skipped", result.Skipped)
	}
	if err != nil {
		return err
	}
	logger.Info("Reindex complete", "collection", collection, "inserted", result.Inserted, "skipped", result.Skipped)
	fmt.Printf("indexed %d chunks into %q (%d skipped)\n", result.Inserted, collection, result.Skipped)
	return nil
}
