// Command indexer validates a knowledge-base file, reports the index it
// would build and, unless -dry-run is set, replaces the Postgres knowledge
// table with its documents.
//
// Usage:
//
//	go run ./cmd/indexer -file data/knowledgebase.json [-config configs/development.yaml] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	file := flag.String("file", "", "knowledge-base file (.json, .yaml or .yml); defaults to knowledge.path")
	dryRun := flag.Bool("dry-run", false, "validate and index without writing to postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("corpus-import")

	path := *file
	if path == "" {
		path = cfg.Knowledge.Path
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := knowledge.NewFileSource(path)
	docs, err := src.Load(ctx)
	if err != nil {
		log.Error("failed to load knowledge base", "path", path, "error", err)
		os.Exit(1)
	}
	st := indexer.NewEngine(docs).Status()
	log.Info("knowledge base indexed",
		"path", path,
		"documents", st.Documents,
		"vocabulary", st.Vocabulary,
		"fingerprint", st.Fingerprint,
	)
	if *dryRun {
		return
	}

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	if _, err := pg.DB.ExecContext(ctx, knowledge.Schema(cfg.Knowledge.Table)); err != nil {
		log.Error("failed to create knowledge table", "table", cfg.Knowledge.Table, "error", err)
		os.Exit(1)
	}
	if err := knowledge.Replace(ctx, pg, cfg.Knowledge.Table, docs); err != nil {
		log.Error("failed to import knowledge base", "table", cfg.Knowledge.Table, "error", err)
		os.Exit(1)
	}
	log.Info("knowledge base imported", "table", cfg.Knowledge.Table, "documents", len(docs))
}
