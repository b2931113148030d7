// Command retrieve runs a single context retrieval against the configured
// knowledge base and prints the result as JSON.
//
// Usage:
//
//	go run ./cmd/retrieve -q "refund policy" [-n 3] [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	query := flag.String("q", "", "query text")
	n := flag.Int("n", rag.DefaultResults, "number of sources")
	file := flag.String("file", "", "knowledge-base file; overrides knowledge.path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays valid JSON.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))

	path := cfg.Knowledge.Path
	if *file != "" {
		path = *file
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, _ := rag.Bootstrap(ctx, knowledge.NewFileSource(path))
	rag.SetDefault(r)

	out := rag.RetrieveContext(ctx, *query, *n)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if !out.IsWorking {
		os.Exit(2)
	}
}
