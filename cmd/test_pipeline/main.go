package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kansofy/docintel-mcp/internal/chunker"
	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/index"
	"github.com/kansofy/docintel-mcp/internal/ingest"
	"github.com/kansofy/docintel-mcp/internal/query"
	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// Manual integration probe: runs a document through the full pipeline
// against an in-memory database and searches for it both ways.
func main() {
	fmt.Println("Testing ingest pipeline integration...")

	tmpDir, err := os.MkdirTemp("", "docintel-test-*")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	testFile := tmpDir + "/report.txt"
	testContent := `Quarterly operations report with findings and analysis.
Container throughput grew by 12 percent over the prior quarter.
Berth utilization stayed above target despite two weather closures.`
	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		log.Fatalf("Failed to write test file: %v", err)
	}

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	emb, err := embedder.NewLocalProvider("", embedder.NewCache(100))
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	spans, err := chunker.New(128, 16)
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Store:    store,
		Embedder: emb,
		Chunker:  spans,
		Index:    index.NewSync(store),
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	ctx := context.Background()
	doc := &types.Document{
		Filename:         "report.txt",
		OriginalFilename: "report.txt",
		FilePath:         testFile,
		FileSize:         int64(len(testContent)),
		ContentType:      "text/plain",
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		log.Fatalf("Failed to create document: %v", err)
	}

	result, err := pipeline.ProcessDocument(ctx, doc.ID)
	if err != nil {
		log.Fatalf("Failed to process document: %v", err)
	}

	fmt.Printf("\nProcessing Result:\n")
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Embedded: %d\n", result.Embedded)
	fmt.Printf("  Category: %s\n", result.Category)
	fmt.Printf("  Duration: %v\n", result.Duration)

	engine := query.NewEngine(store, emb, query.DefaultPolicy())

	textHits, err := engine.SearchFulltext(ctx, "throughput", 5)
	if err != nil {
		log.Fatalf("Full-text search failed: %v", err)
	}
	fmt.Printf("\nFull-text hits: %d\n", len(textHits))

	resp, err := engine.Search(ctx, query.Request{Query: "container throughput growth", Limit: 5})
	if err != nil {
		log.Fatalf("Hybrid search failed: %v", err)
	}
	fmt.Printf("Hybrid hits: %d (state %s, policy %s)\n", len(resp.Results), resp.State, resp.Policy)

	if len(textHits) > 0 && len(resp.Results) > 0 {
		fmt.Println("\n✓ SUCCESS: Document processed, indexed, and searchable!")
	} else {
		fmt.Println("\n✗ FAILURE: Document not searchable after processing!")
		os.Exit(1)
	}
}
