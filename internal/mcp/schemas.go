package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Full-text search over processed documents using FTS5 with BM25 relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query: bare terms, quoted phrases, AND/OR/NOT, trailing * for prefix, field:value scoping (filename, content, metadata, summary)",
					"maxLength":   500,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// vectorSearchTool returns the tool definition for vector_search
func vectorSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vector_search",
		Description: "Semantic similarity search over document chunks using embeddings",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query to embed and match against chunk vectors",
					"maxLength":   1000,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunk results to return (1-50)",
					"default":     10,
					"minimum":     1,
					"maximum":     50,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score (0.0-1.0); hits below it are excluded",
					"default":     0.5,
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// hybridSearchTool returns the tool definition for hybrid_search
func hybridSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "hybrid_search",
		Description: "Combined full-text and vector search with weighted score fusion and recency boost",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query run through every requested modality",
					"maxLength":   1000,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of fused results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"modalities": map[string]interface{}{
					"type":        "array",
					"description": "Modalities to search; defaults to both. A single modality bypasses fusion",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"fulltext", "vector"},
					},
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum vector similarity (0.0-1.0) applied to the vector modality",
					"default":     0.0,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, identical requests within the cache TTL return cached results",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// findDuplicatesTool returns the tool definition for find_duplicates
func findDuplicatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_duplicates",
		Description: "Find near-duplicate documents by embedding similarity, with classification",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "integer",
					"description": "Source document to compare against the rest of the corpus",
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity to report (0.7-1.0)",
					"default":     0.9,
					"minimum":     0.7,
					"maximum":     1.0,
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// checkDuplicateByHashTool returns the tool definition for check_duplicate_by_hash
func checkDuplicateByHashTool() mcp.Tool {
	return mcp.Tool{
		Name:        "check_duplicate_by_hash",
		Description: "Check for exact duplicates of a document by content hash",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "integer",
					"description": "Document whose content hash is checked against non-deleted documents",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// archiveDocumentTool returns the tool definition for archive_document
func archiveDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "archive_document",
		Description: "Archive a completed document, removing it from the default search scope",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "integer",
					"description": "Completed document to archive; it stays retrievable by direct lookup",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// updateEmbeddingsTool returns the tool definition for update_embeddings
func updateEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_embeddings",
		Description: "Backfill embeddings for completed documents missing vectors under the current model",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// processPendingDocumentsTool returns the tool definition for process_pending_documents
func processPendingDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "process_pending_documents",
		Description: "Run the ingest pipeline for every uploaded document: extract, hash, chunk, embed, index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getDocumentStatisticsTool returns the tool definition for get_document_statistics
func getDocumentStatisticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document_statistics",
		Description: "Corpus statistics: document counts by status and category, chunk and embedding coverage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getSystemHealthTool returns the tool definition for get_system_health
func getSystemHealthTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_system_health",
		Description: "Health checks for the database, full-text index, and embedding model",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
