package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kansofy/docintel-mcp/internal/embedder"
	"github.com/kansofy/docintel-mcp/internal/ingest"
	"github.com/kansofy/docintel-mcp/internal/query"
	"github.com/kansofy/docintel-mcp/internal/storage"
	"github.com/kansofy/docintel-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound = -32001 // Document does not exist or is deleted
	ErrorCodePipelineBusy     = -32002 // Another pipeline operation is already running
	ErrorCodeNoEmbeddings     = -32003 // Document has no embeddings under the current model
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

// Limits enforced at the tool boundary, before domain validation.
const (
	maxSearchQueryLength = 500
	maxVectorQueryLength = 1000
	maxVectorLimit       = 50
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	q, ok := args["query"].(string)
	if !ok || q == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	if len(q) > maxSearchQueryLength {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("query exceeds %d characters", maxSearchQueryLength), map[string]interface{}{
			"param": "query",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.engine.SearchFulltext(ctx, q, limit)
	if err != nil {
		return nil, toolError("search failed", err)
	}

	documents := make([]map[string]interface{}, len(hits))
	for i, h := range hits {
		documents[i] = map[string]interface{}{
			"id":              h.DocumentID,
			"filename":        h.Filename,
			"relevance_score": h.Score,
			"snippet":         h.Snippet,
		}
	}

	response := map[string]interface{}{
		"query":         q,
		"results_count": len(documents),
		"documents":     documents,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleVectorSearch handles the vector_search tool invocation
func (s *Server) handleVectorSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	q, ok := args["query"].(string)
	if !ok || q == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	if len(q) > maxVectorQueryLength {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("query exceeds %d characters", maxVectorQueryLength), map[string]interface{}{
			"param": "query",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > maxVectorLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxVectorLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	threshold := getFloatDefault(args, "threshold", 0.5)
	if threshold < 0 || threshold > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between 0.0 and 1.0", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	hits, err := s.engine.SearchVector(ctx, q, limit, threshold)
	if err != nil {
		return nil, toolError("vector search failed", err)
	}

	results := make([]map[string]interface{}, len(hits))
	for i, h := range hits {
		results[i] = map[string]interface{}{
			"id":               h.DocumentID,
			"filename":         h.Filename,
			"chunk_index":      h.ChunkIndex,
			"similarity_score": h.Similarity,
			"preview":          h.Preview,
		}
	}

	response := map[string]interface{}{
		"query":         q,
		"threshold":     threshold,
		"results_count": len(results),
		"results":       results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleHybridSearch handles the hybrid_search tool invocation
func (s *Server) handleHybridSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	q, ok := args["query"].(string)
	if !ok || q == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	modalities, err := parseModalities(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
			"param": "modalities",
		})
	}

	req := query.Request{
		Query:      q,
		Limit:      getIntDefault(args, "limit", 10),
		Modalities: modalities,
		Threshold:  getFloatDefault(args, "threshold", 0),
		UseCache:   getBoolDefault(args, "use_cache", true),
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, toolError("hybrid search failed", err)
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"document_id":   r.DocumentID,
			"filename":      r.Filename,
			"fts_score":     r.FTSScore,
			"vector_score":  r.VectorScore,
			"recency_boost": r.RecencyBoost,
			"final_score":   r.FinalScore,
			"snippet":       r.Snippet,
		}
	}

	response := map[string]interface{}{
		"query":       q,
		"state":       resp.State,
		"policy":      resp.Policy,
		"cache_hit":   resp.CacheHit,
		"count":       len(results),
		"results":     results,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if len(resp.Degraded) > 0 {
		response["degraded"] = resp.Degraded
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindDuplicates handles the find_duplicates tool invocation
func (s *Server) handleFindDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := getDocumentID(args)
	if err != nil {
		return nil, err
	}

	threshold := getFloatDefault(args, "threshold", 0.9)
	if threshold < 0.7 || threshold > 1.0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between 0.7 and 1.0", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	source, err := s.storage.GetDocument(ctx, documentID)
	if err != nil {
		return nil, toolError("duplicate detection failed", err)
	}

	matches, err := s.detector.FindNear(ctx, documentID, threshold)
	if err != nil {
		return nil, toolError("duplicate detection failed", err)
	}

	response := map[string]interface{}{
		"source_document": map[string]interface{}{
			"id":       source.ID,
			"filename": source.Filename,
			"status":   source.Status,
		},
		"threshold":            threshold,
		"results_count":        len(matches),
		"potential_duplicates": matches,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCheckDuplicateByHash handles the check_duplicate_by_hash tool invocation
func (s *Server) handleCheckDuplicateByHash(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := getDocumentID(args)
	if err != nil {
		return nil, err
	}

	doc, matches, err := s.detector.CheckExact(ctx, documentID)
	if err != nil {
		return nil, toolError("exact duplicate check failed", err)
	}

	response := map[string]interface{}{
		"document_id":         documentID,
		"content_hash":        doc.ContentHash,
		"has_duplicate":       len(matches) > 0,
		"duplicate_documents": matches,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleArchiveDocument handles the archive_document tool invocation
func (s *Server) handleArchiveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := getDocumentID(args)
	if err != nil {
		return nil, err
	}

	if err := s.pipeline.ArchiveDocument(ctx, documentID); err != nil {
		return nil, toolError("archive failed", err)
	}

	response := map[string]interface{}{
		"document_id": documentID,
		"status":      types.StatusArchived,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateEmbeddings handles the update_embeddings tool invocation
func (s *Server) handleUpdateEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.pipeline.UpdateEmbeddings(ctx)
	if err != nil {
		return nil, toolError("embedding update failed", err)
	}

	response := map[string]interface{}{
		"status":            "completed",
		"documents_updated": stats.DocumentsUpdated,
		"processing_time":   stats.Duration.Seconds(),
		"model":             s.embed.Model(),
		"details": map[string]interface{}{
			"total_documents":        stats.TotalDocuments,
			"already_had_embeddings": stats.AlreadyHadEmbeddings,
			"newly_embedded":         stats.DocumentsUpdated,
			"chunks_embedded":        stats.ChunksEmbedded,
			"failed":                 stats.Failed,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleProcessPendingDocuments handles the process_pending_documents tool invocation
func (s *Server) handleProcessPendingDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.pipeline.ProcessPending(ctx)
	if err != nil {
		return nil, toolError("pending document processing failed", err)
	}

	response := map[string]interface{}{
		"status":             "completed",
		"processed":          stats.Processed,
		"duplicates":         stats.Duplicates,
		"failed":             stats.Failed,
		"processing_time_ms": stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDocumentStatistics handles the get_document_statistics tool invocation
func (s *Server) handleGetDocumentStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, toolError("failed to collect statistics", err)
	}

	response := map[string]interface{}{
		"total_documents": stats.TotalDocuments,
		"by_status":       stats.ByStatus,
		"by_category":     stats.ByCategory,
		"total_bytes":     stats.TotalBytes,
		"chunks":          stats.ChunkCount,
		"embeddings": map[string]interface{}{
			"total":              stats.EmbeddingCount,
			"documents_embedded": stats.EmbeddedDocs,
			"documents_complete": stats.CompletedDocs,
		},
		"indexed_documents": stats.IndexedDocs,
		"schema_version":    stats.SchemaVersion,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSystemHealth handles the get_system_health tool invocation
func (s *Server) handleGetSystemHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dbAccessible := true
	var schemaVersion string
	if stats, err := s.storage.Stats(ctx); err != nil {
		dbAccessible = false
	} else {
		schemaVersion = stats.SchemaVersion
	}

	ftsAvailable := s.index.Check(ctx) == nil

	// The probe text is constant so repeated health checks hit the
	// embedding cache.
	modelAvailable := true
	if _, err := s.embed.GenerateEmbedding(ctx, embedder.Request{Text: "health check"}); err != nil {
		modelAvailable = false
	}

	response := map[string]interface{}{
		"database_accessible":       dbAccessible,
		"fts_index_available":       ftsAvailable,
		"embedding_model_available": modelAvailable,
		"embedding": map[string]interface{}{
			"provider":  s.embed.Provider(),
			"model":     s.embed.Model(),
			"dimension": s.embed.Dimension(),
		},
		"storage": map[string]interface{}{
			"driver":         storage.DriverName,
			"build_mode":     storage.BuildMode,
			"vector_ext":     storage.VectorExtensionAvailable,
			"schema_version": schemaVersion,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toolError maps a domain error onto an MCP error code, carrying the
// machine-readable error kind in the data payload.
func toolError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, ingest.ErrPipelineBusy):
		code = ErrorCodePipelineBusy
	case errors.Is(err, types.ErrNoEmbeddings):
		code = ErrorCodeNoEmbeddings
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeDocumentNotFound
	case errors.Is(err, types.ErrInvalidInput):
		code = ErrorCodeInvalidParams
	}
	return newMCPError(code, message, map[string]interface{}{
		"kind":  types.ErrorKind(err),
		"error": err.Error(),
	})
}

// getDocumentID extracts the required document_id parameter.
func getDocumentID(args map[string]interface{}) (int64, error) {
	val, ok := args["document_id"].(float64)
	if !ok || val != float64(int64(val)) || val <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, "document_id must be a positive integer", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or not a positive integer",
		})
	}
	return int64(val), nil
}

// parseModalities extracts the optional modalities array.
func parseModalities(args map[string]interface{}) ([]query.Modality, error) {
	raw, ok := args["modalities"].([]interface{})
	if !ok {
		return nil, nil
	}
	modalities := make([]query.Modality, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("modalities entries must be strings")
		}
		modalities = append(modalities, query.Modality(s))
	}
	return modalities, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}
