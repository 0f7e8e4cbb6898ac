// Package mcp implements the Model Context Protocol (MCP) server for the
// document intelligence store.
//
// The server exposes ten tools to MCP clients over stdio:
//   - search_documents: full-text search with BM25 relevance and snippets
//   - vector_search: semantic chunk search over stored embeddings
//   - hybrid_search: fused full-text + vector ranking under a scoring policy
//   - find_duplicates: near-duplicate detection with classification
//   - check_duplicate_by_hash: exact duplicate lookup by content hash
//   - archive_document: move a completed document out of search scope
//   - update_embeddings: embedding backfill for the current model
//   - process_pending_documents: run the ingest pipeline for uploaded docs
//   - get_document_statistics: corpus counts and coverage
//   - get_system_health: database, index, and model checks
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout is reserved for protocol messages; all logging goes to stderr.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors whose data payload carries a
// machine-readable kind alongside the message:
//
//	{
//	  "error": {
//	    "code": -32003,
//	    "message": "duplicate detection failed",
//	    "data": {"kind": "no_embeddings", "error": "..."}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Document not found or deleted
//   - -32002: Pipeline operation already running
//   - -32003: Document has no embeddings under the current model
//   - -32004: Query parameter is empty
//
// # MCP Client Configuration
//
// Configure in an MCP client's settings:
//
//	{
//	  "mcpServers": {
//	    "docintel": {
//	      "command": "/usr/local/bin/docintel",
//	      "env": {
//	        "DOCINTEL_DB_PATH": "/var/lib/docintel/docintel.db"
//	      }
//	    }
//	  }
//	}
package mcp
