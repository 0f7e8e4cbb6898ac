// Package types defines the shared domain types for the document
// intelligence server: documents and their lifecycle, chunks, embeddings,
// extraction results, and the error values surfaced through tool responses.
//
// The package is import-cycle free by construction: it depends only on the
// standard library and is imported by every internal package.
package types
