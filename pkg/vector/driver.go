// Package vector provides interfaces and implementations for the semantic
// memory store: embedded facts, similarity search and deletion.
package vector

import (
	"context"
	"math"
)

// Document represents a stored fact with its embedding.
type Document struct {
	// ID is a unique identifier for the document (a uuid).
	ID string

	// UserID scopes the document to its owner.
	UserID string

	// Content is the fact text.
	Content string

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is cosine similarity (higher = more similar, 1 = identical).
	Score float32
}

// Filter narrows a query to a subset of documents.
type Filter struct {
	// UserID restricts results to one owner. Empty matches every document.
	UserID string
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding that
	// match the filter, most similar first.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is empty, zero or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
