package state

import (
	"context"
	"io"
)

// TraceStore records agent execution traces.
type TraceStore interface {
	StartTrace(ctx context.Context, start TraceStart) (*TraceHandle, error)
	CompleteTrace(ctx context.Context, h *TraceHandle, result TraceResult) error
	FailTrace(ctx context.Context, h *TraceHandle, errMsg string) error
}

// TraceReader serves recorded traces to the CLI and HTTP API.
type TraceReader interface {
	GetTrace(ctx context.Context, id string) (*Trace, error)
	ListTraces(ctx context.Context, filter TraceFilter) ([]Trace, error)
	ListChildTraces(ctx context.Context, parentID string) ([]Trace, error)
}

// DocumentStore persists generated documents.
type DocumentStore interface {
	CreateDocument(ctx context.Context, title, docType, content string, metadata map[string]any) (string, error)
}

// DocumentReader serves stored documents.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context, conversationID string, limit int) ([]Document, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes every persistence concern the application needs.
type Store interface {
	io.Closer
	Migrator
	TraceStore
	TraceReader
	DocumentStore
	DocumentReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store          = (*DB)(nil)
	_ TraceStore     = (*DB)(nil)
	_ TraceReader    = (*DB)(nil)
	_ DocumentStore  = (*DB)(nil)
	_ DocumentReader = (*DB)(nil)
)
