package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentFormatMarkdown is the only format documents are stored in.
const DocumentFormatMarkdown = "markdown"

// Document is a stored generated artifact.
type Document struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Title          string         `json:"title"`
	DocType        string         `json:"doc_type"`
	Content        string         `json:"content"`
	Format         string         `json:"format"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CreateDocument stores a markdown document and returns its ID. A string
// "conversation_id" in metadata links the document to its conversation.
func (db *DB) CreateDocument(ctx context.Context, title, docType, content string, metadata map[string]any) (string, error) {
	if title == "" || docType == "" {
		return "", fmt.Errorf("create document: title and type are required")
	}
	meta, err := marshalJSON(metadata, "{}")
	if err != nil {
		return "", fmt.Errorf("create document: encode metadata: %w", err)
	}
	conversationID, _ := metadata["conversation_id"].(string)

	id := uuid.New().String()
	_, err = db.Exec(ctx, `
		INSERT INTO documents (id, conversation_id, title, doc_type, content, format, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nullString(conversationID), title, docType, content, DocumentFormatMarkdown, meta, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

const documentColumns = `id, conversation_id, title, doc_type, content, format, metadata, created_at`

// GetDocument retrieves a document by ID. Returns nil if it does not exist.
func (db *DB) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocuments returns documents newest first. An empty conversationID
// lists every conversation.
func (db *DB) ListDocuments(ctx context.Context, conversationID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = defaultTraceLimit
	}
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

func scanDocument(s scanner) (*Document, error) {
	var d Document
	var conversationID sql.NullString
	var meta, createdAt string
	if err := s.Scan(&d.ID, &conversationID, &d.Title, &d.DocType, &d.Content, &d.Format, &meta, &createdAt); err != nil {
		return nil, err
	}
	d.ConversationID = conversationID.String
	d.CreatedAt, _ = parseTime(createdAt)
	if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &d, nil
}
