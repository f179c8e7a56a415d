package model

import (
	"time"

	"github.com/lacunalabs/lacuna/internal/ids"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusAnalyzing  DocumentStatus = "analyzing"
	StatusComplete   DocumentStatus = "complete"
	StatusError      DocumentStatus = "error"
)

type DocumentKind string

const (
	KindPDF  DocumentKind = "pdf"
	KindText DocumentKind = "text"
)

// Document is one ingested source. ContentHash is the dedup key; Status and
// Progress are mutated by the ingestion pipeline until the document reaches
// a terminal state (complete or error).
type Document struct {
	ID           ids.DocumentID `json:"id"`
	Name         string         `json:"name"`
	ContentHash  string         `json:"content_hash"`
	Size         int            `json:"size"`
	Kind         DocumentKind   `json:"kind"`
	Status       DocumentStatus `json:"status"`
	Progress     int            `json:"progress"` // 0-100
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TextChunk is an immutable slice of a document's text. Offsets are byte
// offsets into the original text, so Content == text[StartOffset:EndOffset].
type TextChunk struct {
	ID          ids.ChunkID    `json:"id"`
	DocumentID  ids.DocumentID `json:"document_id"`
	Content     string         `json:"content"`
	StartOffset int            `json:"start_offset"`
	EndOffset   int            `json:"end_offset"`
	ChunkIndex  int            `json:"chunk_index"`
}
