// Package ingestion defines the event payload consumed from the trace topic
// and the records derived from each referenced document.
package ingestion

import (
	"fmt"
	"strings"
)

// DocumentReference is the JSON payload of one event. It points at a
// document in object storage.
type DocumentReference struct {
	FolderPath string `json:"folderPath" validate:"required,notblank"`
	Filename   string `json:"filename" validate:"required,notblank"`
}

// ObjectName returns the storage object path of the referenced document.
func (r DocumentReference) ObjectName() string {
	folder := strings.ReplaceAll(strings.TrimSpace(r.FolderPath), "\\", "/")
	folder = strings.TrimRight(folder, "/")
	name := strings.TrimSpace(r.Filename)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// DocumentName is the name used as the identifier prefix for the document's
// content units.
func (r DocumentReference) DocumentName() string {
	return strings.TrimSpace(r.Filename)
}

// ContentUnit is one Q&A block extracted from a document. Index is stable
// for identical document text.
type ContentUnit struct {
	Index         int
	Text          string
	Title         string
	ResponseCount int
}

// Identifier builds the deterministic primary key of a content unit.
func Identifier(documentName string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentName, index)
}

// Sentiment is a probability distribution over three polarity classes.
type Sentiment struct {
	Negative float64
	Neutral  float64
	Positive float64
}

// Record is an enriched, embedded content unit ready for the vector store.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Metadata keys attached to every record.
const (
	MetaQuestion          = "question"
	MetaSourceFile        = "source_file"
	MetaChunkID           = "chunk_id"
	MetaCommentCount      = "comment_count"
	MetaSentimentNegative = "sentiment_negative"
	MetaSentimentNeutral  = "sentiment_neutral"
	MetaSentimentPositive = "sentiment_positive"
	MetaText              = "text"
)
