// Package ingest runs the document ingestion pipeline: extract, chunk,
// embed, store. Failures here are terminal for the document (status
// error with a message) and are not retried automatically.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"document-intel/internal/chunker"
	"document-intel/internal/docstruct"
	"document-intel/internal/embedding"
	"document-intel/internal/models"
	"document-intel/internal/store"
)

// metadataTopicCount caps the topic list stored on the document record.
const metadataTopicCount = 8

// Source describes what to ingest. Extraction itself is an external
// collaborator behind the Extractor interface.
type Source struct {
	Kind    string
	Path    string
	Title   string
	OwnerID string
}

// Extractor turns a source descriptor into raw text plus whatever
// metadata the extraction backend knows (pages, language).
type Extractor interface {
	Extract(ctx context.Context, src Source) (string, models.DocumentMetadata, error)
}

type Pipeline struct {
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  *embedding.BatchClient
	store     store.Store
}

func NewPipeline(extractor Extractor, ch *chunker.Chunker, embedder *embedding.BatchClient, st store.Store) *Pipeline {
	return &Pipeline{extractor: extractor, chunker: ch, embedder: embedder, store: st}
}

// Ingest creates a document record and runs the pipeline for it. The
// returned document reflects the final status; the error mirrors it for
// callers that branch on failure.
func (p *Pipeline) Ingest(ctx context.Context, src Source) (*models.Document, error) {
	doc := &models.Document{
		ID:         uuid.NewString(),
		Title:      src.Title,
		SourceKind: src.Kind,
		Status:     models.StatusProcessing,
		OwnerID:    src.OwnerID,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	if err := p.run(ctx, doc, src); err != nil {
		return doc, err
	}
	return doc, nil
}

// Reingest re-extracts a known document and atomically replaces its
// chunk set.
func (p *Pipeline) Reingest(ctx context.Context, documentID string, src Source) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := p.store.SetDocumentStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		return err
	}
	return p.run(ctx, doc, src)
}

func (p *Pipeline) run(ctx context.Context, doc *models.Document, src Source) error {
	text, meta, err := p.extractor.Extract(ctx, src)
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("extraction failed: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return p.fail(ctx, doc, models.ErrExtractionEmpty)
	}

	chunks, err := p.chunker.Chunk(ctx, doc.ID, text)
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("chunking failed: %w", err))
	}
	if len(chunks) == 0 {
		// Chunk store left untouched.
		return p.fail(ctx, doc, models.ErrNoChunksCreated)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		// Chunks are still stored without vectors so lexical retrieval
		// keeps working; vector search will simply miss this document.
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("Chunk embedding failed, storing chunks without vectors")
	} else {
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}

	if err := p.store.UpsertChunks(ctx, doc.ID, chunks); err != nil {
		return p.fail(ctx, doc, fmt.Errorf("storing chunks: %w", err))
	}

	meta.ChunkCount = len(chunks)
	meta.WordCount = len(strings.Fields(text))
	meta.Topics = docstruct.KeyTopics(chunks, metadataTopicCount)
	if meta.Language == "" {
		meta.Language = chunks[0].Language
	}
	if err := p.store.SetDocumentMetadata(ctx, doc.ID, meta); err != nil {
		return p.fail(ctx, doc, fmt.Errorf("storing metadata: %w", err))
	}
	if err := p.store.SetDocumentStatus(ctx, doc.ID, models.StatusReady, ""); err != nil {
		return err
	}

	doc.Status = models.StatusReady
	doc.Metadata = meta
	log.Info().Str("document_id", doc.ID).Int("chunks", len(chunks)).Msg("Document ingested")
	return nil
}

// fail marks the document as errored with a descriptive message and
// passes the cause through.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, cause error) error {
	doc.Status = models.StatusError
	doc.Error = cause.Error()
	if err := p.store.SetDocumentStatus(ctx, doc.ID, models.StatusError, cause.Error()); err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to record document error status")
	}
	return cause
}
