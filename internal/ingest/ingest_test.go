package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-intel/internal/chunker"
	"document-intel/internal/config"
	"document-intel/internal/embedding"
	"document-intel/internal/memstore"
	"document-intel/internal/models"
)

type fakeExtractor struct {
	text string
	meta models.DocumentMetadata
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ Source) (string, models.DocumentMetadata, error) {
	return f.text, f.meta, f.err
}

type fakeEmbedProvider struct {
	err error
}

func (f *fakeEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newPipeline(extractor Extractor, embedErr error) (*Pipeline, *memstore.Store) {
	st := memstore.New()
	provider := &fakeEmbedProvider{err: embedErr}
	batch := embedding.NewBatchClient(provider, 10)
	ch := chunker.New(config.ChunkingConfig{
		SimilarityThreshold: 0.55,
		ShortDocWords:       5000,
		MediumDocWords:      20000,
		ShortDocChunkWords:  350,
		MediumDocChunkWords: 250,
		LongDocChunkWords:   180,
	}, batch, nil)
	return NewPipeline(extractor, ch, batch, st), st
}

func sampleText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i += 10 {
		for j := 0; j < 10; j++ {
			fmt.Fprintf(&b, "word%d ", i+j)
		}
		b.WriteString(". ")
	}
	return b.String()
}

func TestIngestHappyPath(t *testing.T) {
	ctx := context.Background()
	p, st := newPipeline(&fakeExtractor{text: sampleText(1000), meta: models.DocumentMetadata{Pages: 4}}, nil)

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "sample.txt", Title: "Sample"})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, models.StatusReady, doc.Status)
	assert.Equal(t, "Sample", doc.Title)
	assert.Equal(t, 4, doc.Metadata.Pages)
	assert.Positive(t, doc.Metadata.ChunkCount)
	assert.Positive(t, doc.Metadata.WordCount)
	assert.NotEmpty(t, doc.Metadata.Language)

	stored, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, stored.Status)

	chunks, err := st.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, doc.Metadata.ChunkCount)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestIngestPopulatesTopics(t *testing.T) {
	ctx := context.Background()
	text := strings.Repeat("Routing protocols exchange routing tables between routers. ", 20) +
		strings.Repeat("The network and the links are shared. ", 5)
	p, st := newPipeline(&fakeExtractor{text: text}, nil)

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "routing.txt", Title: "Routing"})
	require.NoError(t, err)

	require.NotEmpty(t, doc.Metadata.Topics)
	assert.Equal(t, "routing", doc.Metadata.Topics[0])
	assert.NotContains(t, doc.Metadata.Topics, "the")
	assert.NotContains(t, doc.Metadata.Topics, "and")
	assert.LessOrEqual(t, len(doc.Metadata.Topics), 8)

	stored, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata.Topics, stored.Metadata.Topics)
}

func TestIngestExtractionError(t *testing.T) {
	ctx := context.Background()
	p, st := newPipeline(&fakeExtractor{err: errors.New("corrupt file")}, nil)

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "broken.pdf", Title: "Broken"})
	require.Error(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Contains(t, doc.Error, "corrupt file")

	stored, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestIngestEmptyExtraction(t *testing.T) {
	ctx := context.Background()
	p, st := newPipeline(&fakeExtractor{text: "   \n  "}, nil)

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "blank.txt", Title: "Blank"})
	assert.ErrorIs(t, err, models.ErrExtractionEmpty)
	assert.Equal(t, models.StatusError, doc.Status)

	chunks, err := st.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIngestEmbeddingFailureStoresChunksWithoutVectors(t *testing.T) {
	ctx := context.Background()
	p, st := newPipeline(&fakeExtractor{text: sampleText(500)}, errors.New("embedding service down"))

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "sample.txt", Title: "Sample"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, doc.Status)

	chunks, err := st.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Empty(t, c.Embedding)
	}

	// Lexical search still reaches the document.
	hits, err := st.LexicalSearch(ctx, "word42", []string{doc.ID}, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestReingestReplacesChunks(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{text: sampleText(800)}
	p, st := newPipeline(extractor, nil)

	doc, err := p.Ingest(ctx, Source{Kind: models.SourceFile, Path: "sample.txt", Title: "Sample"})
	require.NoError(t, err)

	before, err := st.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)

	extractor.text = "Completely new content in a single short sentence."
	require.NoError(t, p.Reingest(ctx, doc.ID, Source{Kind: models.SourceFile, Path: "sample.txt"}))

	after, err := st.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotEqual(t, len(before), len(after))
	assert.Contains(t, after[0].Text, "Completely new content")

	stored, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, stored.Status)
	assert.Equal(t, 1, stored.Metadata.ChunkCount)
}

func TestReingestUnknownDocument(t *testing.T) {
	p, _ := newPipeline(&fakeExtractor{text: "text"}, nil)
	err := p.Reingest(context.Background(), "missing", Source{})
	assert.Error(t, err)
}
