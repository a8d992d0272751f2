// Package db is the Postgres chunk store. Vector search uses pgvector
// cosine distance, lexical search uses Postgres full-text ranking.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-intel/internal/config"
	"document-intel/internal/models"
	"document-intel/internal/store"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:doc"`
	ID            string                  `bun:"id,pk"`
	Title         string                  `bun:"title"`
	SourceKind    string                  `bun:"source_kind"`
	Status        string                  `bun:"status,notnull"`
	Error         string                  `bun:"error"`
	Metadata      models.DocumentMetadata `bun:"metadata,type:jsonb"`
	OwnerID       string                  `bun:"owner_id"`
	CreatedAt     time.Time               `bun:"created_at,nullzero,default:now()"`
	UpdatedAt     time.Time               `bun:"updated_at,nullzero,default:now()"`
}

type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string `bun:"id,pk"`
	DocumentID    string `bun:"document_id,notnull"`
	Ordinal       int    `bun:"ordinal,notnull"`
	Text          string `bun:"text,notnull"`
	TokenCount    int    `bun:"token_count"`
	ContentHash   string `bun:"content_hash"`
	Page          int    `bun:"page"`
	Section       string `bun:"section"`
	// pgvector literal form "[0.1,0.2,...]"; parsed on read. Empty means
	// the chunk was stored without a vector and stays NULL.
	Embedding string `bun:"embedding,nullzero"`
	Language  string `bun:"language"`
}

// Store implements store.Store on bun/Postgres.
type Store struct {
	db *bun.DB
}

var _ store.Store = (*Store)(nil)

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// InitDB creates the pgvector extension, tables and search indexes.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*documentRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	// Raw DDL so the vector dimensionality follows the embedding model.
	chunksDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		ordinal BIGINT NOT NULL,
		text TEXT NOT NULL,
		token_count BIGINT,
		content_hash TEXT,
		page BIGINT,
		section TEXT,
		embedding vector(%d),
		language TEXT
	)`, vectorSize)
	if _, err := db.ExecContext(ctx, chunksDDL); err != nil {
		return err
	}
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS chunks_document_ordinal_idx ON chunks (document_id, ordinal)",
		"CREATE INDEX IF NOT EXISTS chunks_text_fts_idx ON chunks USING GIN (to_tsvector('simple', text))",
		"CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	row := &documentRow{
		ID:         doc.ID,
		Title:      doc.Title,
		SourceKind: doc.SourceKind,
		Status:     doc.Status,
		Error:      doc.Error,
		Metadata:   doc.Metadata,
		OwnerID:    doc.OwnerID,
	}
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := new(documentRow)
	err := s.db.NewSelect().Model(row).Where("doc.id = ?", id).Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Document{
		ID:         row.ID,
		Title:      row.Title,
		SourceKind: row.SourceKind,
		Status:     row.Status,
		Error:      row.Error,
		Metadata:   row.Metadata,
		OwnerID:    row.OwnerID,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (s *Store) SetDocumentStatus(ctx context.Context, id, status, message string) error {
	_, err := s.db.NewUpdate().
		Model((*documentRow)(nil)).
		Set("status = ?", status).
		Set("error = ?", message).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) SetDocumentMetadata(ctx context.Context, id string, meta models.DocumentMetadata) error {
	_, err := s.db.NewUpdate().
		Model((*documentRow)(nil)).
		Set("metadata = ?", meta).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpsertChunks deletes and reinserts the document's chunks inside one
// transaction so a re-ingested document never shows a partial chunk set.
func (s *Store) UpsertChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkRow)(nil)).Where("document_id = ?", documentID).Exec(ctx); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]chunkRow, len(chunks))
		for i, c := range chunks {
			rows[i] = chunkRow{
				ID:          c.ID,
				DocumentID:  documentID,
				Ordinal:     c.Ordinal,
				Text:        c.Text,
				TokenCount:  c.TokenCount,
				ContentHash: c.ContentHash,
				Page:        c.Page,
				Section:     c.Section,
				Embedding:   vectorLiteral(c.Embedding),
				Language:    c.Language,
			}
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func (s *Store) GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var rows []chunkRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("document_id = ?", documentID).
		Order("ordinal ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toChunks(rows), nil
}

func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.NewDelete().Model((*chunkRow)(nil)).Where("document_id = ?", documentID).Exec(ctx)
	return err
}

func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, documentIDs []string, k int) ([]store.VectorHit, error) {
	type scoredRow struct {
		chunkRow   `bun:",extend"`
		Similarity float64 `bun:"similarity"`
	}
	var rows []scoredRow
	q := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		ColumnExpr("c.*").
		ColumnExpr("1 - (embedding <=> ?::vector) AS similarity", vectorLiteral(queryEmbedding)).
		Where("embedding IS NOT NULL").
		OrderExpr("embedding <=> ?::vector", vectorLiteral(queryEmbedding)).
		Limit(k)
	if len(documentIDs) > 0 {
		q = q.Where("document_id IN (?)", bun.In(documentIDs))
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	hits := make([]store.VectorHit, len(rows))
	for i, r := range rows {
		hits[i] = store.VectorHit{Chunk: toChunk(r.chunkRow), Similarity: r.Similarity}
	}
	return hits, nil
}

func (s *Store) LexicalSearch(ctx context.Context, queryTerms string, documentIDs []string, k int) ([]store.LexicalHit, error) {
	type rankedRow struct {
		chunkRow `bun:",extend"`
		Rank     float64 `bun:"rank"`
	}
	var rows []rankedRow
	q := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		ColumnExpr("c.*").
		ColumnExpr("ts_rank_cd(to_tsvector('simple', text), plainto_tsquery('simple', ?)) AS rank", queryTerms).
		Where("to_tsvector('simple', text) @@ plainto_tsquery('simple', ?)", queryTerms).
		OrderExpr("rank DESC").
		Limit(k)
	if len(documentIDs) > 0 {
		q = q.Where("document_id IN (?)", bun.In(documentIDs))
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	hits := make([]store.LexicalHit, len(rows))
	for i, r := range rows {
		hits[i] = store.LexicalHit{Chunk: toChunk(r.chunkRow), Rank: r.Rank}
	}
	return hits, nil
}

// vectorLiteral renders a pgvector input literal like [0.1,0.2]. An
// empty vector renders to "" so nullzero maps it to NULL.
func vectorLiteral(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func toChunk(r chunkRow) models.Chunk {
	return models.Chunk{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		Ordinal:     r.Ordinal,
		Text:        r.Text,
		TokenCount:  r.TokenCount,
		ContentHash: r.ContentHash,
		Page:        r.Page,
		Section:     r.Section,
		Embedding:   parseVector(r.Embedding),
		Language:    r.Language,
	}
}

func parseVector(literal string) []float32 {
	literal = strings.Trim(strings.TrimSpace(literal), "[]")
	if literal == "" {
		return nil
	}
	parts := strings.Split(literal, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

func toChunks(rows []chunkRow) []models.Chunk {
	out := make([]models.Chunk, len(rows))
	for i, r := range rows {
		out[i] = toChunk(r)
	}
	return out
}
