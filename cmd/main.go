package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-intel/internal/agent"
	"document-intel/internal/chunker"
	"document-intel/internal/config"
	"document-intel/internal/db"
	"document-intel/internal/docstruct"
	"document-intel/internal/embedding"
	"document-intel/internal/helper"
	"document-intel/internal/ingest"
	"document-intel/internal/intent"
	"document-intel/internal/llm"
	"document-intel/internal/memstore"
	"document-intel/internal/models"
	"document-intel/internal/parser"
	"document-intel/internal/retrieval"
	"document-intel/internal/store"
	"document-intel/internal/tokenbudget"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document file to ingest")
	title := flag.String("title", "", "Document title (defaults to file name)")
	query := flag.String("query", "", "Question to answer over ingested documents")
	search := flag.String("search", "", "Run hybrid retrieval only, without the reasoning loop")
	docIDs := flag.String("docs", "", "Comma-separated document IDs to scope retrieval")
	structureID := flag.String("structure", "", "Document ID to analyze structure for")
	initSchema := flag.Bool("init", false, "Create database schema and exit")
	inMemory := flag.Bool("memory", false, "Use the in-memory store instead of Postgres")
	flag.Parse()

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()

	app, err := buildApp(ctx, cfg, *inMemory, *initSchema)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building application")
	}
	defer app.close()

	switch {
	case *initSchema:
		log.Info().Msg("Schema initialized")
	case *filePath != "":
		ingestFile(ctx, app, *filePath, *title)
	case *structureID != "":
		analyzeStructure(ctx, app, *structureID)
	case *search != "":
		searchDocuments(ctx, app, *search, splitIDs(*docIDs))
	case *query != "":
		answerQuery(ctx, app, *query, splitIDs(*docIDs))
	default:
		log.Fatal().Msg("Provide -file to ingest, -query or -search to retrieve, or -structure to analyze")
	}
}

type app struct {
	cfg      *config.Config
	store    store.Store
	pipeline *ingest.Pipeline
	engine   *retrieval.Engine
	analyzer *docstruct.Analyzer
	loop     *agent.Loop
	close    func()
}

func buildApp(ctx context.Context, cfg *config.Config, inMemory, initSchema bool) (*app, error) {
	embedClient, err := llm.New(cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding client: %w", err)
	}

	chatClient, err := llm.New(cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing chat client: %w", err)
	}
	var chatProvider llm.Provider = chatClient
	if cfg.FallbackLLM != nil {
		fallback, err := llm.New(*cfg.FallbackLLM)
		if err != nil {
			return nil, fmt.Errorf("initializing fallback client: %w", err)
		}
		chatProvider = llm.NewFallbackChain(chatClient, fallback)
	}

	var (
		st      store.Store
		cleanup = func() {}
	)
	if inMemory {
		st = memstore.New()
	} else {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		bundb := db.NewDB(sqldb, cfg.Database.Debug)
		cleanup = func() { bundb.Close() }
		if initSchema {
			if err := db.InitDB(ctx, bundb, cfg.EmbeddingDims); err != nil {
				cleanup()
				return nil, fmt.Errorf("initializing schema: %w", err)
			}
		}
		st = db.NewStore(bundb)
	}

	counter := tokenbudget.NewCounter(cfg.TokenizerModel)
	batch := embedding.NewBatchClient(embedClient, cfg.Chunking.EmbedBatchSize)
	ch := chunker.New(cfg.Chunking, batch, counter.Count)
	pipeline := ingest.NewPipeline(parser.NewFileExtractor(), ch, batch, st)
	engine := retrieval.NewEngine(st, batch)
	analyzer := docstruct.NewAnalyzer(st, cfg.StructureCacheTTL.Std(), time.Now)
	loop := agent.NewLoop(chatProvider, engine, analyzer, counter, agent.Config{
		MaxSteps:         cfg.Agent.MaxSteps,
		ReflectionCutoff: cfg.Agent.ReflectionCutoff,
		OutputPreviewLen: cfg.Agent.OutputPreviewLen,
		ContextTokens:    cfg.Agent.ContextTokens,
		ResponseReserve:  cfg.Agent.ResponseReserve,
	})

	return &app{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline,
		engine:   engine,
		analyzer: analyzer,
		loop:     loop,
		close:    cleanup,
	}, nil
}

func ingestFile(ctx context.Context, a *app, filePath, title string) {
	if title == "" {
		title = filePath
	}
	doc, err := a.pipeline.Ingest(ctx, ingest.Source{
		Kind:  models.SourceFile,
		Path:  filePath,
		Title: title,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}

	log.Info().Str("document_id", doc.ID).Int("chunks", doc.Metadata.ChunkCount).Msg("Ingested")
	helper.PrettyPrint(doc)
}

func analyzeStructure(ctx context.Context, a *app, documentID string) {
	structure, err := a.analyzer.Analyze(ctx, documentID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error analyzing document structure")
	}
	helper.PrettyPrint(structure)
}

// searchDocuments runs classification-tuned hybrid retrieval and prints
// the ranked hits.
func searchDocuments(ctx context.Context, a *app, query string, documentIDs []string) {
	classification := intent.Classify(query)
	log.Info().
		Str("intent", string(classification.Intent)).
		Float64("confidence", classification.Confidence).
		Msg("Classified query")

	results, err := a.engine.Search(ctx, retrieval.Request{
		Query:           query,
		ExpandedQueries: classification.ExpandedQueries,
		DocumentIDs:     documentIDs,
		TopK:            classification.SuggestedChunks,
		SemanticWeight:  intent.SemanticWeight(classification.Intent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching")
	}

	if classification.NeedsFullContext {
		for _, docID := range documentIDs {
			structure, err := a.analyzer.Analyze(ctx, docID)
			if err != nil {
				log.Warn().Err(err).Str("document_id", docID).Msg("Structure analysis failed")
				continue
			}
			fmt.Printf("%s\n\n", structure.Summary)
		}
	}

	for i, r := range results {
		fmt.Printf("[%d] score=%.3f (sem=%.3f lex=%.3f) doc=%s\n%s\n\n",
			i+1, r.CombinedScore, r.SemanticScore, r.LexicalScore, r.DocumentID, r.Chunk.Text)
	}
}

func answerQuery(ctx context.Context, a *app, query string, documentIDs []string) {
	classification := intent.Classify(query)
	log.Info().
		Str("intent", string(classification.Intent)).
		Float64("confidence", classification.Confidence).
		Int("chunks", classification.SuggestedChunks).
		Msg("Classified query")

	result, err := a.loop.Run(ctx, query, documentIDs)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", result.Answer)

	log.Info().Float64("confidence", result.Confidence).Int("steps", len(result.Steps)).Int("sources", len(result.Sources)).Msg("Done")
	for _, step := range result.Steps {
		log.Debug().Int("step", step.Number).Str("tool", step.Tool).Str("reflection", step.Reflection).Msg("Agent step")
	}
}

func splitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
