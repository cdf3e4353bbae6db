package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docubot/internal/chromemdb"
	"docubot/internal/config"
	"docubot/internal/db"
	"docubot/internal/embedding"
	"docubot/internal/helper"
	"docubot/internal/ingest"
	"docubot/internal/llmservice"
	"docubot/internal/parser"
	"docubot/internal/rag"
	"docubot/internal/session"
	"docubot/internal/splitter"
	"docubot/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// Secrets (keys, database password) come from the environment.
	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	files := flag.String("file", "", "Comma-separated document files to ingest")
	query := flag.String("query", "", "Query to be answered")
	topK := flag.Int("k", 0, "Number of chunks to retrieve (0 = config default)")
	retrieveOnly := flag.Bool("retrieve-only", false, "Print retrieved chunks without calling the chat model")
	dryRun := flag.Bool("dry-run", false, "Parse and segment only, do not embed or save")
	flag.Parse()

	if *files == "" && *query == "" {
		log.Fatal().Msg("Please provide a document file using the -file flag or a query using the -query flag")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx := context.Background()

	if *files != "" {
		ingestFiles(ctx, cfg, splitFileList(*files), *dryRun)
		return
	}

	answerQuery(ctx, cfg, *query, *topK, *retrieveOnly)
}

func ingestFiles(ctx context.Context, cfg *config.Config, files []string, dryRun bool) {
	seg := newSegmenter(cfg)

	if dryRun {
		for _, file := range files {
			pages, err := parser.ExtractPages(file)
			if err != nil {
				log.Fatal().Err(err).Str("file", file).Msg("Error parsing document")
			}
			chunks := seg.Split(strings.Join(pages, "\n\n"))
			log.Info().Str("file", file).Int("chunks", len(chunks)).Msg("Segmented document")
			helper.PrettyPrint(chunks)
		}
		return
	}

	st := openStore(ctx, cfg)
	defer st.Close()

	embedder := newEmbedder(cfg)
	ingestor := ingest.New(seg, embedder, st)

	// Skip files named twice in one invocation; duplicates across runs are
	// accepted by the store, corruption is not.
	tracker, err := session.NewTracker()
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating session tracker")
	}

	for _, file := range files {
		if !tracker.MarkSeen(file) {
			log.Warn().Str("file", file).Msg("File already ingested this session, skipping")
			continue
		}
		count, err := ingestor.IngestFile(ctx, file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Error ingesting document")
		}
		log.Info().Str("file", file).Int("chunks", count).Msg("Ingested document")
	}
}

func answerQuery(ctx context.Context, cfg *config.Config, query string, topK int, retrieveOnly bool) {
	st := openStore(ctx, cfg)
	defer st.Close()

	embedder := newEmbedder(cfg)

	var chat rag.Completer
	if !retrieveOnly {
		client, err := llmservice.NewClient(&cfg.ChatLLM)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing chat client")
		}
		chat = client
	}

	if topK <= 0 {
		topK = cfg.RAG.TopK
	}
	r := rag.NewRAG(st, embedder, chat, topK)

	response, err := r.Query(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	if !retrieveOnly {
		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", response.Content)
	}
}

// openStore builds the configured store backend and runs schema setup. Any
// schema failure is fatal: nothing may read or write before it completes.
func openStore(ctx context.Context, cfg *config.Config) store.Store {
	var st store.Store
	switch cfg.Storage.Driver {
	case "chromem":
		chromemStore, err := chromemdb.NewStore(cfg.Storage.Path, cfg.Storage.Collection)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating vector database")
		}
		st = chromemStore
	default:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		st = db.NewStore(db.NewDB(sqldb, cfg.Database.Debug), &cfg.Database, cfg.EmbedLLM.Dimensions)
	}

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database schema")
	}
	return st
}

func newSegmenter(cfg *config.Config) *splitter.Splitter {
	tok, err := splitter.NewTiktokenTokenizer("")
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading tokenizer")
	}
	return splitter.New(tok, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
}

func newEmbedder(cfg *config.Config) embedding.Embedder {
	var client *embedding.Client
	var err error
	switch cfg.EmbedLLM.Provider {
	case "ollama":
		client, err = embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	default:
		client, err = embedding.NewEmbedder(&cfg.EmbedLLM)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	return embedding.NewRetry(client, cfg.RAG.MaxRetries,
		time.Duration(cfg.RAG.RetryBaseMS)*time.Millisecond)
}

func splitFileList(files string) []string {
	var out []string
	for _, f := range strings.Split(files, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
