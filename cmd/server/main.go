package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lacunalabs/lacuna/internal/config"
	"github.com/lacunalabs/lacuna/internal/core"
	"github.com/lacunalabs/lacuna/internal/driver"
	"github.com/lacunalabs/lacuna/internal/llm"
	"github.com/lacunalabs/lacuna/internal/server"
	"github.com/lacunalabs/lacuna/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("failed to load configuration", zap.String("path", cfgPath), zap.Error(err))
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.Path)
		if err != nil {
			log.Fatal("failed to open sqlite store", zap.String("path", cfg.Store.Path), zap.Error(err))
		}
	default:
		log.Fatal("unknown store driver", zap.String("driver", cfg.Store.Driver))
	}
	defer st.Close()

	var mirror driver.GraphDriver
	if cfg.Graph.URI != "" {
		m, err := driver.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
		if err != nil {
			log.Warn("graph mirror unavailable, continuing without it",
				zap.String("uri", cfg.Graph.URI), zap.Error(err))
		} else {
			mirror = m
			defer m.Close(context.Background())
			if err := m.BuildIndices(context.Background()); err != nil {
				log.Warn("failed to build mirror indices", zap.Error(err))
			}
		}
	}

	if err := seedSettings(context.Background(), st, cfg); err != nil {
		log.Fatal("failed to seed settings", zap.Error(err))
	}

	engine := core.NewEngine(st, llm.NewCache(), cfg, mirror, log)
	srv := server.NewServer(engine, st, log)
	router := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info("starting server", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// seedSettings overlays config file values onto the settings singleton the
// first time the server runs against a fresh store. After that the stored
// settings win; the config only fills what the UI has never touched.
func seedSettings(ctx context.Context, st store.Store, cfg *config.Config) error {
	settings, err := st.EnsureSettings(ctx)
	if err != nil {
		return err
	}
	if settings.Provider != "" {
		return nil
	}
	settings.Provider = cfg.LLM.Provider
	settings.Model = cfg.LLM.Model
	settings.APIKey = cfg.LLM.APIKey
	settings.BaseURL = cfg.LLM.BaseURL
	if cfg.Chunking.Size > 0 {
		settings.ChunkSize = cfg.Chunking.Size
	}
	if cfg.Chunking.Overlap >= 0 {
		settings.ChunkOverlap = cfg.Chunking.Overlap
	}
	if cfg.Concurrency.Extraction > 0 {
		settings.ExtractionConcurrency = cfg.Concurrency.Extraction
	}
	if cfg.Concurrency.Questions > 0 {
		settings.QuestionConcurrency = cfg.Concurrency.Questions
	}
	return st.PutSettings(ctx, settings)
}
