// Discharge coordination API entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/discharge-coordinator/internal/agents"
	"github.com/discharge-coordinator/internal/cache"
	"github.com/discharge-coordinator/internal/config"
	"github.com/discharge-coordinator/internal/llm"
	"github.com/discharge-coordinator/internal/nursematch"
	"github.com/discharge-coordinator/internal/patient"
	"github.com/discharge-coordinator/internal/routing"
	"github.com/discharge-coordinator/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting discharge coordinator")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		logger.Info("Redis response cache tier enabled", zap.String("addr", cfg.Cache.RedisAddr))
	}

	responseCache, err := cache.NewResponseCache(int64(cfg.Cache.MaxEntries), cfg.CacheTTL(), redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to create response cache", zap.Error(err))
	}
	defer responseCache.Close()

	llmCfg := llm.ConfigFromEnv()
	if cfg.LLM.GeminiModel != "" {
		llmCfg.GeminiModel = cfg.LLM.GeminiModel
	}
	if cfg.LLM.OpenAIModel != "" {
		llmCfg.OpenAIModel = cfg.LLM.OpenAIModel
	}
	llmCfg.RequestTimeout = cfg.LLMTimeout()
	gateway := llm.New(llmCfg, responseCache, logger)

	patients := patient.NewStore(logger)
	if cases, err := patient.LoadWorkbook(cfg.Data.PatientWorkbook, logger); err != nil {
		logger.Warn("Patient workbook not loaded; use /api/refresh-data after fixing",
			zap.String("path", cfg.Data.PatientWorkbook), zap.Error(err))
	} else {
		patients.Replace(cases, cfg.Data.PatientWorkbook)
	}

	roster := nursematch.NewRoster(logger)
	if err := roster.LoadFile(cfg.Data.NurseRoster); err != nil {
		logger.Warn("Nurse roster not loaded; use /api/refresh-roster after fixing",
			zap.String("path", cfg.Data.NurseRoster), zap.Error(err))
	}
	defer roster.Close()

	matcher := nursematch.NewMatcher(roster, gateway, logger)

	srv := server.New(cfg, server.Deps{
		Patients:  patients,
		Roster:    roster,
		Router:    routing.NewRouter(gateway, logger),
		Processor: agents.New(gateway, matcher, logger),
		Matcher:   matcher,
		Provider:  string(gateway.Provider()),
		ReloadData: func() error {
			cases, err := patient.LoadWorkbook(cfg.Data.PatientWorkbook, logger)
			if err != nil {
				return err
			}
			patients.Replace(cases, cfg.Data.PatientWorkbook)
			return nil
		},
		ReloadRoster: func() error {
			return roster.LoadFile(cfg.Data.NurseRoster)
		},
	}, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
