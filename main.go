package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/framelens/orchestrator/api"
	"github.com/framelens/orchestrator/internal/adapter/embed"
	"github.com/framelens/orchestrator/internal/adapter/genai"
	"github.com/framelens/orchestrator/internal/adapter/search"
	"github.com/framelens/orchestrator/internal/adapter/transcript"
	"github.com/framelens/orchestrator/internal/config"
	"github.com/framelens/orchestrator/internal/repository"
	"github.com/framelens/orchestrator/internal/service"
	"github.com/framelens/orchestrator/policy"
)

const clientTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting framelens orchestrator",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"labeling_model", cfg.Labeling.Model,
		"synthesis_model", cfg.Synthesis.Model,
		"judge_model", cfg.Judge.Model)

	// Store backs runs, events and image payloads.
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// One key pool shared across all model clients so rotation spreads
	// load regardless of which stage is calling.
	pool := genai.NewKeyPool(cfg.APIKeys)

	tiers := []transcript.Tier{
		{Name: "primary", BaseURL: cfg.TranscriptURL},
	}
	if cfg.TranscriptAltURL != "" {
		tiers = append(tiers, transcript.Tier{
			Name:    "alternate",
			BaseURL: cfg.TranscriptAltURL,
			Token:   cfg.TranscriptAltToken,
		})
	}
	if cfg.TranscriptExtractURL != "" {
		tiers = append(tiers, transcript.Tier{
			Name:    "extract",
			BaseURL: cfg.TranscriptExtractURL,
		})
	}

	routing, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		logger.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	collabs := service.Collaborators{
		Labeler:     genai.NewClient(cfg.Labeling.BaseURL, cfg.Labeling.Model, pool, clientTimeout),
		Synthesizer: genai.NewClient(cfg.Synthesis.BaseURL, cfg.Synthesis.Model, pool, clientTimeout),
		Judge:       genai.NewClient(cfg.Judge.BaseURL, cfg.Judge.Model, pool, clientTimeout),
		Similarity:  embed.NewClient(cfg.EmbedURL, clientTimeout),
		Transcripts: transcript.NewClient(tiers, cfg.TranscriptCeiling),
		Knowledge:   search.NewClient(cfg.SearchURL, clientTimeout),
		Routing:     routing,
	}

	svc := service.New(db, db, collabs, cfg, logger)

	sweepCtx, stopSweepers := context.WithCancel(context.Background())
	go svc.RunBlobSweeper(sweepCtx)
	go svc.RunPublisherSweeper(sweepCtx)

	h := api.NewHandler(svc, cfg, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	h.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("api started", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSweepers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
