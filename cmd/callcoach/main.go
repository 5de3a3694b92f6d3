package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mkhalidji/callcoach/internal/api"
	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/data/orchestrator"
	"github.com/mkhalidji/callcoach/internal/engine"
	"github.com/mkhalidji/callcoach/internal/llm"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("coach: .env file not loaded", "error", err)
	} else {
		logger.Info("coach: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	archivePath := flag.String("archive", "", "path to the transcript archive directory")
	catalogPath := flag.String("catalog", "", "path to the SQLite catalog database")
	dimensions := flag.String("dimensions", "", "comma-separated default coaching dimensions")
	rollout := flag.Int("rollout-percent", -1, "percentage of calls routed to the unified pipeline (-1 uses env/defaults)")
	callType := flag.String("call-type", "", "call type used for action prioritization (discovery, demo, negotiation, closing)")
	flag.Parse()

	logger.Info("coach: startup initiated", "addr", *addr)

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		logger.Error("coach: orchestrator config load failed", "error", err)
		fmt.Println("orchestrator config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*archivePath); trimmed != "" {
		orchCfg.ArchivePath = trimmed
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		orchCfg.SQLitePath = trimmed
	}

	orch, err := orchestrator.New(ctx, orchCfg)
	if err != nil {
		logger.Error("coach: orchestrator initialization failed", "error", err)
		fmt.Println("orchestrator error:", err)
		os.Exit(1)
	}
	defer orch.Close()

	provider := llm.NewProvider()
	logger.Info("coach: llm provider ready", "provider", provider.Name())

	engineCfg, err := engine.LoadConfig()
	if err != nil {
		logger.Error("coach: engine config load failed", "error", err)
		fmt.Println("engine config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dimensions); trimmed != "" {
		var dims []string
		for _, dim := range strings.Split(trimmed, ",") {
			if dim = strings.TrimSpace(dim); dim != "" {
				dims = append(dims, dim)
			}
		}
		engineCfg.Dimensions = dims
	}
	if *rollout >= 0 {
		engineCfg.RolloutPercent = *rollout
	}
	if trimmed := strings.TrimSpace(*callType); trimmed != "" {
		engineCfg.CallType = trimmed
	}

	server, err := api.NewServer(ctx, orch, provider, engineCfg)
	if err != nil {
		logger.Error("coach: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("coach: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("coach: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}
