// Command rmbsengine is the CLI/API entry point: it reads the ambient
// config, opens the dual file/stdout logger, loads a deal description
// from disk, and serves the HTTP scenario-batch API.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/jiangshenghai57/rmbs-engine/internal/api"
	"github.com/jiangshenghai57/rmbs-engine/internal/config"
	"github.com/jiangshenghai57/rmbs-engine/internal/engine"
	"github.com/jiangshenghai57/rmbs-engine/internal/loader"
	"github.com/jiangshenghai57/rmbs-engine/internal/obslog"
)

func main() {
	dealPath := flag.String("deal", "", "path to a deal description JSON file")
	flag.Parse()

	if *dealPath == "" {
		log.Fatal("rmbsengine: -deal is required")
	}

	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("rmbsengine: reading config: %v", err)
	}

	logger, err := obslog.New(cfg.LogDir)
	if err != nil {
		log.Fatalf("rmbsengine: initializing logger: %v", err)
	}

	f, err := os.Open(*dealPath)
	if err != nil {
		logger.Error("failed to open deal file", "path", *dealPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	def, err := loader.Load(f)
	if err != nil {
		logger.Error("failed to load deal", "path", *dealPath, "error", err)
		os.Exit(1)
	}
	logger.Info("deal loaded", "deal_id", def.Meta.ID, "bonds", len(def.Bonds))

	engineCfg := engine.EngineConfig{
		UseIterativeSolver: cfg.UseIterativeSolver,
		MaxIterations:      cfg.MaxIterations,
		ConvergenceTol:     cfg.ConvergenceTol,
		OverdraftEpsilon:   cfg.OverdraftEpsilon,
		FundsMissingPolicy: cfg.FundsMissingPolicy,
		BondsMissingPolicy: cfg.BondsMissingPolicy,
		LossOverflowPolicy: cfg.LossOverflowPolicy,
	}

	srv := api.NewServer(def, engineCfg, cfg.WorkerPoolSize, logger.Logger)
	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.Router().Run(cfg.ListenAddr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
