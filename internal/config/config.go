// Package config loads the ambient settings cmd/rmbsengine and
// internal/api need (log directory, HTTP address, worker pool size,
// default engine tunables) from an optional env-selected JSON file
// layered over built-in defaults.
package config

import (
	"encoding/json"
	"os"

	"github.com/shopspring/decimal"

	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/lossalloc"
)

// AppConfig carries the ambient settings for the CLI/API binary.
type AppConfig struct {
	LogDir             string                   `json:"log_dir"`
	ListenAddr         string                   `json:"listen_addr"`
	WorkerPoolSize     int                      `json:"worker_pool_size"`
	UseIterativeSolver bool                     `json:"use_iterative_solver"`
	MaxIterations      int                      `json:"max_iterations"`
	ConvergenceTol     decimal.Decimal          `json:"convergence_tol"`
	OverdraftEpsilon   decimal.Decimal          `json:"overdraft_epsilon"`
	FundsMissingPolicy dealstate.MissingPolicy  `json:"-"`
	BondsMissingPolicy dealstate.MissingPolicy  `json:"-"`
	LossOverflowPolicy lossalloc.OverflowPolicy `json:"-"`
}

func defaults() AppConfig {
	return AppConfig{
		LogDir:             "./logs",
		ListenAddr:         "localhost:8080",
		WorkerPoolSize:     100,
		UseIterativeSolver: false,
		MaxIterations:      15,
		ConvergenceTol:     decimal.New(1, -2),
		OverdraftEpsilon:   decimal.New(1, -5),
		FundsMissingPolicy: dealstate.MissingZero,
		BondsMissingPolicy: dealstate.MissingZero,
		LossOverflowPolicy: lossalloc.OverflowToLedger,
	}
}

// Read selects a config file via OCP_ENV: unset, it reads a local
// "./config.json"; set, it reads CONFIG_PATH with "config.json"
// appended directly (no separator is inserted). The file
// is decoded over a set of built-in defaults, and a missing file is
// tolerated (defaults stand alone) rather than treated as an error —
// callers in a test or CI environment rarely ship a config.json.
func Read() (AppConfig, error) {
	cfg := defaults()

	configPathFile := "./config.json"
	if os.Getenv("OCP_ENV") != "" {
		configPathFile = os.Getenv("CONFIG_PATH") + "config.json"
	}

	file, err := os.Open(configPathFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
