// Package api is the ambient HTTP surface: a gin server that accepts a
// batch of scenarios against one loaded deal and fans them out across a
// bounded worker pool, running a full deal simulation per scenario.
package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jiangshenghai57/rmbs-engine/internal/deal"
	"github.com/jiangshenghai57/rmbs-engine/internal/dealstate"
	"github.com/jiangshenghai57/rmbs-engine/internal/engine"
)

// Server holds the shared, read-only deal definition and the engine
// configuration every scenario run uses.
type Server struct {
	def            *deal.Definition
	cfg            engine.EngineConfig
	workerPoolSize int
	logger         *slog.Logger
}

// NewServer constructs a Server bound to one loaded deal.
func NewServer(def *deal.Definition, cfg engine.EngineConfig, workerPoolSize int, logger *slog.Logger) *Server {
	if workerPoolSize <= 0 {
		workerPoolSize = 100
	}
	return &Server{def: def, cfg: cfg, workerPoolSize: workerPoolSize, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/info", s.getServiceInfo)
	r.POST("/scenarios", s.postScenarios)

	return r
}

func (s *Server) getServiceInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"service":     "rmbs-engine",
		"description": "RMBS structured-finance cashflow simulation service",
		"version":     "1.0.0",
		"endpoints": gin.H{
			"GET /info":       "Get service information and capabilities",
			"POST /scenarios": "Submit a batch of collateral assumption scenarios against the loaded deal",
		},
		"deal_id": s.def.Meta.ID,
	})
}

// postScenarios accepts a batch of ScenarioRequests, runs each through
// an independent Simulation on a bounded worker pool, and returns every
// result once the whole batch completes. Each goroutine constructs its
// own *dealstate.DealState; only the results slice is mutex-protected.
func (s *Server) postScenarios(c *gin.Context) {
	var reqs []ScenarioRequest
	if err := c.BindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	workerPool := make(chan struct{}, s.workerPoolSize)
	var mu sync.RWMutex
	var wg sync.WaitGroup
	results := make([]ScenarioResult, 0, len(reqs))

	var diag dealstate.DiagSink
	if s.logger != nil {
		diag = func(d dealstate.Diagnostic) {
			s.logger.Warn("scenario diagnostic", slog.String("code", d.Code), slog.String("message", d.Message))
		}
	}

	for _, req := range reqs {
		wg.Add(1)
		go func(req ScenarioRequest) {
			defer wg.Done()
			workerPool <- struct{}{}
			defer func() { <-workerPool }()

			result := runScenario(s.def, s.cfg, req, diag)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(req)
	}

	wg.Wait()

	mu.RLock()
	defer mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"scenario_count": len(results),
		"results":        results,
	})
}
