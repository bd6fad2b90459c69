// Package server exposes the simulation engine over HTTP. Two endpoints:
// GET /status for liveness plus store statistics, POST /simulate to run a
// full scenario. Stakeholder references in requests are hydrated into full
// profiles before orchestration.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adoptsim/internal/fixtures"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
	"adoptsim/internal/orchestrator"
	"adoptsim/internal/sim"
	"adoptsim/internal/store"
)

// Server handles the HTTP surface.
type Server struct {
	provider llm.Provider
	store    *store.Store // may be nil: simulation runs without retrieval
	set      *fixtures.Set

	defaultTurns int
	temperature  float64
	seed         int64

	logger *zap.Logger
	engine *gin.Engine
}

// Options configure the server.
type Options struct {
	Provider     llm.Provider
	Store        *store.Store
	Fixtures     *fixtures.Set
	DefaultTurns int
	Temperature  float64
	Seed         int64
	Logger       *zap.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultTurns <= 0 {
		opts.DefaultTurns = 6
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		provider:     opts.Provider,
		store:        opts.Store,
		set:          opts.Fixtures,
		defaultTurns: opts.DefaultTurns,
		temperature:  opts.Temperature,
		seed:         opts.Seed,
		logger:       opts.Logger,
		engine:       engine,
	}

	engine.Use(s.requestLog())
	engine.GET("/status", s.handleStatus)
	engine.POST("/simulate", s.handleSimulate)
	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	logging.Server("listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

type statusResponse struct {
	Status    string       `json:"status"`
	Mode      string       `json:"mode"`
	Timestamp time.Time    `json:"timestamp"`
	Store     *store.Stats `json:"store,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{
		Status:    "ok",
		Mode:      s.provider.Name(),
		Timestamp: time.Now().UTC(),
	}
	if s.store != nil {
		if stats, err := s.store.CollectStats(c.Request.Context()); err == nil {
			resp.Store = stats
		} else {
			logging.Server("stats collection failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type simulateRequest struct {
	Query        string               `json:"query" binding:"required"`
	Stakeholders []string             `json:"stakeholders"`
	Turns        int                  `json:"turns"`
	Config       sim.SimulationConfig `json:"config"`
}

type simulateResponse struct {
	Success    bool                `json:"success"`
	State      sim.SimulationState `json:"state"`
	Projection any                 `json:"roi"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleSimulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error()})
		return
	}

	stakeholders := fixtures.Hydrate(req.Stakeholders, s.set)
	if len(stakeholders) == 0 {
		stakeholders = fixtures.BuiltinProfiles()
	}

	var retriever orchestrator.Retriever
	if s.store != nil {
		retriever = s.store
	}

	var events []sim.SimulationEvent
	if s.set != nil {
		events = s.set.Events
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Provider:     s.provider,
		Retriever:    retriever,
		Config:       req.Config,
		Stakeholders: stakeholders,
		Events:       events,
		Temperature:  s.temperature,
		Seed:         s.seed,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid simulation", Details: err.Error()})
		return
	}

	turns := req.Turns
	if turns <= 0 {
		turns = s.defaultTurns
	}

	result, err := orch.RunSimulation(c.Request.Context(), req.Query, turns)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "simulation failed", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, simulateResponse{
		Success:    true,
		State:      result.State,
		Projection: result.Projection,
	})
}
