package server

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/queue"
	"dreamcanvas/pkg/utils"
)

type Server struct {
	Echo      *echo.Echo
	Orch      *pipeline.Orchestrator
	Queue     *queue.Queue
	Runs      *utils.SyncMap[map[string]*pipeline.Result, string, *pipeline.Result]
	OutputDir string
	Ctx       context.Context
}

func NewServer(ctx context.Context, orch *pipeline.Orchestrator, outputDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:      e,
		Orch:      orch,
		Queue:     queue.New(orch),
		Runs:      utils.NewSyncMap[map[string]*pipeline.Result](),
		OutputDir: outputDir,
		Ctx:       ctx,
	}

	s.loadRuns()
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.POST("/story", s.handlePostStory)   // upload drawing -> SSE stage events -> result
	api.GET("/runs/:id", s.handleGetRun)    // poll a finished run
	api.POST("/revise", s.handlePostRevise) // rewrite a run's story

	// artifact downloads (image copy, narration audio, final video)
	s.Echo.Static("/outputs", s.OutputDir)
}

// loadRuns restores run records persisted by earlier processes.
func (s *Server) loadRuns() {
	matches, err := filepath.Glob(filepath.Join(s.OutputDir, "*", "run.json"))
	if err != nil {
		return
	}
	for _, path := range matches {
		res, err := utils.Load[*pipeline.Result](path)
		if err != nil || res == nil || res.RunID == "" {
			log.Warn("skipping unreadable run record", "path", path, "error", err)
			continue
		}
		s.Runs.Store(res.RunID, res)
	}
	if len(matches) > 0 {
		log.Info("restored run records", "count", len(matches))
	}
}

func (s *Server) Start(addr string) error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return err
	}
	s.Queue.Start()
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	s.Queue.Stop()
	return s.Echo.Shutdown(ctx)
}
