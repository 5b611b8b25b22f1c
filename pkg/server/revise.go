package server

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"dreamcanvas/pkg/diff"
	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/schema"
	"dreamcanvas/pkg/utils"
)

const (
	maxInstructionRunes = 2048
	maxRevisions        = 20
)

type reviseRequest struct {
	RunID       string `json:"run_id"`
	Instruction string `json:"instruction"`
}

type reviseResponse struct {
	Revision schema.Revision  `json:"revision"`
	Run      *pipeline.Result `json:"run"`
}

// POST /api/revise
//
// Rewrites a run's story per the instruction and records the revision with
// a word-level diff against the previous text. There is no fallback here:
// a revision that cannot be generated is an error, never a silent no-op.
func (s *Server) handlePostRevise(c echo.Context) error {
	var req reviseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("invalid request body"))
	}
	if req.Instruction == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("instruction is required"))
	}
	if len([]rune(req.Instruction)) > maxInstructionRunes {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("instruction too long"))
	}

	run, ok := s.Runs.Load(req.RunID)
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("unknown run: "+req.RunID))
	}

	revised, err := s.Orch.Revise(c.Request().Context(), run.Story, req.Instruction)
	if err != nil {
		log.Error("revision failed", "run", req.RunID, "error", err)
		return c.JSON(http.StatusBadGateway, utils.ErrJSON("could not revise story: "+err.Error()))
	}

	rev := schema.Revision{
		ID:          ksuid.New().String(),
		Instruction: req.Instruction,
		Story:       revised,
		Diff:        diff.Words(run.Story.Text, revised.Text),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	run.Revisions = append(run.Revisions, rev)
	if len(run.Revisions) > maxRevisions {
		run.Revisions = run.Revisions[len(run.Revisions)-maxRevisions:]
	}
	run.Story = revised
	run.Description = pipeline.Describe(run.Caption, run.Emotion, run.Story)
	s.Runs.Store(run.RunID, run)

	if run.ImagePath != "" {
		record := filepath.Join(filepath.Dir(run.ImagePath), "run.json")
		if err := utils.Save(record, run); err != nil {
			log.Warn("could not persist revised run", "run", run.RunID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, reviseResponse{Revision: rev, Run: run})
}
