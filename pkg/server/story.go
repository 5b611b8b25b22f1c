package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/utils"
)

// maxUploadBytes bounds the drawing upload. Scans of A4 crayon art stay
// well under this.
const maxUploadBytes = 16 << 20

// POST /api/story
//
// Accepts a multipart upload under "drawing", queues a pipeline run, and
// streams stage events over SSE. The final "result" event carries the full
// run record; "warning"-bearing fields inside it say which artifacts are
// genuinely present.
func (s *Server) handlePostStory(c echo.Context) error {
	file, err := c.FormFile("drawing")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'drawing' is required")
	}
	if file.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "drawing too large")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not open upload")
	}
	imageBytes, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	src.Close()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	if len(imageBytes) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "drawing too large")
	}

	// Every run gets its own directory so concurrent uploads never share
	// file names.
	runID := ksuid.New().String()
	dir := filepath.Join(s.OutputDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("could not create run dir", "run", runID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create run directory")
	}

	name := utils.SanitizeFilename(file.Filename)
	if name == "" {
		name = "drawing.png"
	}
	imagePath := filepath.Join(dir, name)
	if err := os.WriteFile(imagePath, imageBytes, 0o644); err != nil {
		log.Error("could not save upload", "run", runID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save upload")
	}

	req := pipeline.Request{
		RunID:     runID,
		Dir:       dir,
		ImagePath: imagePath,
		Image:     imageBytes,
		MIME:      file.Header.Get("Content-Type"),
	}

	ctx := c.Request().Context()
	w := utils.NewSSEWriter(c)
	defer w.Close()

	notify := func(stage pipeline.Stage, data any) {
		// The queue worker outlives a disconnected request; the writer's
		// own close guard makes late events harmless, this just skips the
		// encoding work.
		if ctx.Err() != nil {
			return
		}
		w.Event(string(stage), data)
	}

	resCh, err := s.Queue.Add(ctx, req, notify)
	if err != nil {
		log.Warn("run rejected", "run", runID, "error", err)
		w.Event("error", utils.ErrJSON(err.Error()))
		return nil
	}
	w.Event("queued", map[string]string{"run_id": runID})

	select {
	case <-ctx.Done():
		// The client is gone; the run's context is this request's context,
		// so the orchestrator abandons at the next stage boundary.
		log.Info("client disconnected", "run", runID)
		return nil
	case res := <-resCh:
		s.Runs.Store(runID, res)
		w.Event("result", res)
		return nil
	}
}
