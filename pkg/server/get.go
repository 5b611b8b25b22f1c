package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dreamcanvas/pkg/utils"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name": "dreamcanvas",
		"endpoints": []string{
			"POST /api/story",
			"GET /api/runs/:id",
			"POST /api/revise",
			"GET /outputs/",
		},
	})
}

// GET /api/runs/:id
func (s *Server) handleGetRun(c echo.Context) error {
	id := c.Param("id")
	run, ok := s.Runs.Load(id)
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("unknown run: "+id))
	}
	return c.JSON(http.StatusOK, run)
}
