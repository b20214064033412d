package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
)

// ResearchRequest starts one research run.
type ResearchRequest struct {
	Topic string `json:"topic"`
}

// ResearchResponse is the completed run.
type ResearchResponse struct {
	RunID     string            `json:"run_id"`
	Topic     string            `json:"topic"`
	Report    string            `json:"report"`
	Sources   []research.Source `json:"sources"`
	LoopCount int               `json:"loop_count"`
}

func (s *Server) runResearch(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	res, err := s.runner.Run(c.Request().Context(), req.Topic)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.archiveRun(c, res)

	return c.JSON(http.StatusOK, ResearchResponse{
		RunID:     res.RunID,
		Topic:     res.Topic,
		Report:    res.Report,
		Sources:   res.State.SourcesGathered,
		LoopCount: res.State.ResearchLoopCount,
	})
}

// streamResearch runs a topic while emitting progress as SSE. Each node
// completion is one "progress" message; the run's outcome arrives as a final
// "result" or "error" message.
func (s *Server) streamResearch(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	events := make(chan research.Event, 16)
	type outcome struct {
		res *research.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.runner.RunStream(ctx, req.Topic, events)
		done <- outcome{res, err}
	}()

	for ev := range events {
		if err := writeSSE(resp, "progress", ev); err != nil {
			return err
		}
	}

	out := <-done
	if out.err != nil {
		return writeSSE(resp, "error", map[string]string{"error": out.err.Error()})
	}
	s.archiveRun(c, out.res)
	return writeSSE(resp, "result", ResearchResponse{
		RunID:     out.res.RunID,
		Topic:     out.res.Topic,
		Report:    out.res.Report,
		Sources:   out.res.State.SourcesGathered,
		LoopCount: out.res.State.ResearchLoopCount,
	})
}

func writeSSE(resp *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

// archiveRun saves a finished run; archive failures are logged, not surfaced.
func (s *Server) archiveRun(c echo.Context, res *research.Result) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveRun(c.Request().Context(), res); err != nil {
		s.logger.Printf("archive run %s: %v", res.RunID, err)
	}
}

func (s *Server) listRuns(c echo.Context) error {
	if s.archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive not configured")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	runs, err := s.archive.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c echo.Context) error {
	if s.archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive not configured")
	}
	rec, ok, err := s.archive.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec)
}
