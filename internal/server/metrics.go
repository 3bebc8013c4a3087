package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/metrics"
	"sprintboard/internal/models"
)

const (
	defaultVelocitySprints = 6
	defaultFlowDays        = 30
)

func (s *Server) handleSprintMetrics(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	unit, err := metrics.ParseUnit(c.Query("unit"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	m, err := s.metrics.SprintMetrics(c.Request.Context(), id, unit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, m)
}

func (s *Server) handleVelocity(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	n, err := intQuery(c, "sprints", defaultVelocitySprints)
	if err != nil {
		s.respondError(c, err)
		return
	}
	points, err := s.metrics.Velocity(c.Request.Context(), boardID, n)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"velocity": points})
}

// handleFlow returns cumulative flow for the trailing days, today included.
func (s *Server) handleFlow(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	days, err := intQuery(c, "days", defaultFlowDays)
	if err != nil {
		s.respondError(c, err)
		return
	}
	flow, err := s.metrics.CumulativeFlow(c.Request.Context(), boardID, days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"flow": flow})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Validationf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
