package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/models"
	"sprintboard/internal/planning"
)

type sprintRequest struct {
	Name      string  `json:"name"`
	Goal      *string `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// handleListSprints returns the active sprint, the upcoming ones and the
// first page of closed sprints.
func (s *Server) handleListSprints(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	listing, err := s.sprints.ListSprints(c.Request.Context(), boardID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, listing)
}

// handleClosedSprints pages through closed sprints; without a cursor it
// returns the first page.
func (s *Server) handleClosedSprints(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		page models.SprintPage
		err  error
	)
	if cursor, given := c.GetQuery("cursor"); given {
		page, err = s.pages.LoadMore(c.Request.Context(), boardID, cursor)
	} else {
		page, err = s.pages.FirstPage(c.Request.Context(), boardID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, page)
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req sprintRequest
	if !s.bindJSON(c, &req) {
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sprint, err := s.sprints.CreateSprint(c.Request.Context(), planning.SprintInput{
		BoardID:   boardID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sprint})
}

func (s *Server) handleGetSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.sprints.GetSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

func (s *Server) handleRenameSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req sprintRequest
	if !s.bindJSON(c, &req) {
		return
	}

	sprint, err := s.sprints.RenameSprint(c.Request.Context(), id, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

// handleDeleteSprint detaches the sprint from its cards and removes it.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.sprints.DeleteSprint(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleStartSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.sprints.StartSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

func (s *Server) handleCompleteSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.sprints.CompleteSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Blank means unset.
func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, models.Validationf("%s must be YYYY-MM-DD or RFC 3339, got %q", field, v)
	}
	return &t, nil
}
