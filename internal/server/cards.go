package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/models"
	"sprintboard/internal/planning"
)

type cardRequest struct {
	Title    string `json:"title"`
	ColumnID *int64 `json:"column_id"`
}

type moveRequest struct {
	ColumnID *int64 `json:"column_id"`
}

type pointsRequest struct {
	StoryPoints *int `json:"story_points"`
}

// handleListCards fetches every card of a board.
func (s *Server) handleListCards(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	cards, err := s.store.ListCards(c.Request.Context(), boardID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"cards": cards})
}

// handleCreateCard inserts a card, into the backlog column unless one is given.
func (s *Server) handleCreateCard(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req cardRequest
	if !s.bindJSON(c, &req) {
		return
	}

	card, err := s.store.CreateCard(c.Request.Context(), boardID, req.Title, req.ColumnID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"card": card})
}

func (s *Server) handleGetCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	card, err := s.store.GetCard(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"card": card})
}

// handleMoveCard moves a card to another column of its board.
func (s *Server) handleMoveCard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req moveRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.ColumnID == nil {
		s.respondError(c, models.Validationf("column_id is required"))
		return
	}

	card, err := s.backlog.MoveCard(c.Request.Context(), id, *req.ColumnID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"card": card})
}

// handleSetPoints stores an estimate; a null story_points clears it.
func (s *Server) handleSetPoints(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req pointsRequest
	if !s.bindJSON(c, &req) {
		return
	}

	card, err := s.ledger.SetStoryPoints(c.Request.Context(), id, req.StoryPoints)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"card": card})
}

func (s *Server) handleAssignCard(c *gin.Context) {
	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	sprintID, ok := parseID(c, "sprintId")
	if !ok {
		return
	}

	card, err := s.backlog.AssignCardToSprint(c.Request.Context(), cardID, sprintID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"card": card})
}

func (s *Server) handleUnassignCard(c *gin.Context) {
	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	sprintID, ok := parseID(c, "sprintId")
	if !ok {
		return
	}

	card, err := s.backlog.UnassignCardFromSprint(c.Request.Context(), cardID, sprintID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"card": card})
}

// handleBacklog lists the cards of a board that belong to no sprint.
func (s *Server) handleBacklog(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}
	cards, err := s.backlog.CardsInBacklog(c.Request.Context(), boardID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"cards": cards, "total_points": planning.TotalPoints(cards)})
}

func (s *Server) handleSprintCards(c *gin.Context) {
	sprintID, ok := parseID(c, "id")
	if !ok {
		return
	}
	cards, err := s.backlog.CardsInSprint(c.Request.Context(), sprintID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"cards": cards, "total_points": planning.TotalPoints(cards)})
}
