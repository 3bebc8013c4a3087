package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type boardRequest struct {
	Name string `json:"name"`
}

type columnRequest struct {
	Name   string `json:"name"`
	IsDone bool   `json:"is_done_column"`
}

// handleListBoards returns all boards.
func (s *Server) handleListBoards(c *gin.Context) {
	boards, err := s.store.ListBoards(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"boards": boards})
}

// handleCreateBoard creates a board with its default columns.
func (s *Server) handleCreateBoard(c *gin.Context) {
	var req boardRequest
	if !s.bindJSON(c, &req) {
		return
	}

	board, err := s.store.CreateBoard(c.Request.Context(), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"board": board})
}

func (s *Server) handleGetBoard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	board, err := s.store.GetBoard(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"board": board})
}

// handleDeleteBoard removes a board with its columns, cards and sprints.
func (s *Server) handleDeleteBoard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteBoard(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleCreateColumn(c *gin.Context) {
	boardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req columnRequest
	if !s.bindJSON(c, &req) {
		return
	}

	column, err := s.store.CreateColumn(c.Request.Context(), boardID, req.Name, req.IsDone)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"column": column})
}

func (s *Server) handleRenameColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req columnRequest
	if !s.bindJSON(c, &req) {
		return
	}

	column, err := s.store.RenameColumn(c.Request.Context(), id, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"column": column})
}

// handleDeleteColumn refuses the backlog column and columns that still hold cards.
func (s *Server) handleDeleteColumn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteColumn(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
