package server

import (
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sprintboard/internal/metrics"
	"sprintboard/internal/models"
	"sprintboard/internal/planning"
	"sprintboard/internal/storage/sqlite"
)

const requestIDHeader = "X-Request-ID"

// Server provides HTTP handlers for the sprint planning backend.
type Server struct {
	engine    *gin.Engine
	store     *sqlite.Store
	sprints   *planning.Registry
	pages     *planning.Paginator
	backlog   *planning.Backlog
	ledger    *planning.Ledger
	metrics   *metrics.Engine
	logger    *zap.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, engine *metrics.Engine, logger *zap.Logger, staticDir string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestID())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	pages := planning.NewPaginator(store)
	srv := &Server{
		engine:    router,
		store:     store,
		sprints:   planning.NewRegistry(store, pages, logger),
		pages:     pages,
		backlog:   planning.NewBacklog(store, logger),
		ledger:    planning.NewLedger(store),
		metrics:   engine,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		boards := api.Group("/boards")
		{
			boards.GET("", s.handleListBoards)
			boards.POST("", s.handleCreateBoard)
			boards.GET(":id", s.handleGetBoard)
			boards.DELETE(":id", s.handleDeleteBoard)
			boards.POST(":id/columns", s.handleCreateColumn)
			boards.GET(":id/cards", s.handleListCards)
			boards.POST(":id/cards", s.handleCreateCard)
			boards.GET(":id/backlog", s.handleBacklog)
			boards.GET(":id/sprints", s.handleListSprints)
			boards.POST(":id/sprints", s.handleCreateSprint)
			boards.GET(":id/sprints/closed", s.handleClosedSprints)
			boards.GET(":id/velocity", s.handleVelocity)
			boards.GET(":id/flow", s.handleFlow)
		}

		api.PUT("/columns/:id", s.handleRenameColumn)
		api.DELETE("/columns/:id", s.handleDeleteColumn)

		cards := api.Group("/cards")
		{
			cards.GET(":id", s.handleGetCard)
			cards.PUT(":id/column", s.handleMoveCard)
			cards.PUT(":id/points", s.handleSetPoints)
			cards.PUT(":id/sprints/:sprintId", s.handleAssignCard)
			cards.DELETE(":id/sprints/:sprintId", s.handleUnassignCard)
		}

		sprints := api.Group("/sprints")
		{
			sprints.GET(":id", s.handleGetSprint)
			sprints.PUT(":id", s.handleRenameSprint)
			sprints.DELETE(":id", s.handleDeleteSprint)
			sprints.POST(":id/start", s.handleStartSprint)
			sprints.POST(":id/complete", s.handleCompleteSprint)
			sprints.GET(":id/cards", s.handleSprintCards)
			sprints.GET(":id/metrics", s.handleSprintMetrics)
		}
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestID tags every request with an id, reusing the caller's when given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier", "kind": models.KindValidation})
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body, answering 400 on malformed input.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, models.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindState:
		return http.StatusUnprocessableEntity
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps err to a status and returns a JSON payload. Internal
// failures are logged and their detail is withheld from the client.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	kind := models.KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		kind = "internal"
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
