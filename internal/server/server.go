package server

import (
	"log/slog"
	"net/http"

	"github.com/alkime/memnote/internal/config"
	"github.com/alkime/memnote/internal/notes"
	"github.com/gin-gonic/gin"
)

// Server is a development sink for the notes API. It accepts the same
// POST /notes the voice client sends and keeps what it receives in memory.
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	inbox  *Inbox
}

// noteBody mirrors notes.NoteRequest with validation. An empty transcript
// is still a note.
type noteBody struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp" binding:"required,gt=0"`
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	server := &Server{
		config: cfg,
		logger: logger,
		router: router,
		inbox:  NewInbox(),
	}

	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Run starts the HTTP server
func Run(s *Server) error {
	s.logger.Info("Server listening", "port", s.config.Port)
	return s.router.Run(":" + s.config.Port)
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Inbox returns the received notes.
func (s *Server) Inbox() *Inbox {
	return s.inbox
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/notes", s.handleCreateNote)
	s.router.GET("/notes", s.handleListNotes)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "memnote-sink",
	})
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var body noteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.logger.Debug("Rejected note", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	id := s.inbox.Add(notes.NoteRequest{Text: body.Text, Timestamp: body.Timestamp})
	s.logger.Info("Note received", "id", id, "chars", len(body.Text), "timestamp", body.Timestamp)

	c.Status(http.StatusNoContent)
}

func (s *Server) handleListNotes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notes": s.inbox.List()})
}
