package questions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/auth"
	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/models"
	"github.com/qa-dashboard/backend/pkg/response"
)

// MessageRequest is the body for POST /questions and POST /questions/:id/answer.
type MessageRequest struct {
	Message string `json:"message"`
}

// Handler exposes the question lifecycle over HTTP.
type Handler struct {
	engine *lifecycle.Engine
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(engine *lifecycle.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger}
}

// List handles GET /questions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.engine.ListQuestions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /questions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.engine.GetQuestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

// Create handles POST /questions. Guests may ask anonymously.
func (h *Handler) Create(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	q, err := h.engine.SubmitQuestion(c.Request.Context(), req.Message, auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, q)
}

// Answer handles POST /questions/:id/answer. Guests may answer anonymously.
func (h *Handler) Answer(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.engine.SubmitAnswer(c.Request.Context(), id, req.Message, auth.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, a)
}

// MarkAnswered handles POST /questions/:id/mark-answered (admin).
func (h *Handler) MarkAnswered(c *gin.Context) {
	h.setStatus(c, models.StatusAnswered)
}

// Escalate handles POST /questions/:id/escalate (admin).
func (h *Handler) Escalate(c *gin.Context) {
	h.setStatus(c, models.StatusEscalated)
}

func (h *Handler) setStatus(c *gin.Context, status models.QuestionStatus) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.engine.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperror.TypeOf(err) == apperror.TypeInternal {
		h.logger.Error("question request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}

func questionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid question id")
		return 0, false
	}
	return id, true
}
