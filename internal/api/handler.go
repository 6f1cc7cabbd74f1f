package api

import (
	"context"
	"errors"
	"net/http"

	"LedgerChat/internal/chatbot"
	"LedgerChat/internal/message"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// ChatService is the orchestration the HTTP layer exposes
type ChatService interface {
	SubmitMessage(ctx context.Context, msg string) (string, error)
	Search(ctx context.Context, query string) ([]message.Record, error)
	Chat(ctx context.Context, prompt string) (string, error)
}

type submitMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type submitMessageResponse struct {
	TransactionID string `json:"transactionId"`
}

type searchResponse struct {
	Messages []messageView `json:"messages"`
}

type messageView struct {
	ID      string       `json:"id"`
	Content string       `json:"content"`
	Type    message.Type `json:"type"`
}

type chatRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type chatResponse struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type HTTPHandler struct {
	chat ChatService
}

func NewHTTPHandler(chat ChatService) *HTTPHandler {
	return &HTTPHandler{chat: chat}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/message", h.SubmitMessage)
	r.GET("/search", h.Search)

	api := r.Group("/api")
	{
		api.POST("/chat", h.Chat)
	}

	r.GET("/health", h.HealthCheck)
}

func (h *HTTPHandler) SubmitMessage(c *gin.Context) {
	var body submitMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "Message is required")
		return
	}

	txID, err := h.chat.SubmitMessage(c.Request.Context(), body.Message)
	if err != nil {
		if errors.Is(err, chatbot.ErrInvalidRequest) {
			BadRequest(c, "Message is required")
			return
		}
		InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, submitMessageResponse{TransactionID: txID})
}

func (h *HTTPHandler) Search(c *gin.Context) {
	records, err := h.chat.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, searchResponse{
		Messages: lo.Map(records, func(r message.Record, _ int) messageView {
			return messageView{ID: r.ID, Content: r.Content, Type: r.Type}
		}),
	})
}

func (h *HTTPHandler) Chat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "Prompt is required")
		return
	}

	reply, err := h.chat.Chat(c.Request.Context(), body.Prompt)
	if err != nil {
		if errors.Is(err, chatbot.ErrInvalidRequest) {
			BadRequest(c, "Prompt is required")
			return
		}
		InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{Prompt: body.Prompt, Response: reply})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
