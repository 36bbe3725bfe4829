package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chempion-hawk/messenger/internal/domain"
	"github.com/chempion-hawk/messenger/internal/repository"
	"github.com/chempion-hawk/messenger/internal/service"
	"github.com/chempion-hawk/messenger/pkg/log"
	"github.com/chempion-hawk/messenger/pkg/response"
)

// HTTPHandler serves the REST API.
type HTTPHandler struct {
	service service.ChatService
}

// NewHTTPHandler creates an HTTPHandler.
func NewHTTPHandler(svc service.ChatService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// RegisterRoutes mounts the REST endpoints.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	{
		api.POST("/users/register", h.RegisterUser)
		api.POST("/users/login", h.Login)
		api.GET("/users", h.ListUsers)
		api.GET("/users/:username", h.GetUser)

		api.POST("/chats/create", h.CreateConversation)
		api.GET("/chats/:username", h.GetUserConversations)

		api.GET("/messages/:chat_id", h.GetMessages)
		api.POST("/messages/:chat_id", h.SendMessage)
	}
}

// CORSMiddleware allows browser clients from any origin, as the reference
// frontend is served separately.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RegisterUser handles POST /api/users/register.
func (h *HTTPHandler) RegisterUser(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) || errors.Is(err, repository.ErrEmailExists) {
			response.Conflict(c, "username or email already registered")
			return
		}
		response.InternalError(c, "failed to register user")
		return
	}

	c.Set(log.FieldUsername, user.Username)
	response.Created(c, user)
}

// Login handles POST /api/users/login.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.InternalError(c, "failed to log in")
		return
	}

	c.Set(log.FieldUsername, resp.User.Username)
	response.Success(c, resp)
}

// ListUsers handles GET /api/users.
func (h *HTTPHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to list users")
		return
	}
	response.Success(c, users)
}

// GetUser handles GET /api/users/:username.
func (h *HTTPHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to get user")
		return
	}
	response.Success(c, user)
}

// CreateConversation handles POST /api/chats/create.
func (h *HTTPHandler) CreateConversation(c *gin.Context) {
	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "participant not found")
			return
		}
		response.InternalError(c, "failed to create conversation")
		return
	}
	response.Created(c, conv)
}

// GetUserConversations handles GET /api/chats/:username.
func (h *HTTPHandler) GetUserConversations(c *gin.Context) {
	conversations, err := h.service.GetUserConversations(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.InternalError(c, "failed to get conversations")
		return
	}
	response.Success(c, conversations)
}

// GetMessages handles GET /api/messages/:chat_id.
func (h *HTTPHandler) GetMessages(c *gin.Context) {
	messages, err := h.service.GetMessages(c.Request.Context(), c.Param("chat_id"))
	if err != nil {
		response.InternalError(c, "failed to get messages")
		return
	}
	response.Success(c, messages)
}

// SendMessage handles POST /api/messages/:chat_id. The persisted message is
// fanned out to live sessions through the same path push-sent messages use.
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), c.Param("chat_id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.NotFound(c, "sender not found")
		case errors.Is(err, repository.ErrConversationNotFound):
			response.NotFound(c, "conversation not found")
		case errors.Is(err, service.ErrNotParticipant):
			response.BadRequest(c, "sender is not a participant of the conversation")
		default:
			response.InternalError(c, "failed to send message")
		}
		return
	}
	response.Created(c, msg)
}
