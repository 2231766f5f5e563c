package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fieme-one/Teleserver/internal/telegram"
	"github.com/fieme-one/Teleserver/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultServiceName = "Telegram Login Backend"
	rootMessage        = "Backend is working! Don't worry"
)

const (
	messageInvalidBody     = "Invalid request body"
	messageMissingFields   = "Missing required fields: id and hash are required"
	messageInvalidAuth     = "Invalid Telegram authentication data"
	messageDatabaseError   = "Database error occurred"
	messageInternalError   = "Internal server error"
	messageLoginSuccessful = "Login successful"
)

var (
	errMissingVerifier     = errors.New("signature verifier dependency required")
	errMissingLoginService = errors.New("login service dependency required")
)

// SignatureVerifier checks a claim set signature.
type SignatureVerifier interface {
	Verify(claims *telegram.ClaimSet) bool
}

// LoginService records a verified login and returns the stored user.
type LoginService interface {
	Login(ctx context.Context, claims telegram.ClaimSet) (users.User, error)
}

// Dependencies wires the HTTP layer to its collaborators.
type Dependencies struct {
	Verifier       SignatureVerifier
	LoginService   LoginService
	Logger         *zap.Logger
	AllowedOrigins []string
	ServiceName    string
	Clock          func() time.Time
}

// NewHTTPHandler builds the gin engine serving login, health and metrics routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.LoginService == nil {
		return nil, errMissingLoginService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	handler := &httpHandler{
		verifier:     deps.Verifier,
		loginService: deps.LoginService,
		logger:       logger,
		clock:        clock,
		serviceName:  serviceName,
	}

	router := gin.New()
	router.Use(recoveryMiddleware(logger))
	router.Use(requestIDMiddleware())
	router.Use(metricsMiddleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.POST("/telegram-login", handler.handleTelegramLogin)
	router.GET("/health", handler.handleHealth)
	router.GET("/", handler.handleRoot)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router, nil
}

type httpHandler struct {
	verifier     SignatureVerifier
	loginService LoginService
	logger       *zap.Logger
	clock        func() time.Time
	serviceName  string
}

type loginResponsePayload struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    *loginUserPayload `json:"user,omitempty"`
}

type loginUserPayload struct {
	ID        string  `json:"id"`
	Username  *string `json:"username,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	PhotoURL  *string `json:"photo_url,omitempty"`
}

func (h *httpHandler) handleTelegramLogin(c *gin.Context) {
	requestLogger := h.logger.With(zap.String(fieldRequestID, c.GetString(requestIDContextKey)))

	var claims telegram.ClaimSet
	if err := c.ShouldBindJSON(&claims); err != nil {
		requestLogger.Info("telegram login body rejected", zap.Error(err))
		recordLoginOutcome(outcomeMalformed)
		c.JSON(http.StatusBadRequest, loginResponsePayload{Message: messageInvalidBody})
		return
	}

	if err := claims.Validate(); err != nil {
		requestLogger.Info("telegram login missing fields", zap.Error(err))
		recordLoginOutcome(outcomeMalformed)
		c.JSON(http.StatusBadRequest, loginResponsePayload{Message: messageMissingFields})
		return
	}

	if !h.verifier.Verify(&claims) {
		requestLogger.Warn("telegram signature rejected", zap.String(fieldTelegramID, claims.ID.Value))
		recordLoginOutcome(outcomeRejected)
		c.JSON(http.StatusUnauthorized, loginResponsePayload{Message: messageInvalidAuth})
		return
	}

	user, err := h.loginService.Login(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			recordLoginOutcome(outcomeMalformed)
			c.JSON(http.StatusBadRequest, loginResponsePayload{Message: messageMissingFields})
			return
		}
		requestLogger.Error("telegram login persistence failed",
			zap.String(fieldTelegramID, claims.ID.Value),
			zap.Error(err))
		recordLoginOutcome(outcomeStoreError)
		c.JSON(http.StatusInternalServerError, loginResponsePayload{Message: messageDatabaseError})
		return
	}

	recordLoginOutcome(outcomeSuccess)
	requestLogger.Info("telegram login succeeded", zap.String(fieldTelegramID, user.TelegramID))
	c.JSON(http.StatusOK, loginResponsePayload{
		Success: true,
		Message: messageLoginSuccessful,
		User: &loginUserPayload{
			ID:        user.TelegramID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			PhotoURL:  user.Picture,
		},
	})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.clock().UTC().Format(time.RFC3339Nano),
		"service":   h.serviceName,
	})
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, rootMessage)
}
