// Package api provides HTTP handlers and routing for the control-plane.
// It includes authentication, broker-event publishing, and transaction
// introspection endpoints.
package api

import (
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"kgcp.evalgo.org/db"
	"kgcp.evalgo.org/queue"
	"kgcp.evalgo.org/security"
)

// Handlers contains the service dependencies required for API operations.
// Events is optional: publishing endpoints answer 503 with a clear message
// when no broker is configured rather than nil-dereferencing.
type Handlers struct {
	Events       queue.EventPublisher // broker publisher for control-plane events
	Transactions *db.TransactionStore // durable transaction lifecycle store
	JWT          *security.JWTService // JWT service for token generation and validation
}

// SetupRoutes configures the public and JWT-protected routes for the
// control-plane HTTP API under /v1/api.
//
// Public routes:
//   - POST /auth/token - generate an authentication token
//
// Protected routes (require JWT authentication):
//   - POST /v1/api/events - publish a control-plane event to the broker
//   - GET /v1/api/transactions/:id - fetch one transaction by id
//   - GET /v1/api/transactions - list transactions with a given status (open when none is given)
func SetupRoutes(e *echo.Echo, h *Handlers, signingKey string) {
	auth := e.Group("/auth")
	auth.POST("/token", h.GenerateToken)

	protected := e.Group("/v1/api")
	protected.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(signingKey),
		TokenLookup: "header:Authorization:Bearer ",
	}))

	protected.POST("/events", h.PublishEvent)
	protected.GET("/transactions/:id", h.GetTransaction)
	protected.GET("/transactions", h.GetTransactionsByStatus)
}

// TokenRequest is the request payload for token generation.
type TokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TokenResponse carries the generated JWT token.
type TokenResponse struct {
	Token string `json:"token"`
}

// GenerateToken issues a 24-hour JWT bound to the given user id.
//
// Endpoint: POST /auth/token
func (h *Handlers) GenerateToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	token, err := h.JWT.GenerateToken(req.UserID, 24*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
	}

	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// PublishEvent forwards a control-plane event to the configured broker.
//
// Endpoint: POST /v1/api/events
// Authentication: required (JWT Bearer token)
func (h *Handlers) PublishEvent(c echo.Context) error {
	if h.Events == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no event broker configured"})
	}

	var event queue.BrokerEvent
	if err := c.Bind(&event); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid event format"})
	}
	if event.EventType == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "event_type is required"})
	}
	if event.Timestamp == 0 {
		event.Timestamp = float64(time.Now().Unix())
	}

	broadcast := c.QueryParam("broadcast") == "true"
	if err := h.Events.PublishEvent(event, broadcast); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to publish event"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "event published"})
}

// GetTransaction fetches one transaction record by txn id.
//
// Endpoint: GET /v1/api/transactions/:id
// Authentication: required (JWT Bearer token)
func (h *Handlers) GetTransaction(c echo.Context) error {
	txnID := c.Param("id")
	if txnID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "transaction id is required"})
	}

	rec, err := h.Transactions.Get(c.Request().Context(), txnID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transaction not found"})
	}

	return c.JSON(http.StatusOK, rec)
}

// GetTransactionsByStatus lists transactions with the status given in the
// status query parameter (open, committed, rolled_back); open when omitted.
//
// Endpoint: GET /v1/api/transactions
// Authentication: required (JWT Bearer token)
func (h *Handlers) GetTransactionsByStatus(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = db.TxOpen
	}

	validStatuses := []string{db.TxOpen, db.TxCommitted, db.TxRolledBack}
	isValid := false
	for _, s := range validStatuses {
		if status == s {
			isValid = true
			break
		}
	}
	if !isValid {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status value"})
	}

	recs, err := h.Transactions.GetByStatus(c.Request().Context(), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to retrieve transactions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"transactions": recs,
		"count":        len(recs),
	})
}
