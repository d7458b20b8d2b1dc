// Package api provides tests for authentication and event-publishing handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgcp.evalgo.org/queue"
	"kgcp.evalgo.org/security"
)

type mockPublisher struct {
	published []queue.BrokerEvent
	err       error
}

func (m *mockPublisher) PublishEvent(event queue.BrokerEvent, broadcast bool) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func TestGenerateTokenSuccess(t *testing.T) {
	e := echo.New()
	jwtService := security.NewJWTService("test-secret-key")
	handlers := &Handlers{JWT: jwtService}

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"user_id":"user123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.GenerateToken(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Token)

	token, err := jwtService.ValidateToken(response.Token)
	require.NoError(t, err)
	assert.Equal(t, "user123", token.Subject())
}

func TestGenerateTokenEmptyUserID(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{JWT: security.NewJWTService("test-secret-key")}

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"user_id":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.GenerateToken(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateTokenInvalidBody(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{JWT: security.NewJWTService("test-secret-key")}

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.GenerateToken(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishEventSuccess(t *testing.T) {
	e := echo.New()
	pub := &mockPublisher{}
	handlers := &Handlers{Events: pub}

	body := `{"event_type":"SPLIT","payload":{"tick":1},"source":"workflow-1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/api/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.PublishEvent(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "SPLIT", pub.published[0].EventType)
	assert.NotZero(t, pub.published[0].Timestamp)
}

func TestPublishEventMissingType(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{Events: &mockPublisher{}}

	req := httptest.NewRequest(http.MethodPost, "/v1/api/events", strings.NewReader(`{"payload":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.PublishEvent(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishEventNoBrokerConfigured(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{}

	req := httptest.NewRequest(http.MethodPost, "/v1/api/events", strings.NewReader(`{"event_type":"SPLIT"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.PublishEvent(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPublishEventPublisherFailure(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{Events: &mockPublisher{err: errors.New("broker unreachable")}}

	req := httptest.NewRequest(http.MethodPost, "/v1/api/events", strings.NewReader(`{"event_type":"SPLIT"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.PublishEvent(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetTransactionMissingID(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{}

	req := httptest.NewRequest(http.MethodGet, "/v1/api/transactions/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("")

	require.NoError(t, handlers.GetTransaction(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransactionsByStatusInvalidStatus(t *testing.T) {
	e := echo.New()
	handlers := &Handlers{}

	req := httptest.NewRequest(http.MethodGet, "/v1/api/transactions?status=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handlers.GetTransactionsByStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
