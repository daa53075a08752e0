package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

type memTokens struct {
	mu      sync.Mutex
	owners  map[string]uint64
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owners: map[string]uint64{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string, _ time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.owners[hash]
	if !ok || m.revoked[hash] {
		return 0, errors.New("invalid refresh")
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func newAuthServer() *echo.Echo {
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	a := NewAuthHandler(cfg, newFakeUsers(), newMemTokens())
	e := echo.New()
	e.POST("/v1/auth/register", a.Register)
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/refresh", a.Refresh)
	e.POST("/v1/auth/logout", a.Logout)
	e.GET("/v1/me", a.Me, middleware.JWTAuth(testSecret))
	return e
}

func decodeAuth(t *testing.T, body []byte) session {
	t.Helper()
	var r session
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func TestAuthFlow(t *testing.T) {
	e := newAuthServer()

	rec := do(e, http.MethodPost, "/v1/auth/register",
		`{"email":" Ada@Example.com ","full_name":"Ada Obi","password":"s3cret","role":"organiser"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeAuth(t, rec.Body.Bytes())
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.Equal(t, model.RoleOrganiser, reg.User.Role)
	assert.NotEmpty(t, reg.Access.Token)

	rec = do(e, http.MethodPost, "/v1/auth/register", `{"email":"ada@example.com","password":"another1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"ada@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"ada@example.com","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeAuth(t, rec.Body.Bytes())

	rec = do(e, http.MethodGet, "/v1/me", "", login.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"full_name":"Ada Obi"`)

	// Refresh rotates: the old token stops working.
	rec = do(e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeAuth(t, rec.Body.Bytes())
	assert.NotEqual(t, login.Refresh.Token, rotated.Refresh.Token)
	rec = do(e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+login.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(e, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated.Refresh.Token+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_UnknownRoleFallsBackToCustomer(t *testing.T) {
	e := newAuthServer()
	rec := do(e, http.MethodPost, "/v1/auth/register", `{"email":"c@example.com","password":"longenough","role":"ADMIN"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.RoleCustomer, decodeAuth(t, rec.Body.Bytes()).User.Role)
}

func TestRegister_RequiresCredentials(t *testing.T) {
	e := newAuthServer()
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/auth/register", `{"email":"c@example.com"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/v1/auth/logout", `{}`, "").Code)

	rec := do(e, http.MethodPost, "/v1/auth/register", `{"email":"c@example.com","password":"abc"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"password"`)

	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"not-an-address","password":"longenough"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)
}
