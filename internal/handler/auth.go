package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const authTimeout = 5 * time.Second

var errBadRefresh = errors.New("refresh token is invalid or expired")

// UserStore is the account persistence the auth endpoints need.
type UserStore interface {
	CreateWithWallet(ctx context.Context, email, fullName, password, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenStore keeps hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
}

// AuthHandler serves account registration and the token session flow.
// Organisers and buyers share it; the role picks what they may do later.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"` // CUSTOMER or ORGANISER, register only
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshBody) hash() (string, bool) {
	raw := strings.TrimSpace(r.RefreshToken)
	return utils.HashRefreshRaw(raw), raw != ""
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func profile(u *model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

type session struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// bindCredentials normalises the body and reports missing or malformed
// fields as a ValidationError.
func bindCredentials(c echo.Context) (credentials, error) {
	var in credentials
	if err := c.Bind(&in); err != nil {
		return in, model.NewValidationError("body", "request body must be JSON")
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	verr := &model.ValidationError{}
	if _, err := mail.ParseAddress(in.Email); in.Email == "" || err != nil {
		verr.Add("email", "a valid email is required")
	}
	if in.Password == "" {
		verr.Add("password", "password is required")
	}
	if !verr.Empty() {
		return in, verr
	}
	return in, nil
}

// startSession signs an access token and stores a fresh refresh token.
// The raw refresh token is returned to the client only here.
func (h *AuthHandler) startSession(ctx context.Context, u userPart) (session, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return session{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return session{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return session{}, err
	}
	return session{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register handles POST /v1/auth/register.  The account is created with
// its wallet and signed in straight away.
func (h *AuthHandler) Register(c echo.Context) error {
	in, err := bindCredentials(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := utils.CheckPassword(in.Password); err != nil {
		return writeError(c, model.NewValidationError("password", err.Error()))
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role != model.RoleOrganiser {
		role = model.RoleCustomer
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()
	uid, err := h.Users.CreateWithWallet(ctx, in.Email, in.FullName, in.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		return writeError(c, err)
	}
	s, err := h.startSession(ctx, userPart{ID: uid, Email: in.Email, FullName: in.FullName, Role: role})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Login handles POST /v1/auth/login.  Unknown, inactive and wrong
// password accounts get the same answer.
func (h *AuthHandler) Login(c echo.Context) error {
	in, err := bindCredentials(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "email or password is incorrect"})
	case err != nil:
		return writeError(c, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "email or password is incorrect"})
	}
	s, err := h.startSession(ctx, profile(u))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Refresh handles POST /v1/auth/refresh.  The presented token is revoked
// and replaced, so each refresh token works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var body refreshBody
	_ = c.Bind(&body)
	hash, ok := body.hash()
	if !ok {
		return writeError(c, model.NewValidationError("refresh_token", "refresh_token is required"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	uid, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": errBadRefresh.Error()})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": errBadRefresh.Error()})
	case err != nil:
		return writeError(c, err)
	}
	s, err := h.startSession(ctx, profile(u))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Logout handles POST /v1/auth/logout by revoking the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var body refreshBody
	_ = c.Bind(&body)
	hash, ok := body.hash()
	if !ok {
		return writeError(c, model.NewValidationError("refresh_token", "refresh_token is required"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": errBadRefresh.Error()})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
	case err != nil:
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, profile(u))
}
