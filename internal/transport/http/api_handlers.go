package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/core"
)

// ErrCodeIdentityTaken is the only account code with no WebSocket counterpart.
const ErrCodeIdentityTaken = "identity_taken"

// AccountHandlers reserve identities and hand out the tokens that claim them.
type AccountHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

func NewAccountHandlers(authService *auth.Service, logger *zerolog.Logger) *AccountHandlers {
	return &AccountHandlers{auth: authService, log: logger}
}

// CredentialsRequest is the body of both /api/register and /api/login.
// Length rules live in the auth service.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a grant. Identity is what setIdentity will bind to.
type TokenResponse struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	ExpiresAt string `json:"expiresAt"`
}

// ErrorResponse is the body of every failed API call. Code uses the same
// vocabulary as WebSocket error events.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Error: msg})
}

// Register handles POST /api/register.
func (h *AccountHandlers) Register(c *gin.Context) {
	h.issue(c, "register", http.StatusCreated, h.auth.Register)
}

// Login handles POST /api/login.
func (h *AccountHandlers) Login(c *gin.Context) {
	h.issue(c, "login", http.StatusOK, h.auth.Login)
}

type grantFunc func(ctx context.Context, identity, password string) (auth.Grant, error)

func (h *AccountHandlers) issue(c *gin.Context, action string, okStatus int, grant grantFunc) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("action", action).Msg("malformed credentials")
		abortWithError(c, http.StatusBadRequest, core.ErrCodeBadRequest, "username and password are required")
		return
	}

	g, err := grant(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		status, code, msg := accountFailure(err)
		event := h.log.Debug()
		if status == http.StatusInternalServerError {
			event = h.log.Error()
		}
		event.Err(err).
			Str("action", action).
			Str("identity", req.Username).
			Str("remote_addr", c.ClientIP()).
			Msg("account request rejected")
		abortWithError(c, status, code, msg)
		return
	}

	h.log.Info().
		Str("action", action).
		Str("identity", g.Identity).
		Time("expires_at", g.ExpiresAt).
		Msg("grant issued")
	c.JSON(okStatus, TokenResponse{
		Token:     g.Token,
		Identity:  g.Identity,
		ExpiresAt: g.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// accountFailure maps an auth service error to a status, code and client message.
// Store failures never leak their text.
func accountFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, auth.ErrIdentityTaken):
		return http.StatusConflict, ErrCodeIdentityTaken, "identity is already registered"
	case errors.Is(err, auth.ErrBadIdentity):
		return http.StatusBadRequest, core.ErrCodeBadRequest, "username must be 3-32 characters"
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, core.ErrCodeBadRequest, "password must be 6-72 bytes"
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized, core.ErrCodeUnauthorized, "unknown username or wrong password"
	default:
		return http.StatusInternalServerError, core.ErrCodeInternal, "internal server error"
	}
}
