package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/auth"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// AuthHandler handles signup, login and account lifecycle endpoints
type AuthHandler struct {
	users   *repositories.UserRepository
	tokens  *auth.TokenService
	emitter *events.Emitter
	logger  ectologger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *repositories.UserRepository, tokens *auth.TokenService, emitter *events.Emitter, logger ectologger.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		tokens:  tokens,
		emitter: emitter,
		logger:  logger,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// DeleteAccountRequest represents the account deletion request body
type DeleteAccountRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
}

// TokenResponse is the token payload returned by signup, login and refresh
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

// Register registers the public auth routes
func (h *AuthHandler) Register(g *echo.Group) {
	g.POST("/signup", h.Signup)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
}

// RegisterProtected registers the auth routes requiring a valid token
func (h *AuthHandler) RegisterProtected(g *echo.Group) {
	g.GET("/me", h.Me)
	g.DELETE("/account", h.DeleteAccount)
}

// Signup creates a user account and signs it in
func (h *AuthHandler) Signup(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AuthHandler.Signup")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	req, err := validation.BindRequest[SignupRequest](c)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to hash password")
		return repositories.Internal("failed to create account")
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := h.users.Create(ctx, user); err != nil {
		return err
	}

	access, refresh, expiresAt, err := h.tokens.GenerateTokenPair(user.ID.String(), user.Email)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to issue tokens")
		return repositories.Internal("failed to create account")
	}

	h.logger.WithContext(ctx).WithField("user_id", user.ID).Info("Created user account")
	return CreatedResponse(c, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         user,
	})
}

// Login authenticates a user by email and password
func (h *AuthHandler) Login(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AuthHandler.Login")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	req, err := validation.BindRequest[LoginRequest](c)
	if err != nil {
		return err
	}

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		// Same response for unknown email and bad password
		return Unauthorized("invalid email or password")
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return Unauthorized("invalid email or password")
	}

	access, refresh, expiresAt, err := h.tokens.GenerateTokenPair(user.ID.String(), user.Email)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to issue tokens")
		return repositories.Internal("failed to sign in")
	}

	return SuccessResponse(c, TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         user,
	})
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AuthHandler.Refresh")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	req, err := validation.BindRequest[RefreshRequest](c)
	if err != nil {
		return err
	}

	access, expiresAt, err := h.tokens.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		return Unauthorized("invalid refresh token")
	}

	return SuccessResponse(c, TokenResponse{
		AccessToken: access,
		ExpiresAt:   expiresAt,
	})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AuthHandler.Me")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, user)
}

// DeleteAccount erases the authenticated user's account. The current password
// is rechecked; the wrong password mutates nothing. Erasure replaces the email
// with a placeholder, sets deleted_at and removes all memberships atomically.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "AuthHandler.DeleteAccount")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	req, err := validation.BindRequest[DeleteAccountRequest](c)
	if err != nil {
		return err
	}

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		return Unauthorized("current password is incorrect")
	}

	if err := h.users.DeleteAccount(ctx, userID); err != nil {
		return err
	}

	_ = h.emitter.EmitAccountDeleted(ctx, userID.String())
	return NoContentResponse(c)
}
