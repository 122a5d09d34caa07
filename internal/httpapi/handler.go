// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package httpapi exposes the auth service over JSON HTTP using gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// ResetAcceptedMessage is returned for every password reset request,
// whether or not an email was sent.
const ResetAcceptedMessage = "if an account exists for that email, a reset link has been sent"

const msgBadBody = "invalid request body"

// AuthService is the subset of *auth.Service the handlers call.
type AuthService interface {
	CreateAccount(ctx context.Context, email, password, userAgent string) (*auth.AccountResult, error)
	Login(ctx context.Context, email, password, userAgent string) (*auth.AccountResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.RefreshResult, error)
	VerifyEmail(ctx context.Context, codeID string) (*auth.PublicUser, error)
	RequestPasswordReset(ctx context.Context, email string) auth.ResetRequestResult
	CompletePasswordReset(ctx context.Context, codeID, newPassword string) (*auth.PublicUser, error)
}

// Handler serves the /auth routes.
type Handler struct {
	svc    AuthService
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger discards.
func NewHandler(svc AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the auth routes on r.
func (h *Handler) Routes(r gin.IRouter) {
	g := r.Group("/auth")
	g.POST("/register", h.CreateAccount)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.GET("/verify-email", h.VerifyEmail)
	g.POST("/password-reset", h.RequestPasswordReset)
	g.POST("/password-reset/complete", h.CompletePasswordReset)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type completeResetRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	User auth.PublicUser `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// CreateAccount handles POST /auth/register.
func (h *Handler) CreateAccount(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.CreateAccount(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		h.fail(c, auth.OpCreateAccount, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		h.fail(c, auth.OpLogin, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, auth.OpRefresh, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyEmail handles GET /auth/verify-email?code=.
func (h *Handler) VerifyEmail(c *gin.Context) {
	user, err := h.svc.VerifyEmail(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.fail(c, auth.OpVerifyEmail, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{User: *user})
}

// RequestPasswordReset handles POST /auth/password-reset. The response is
// the same for every well-formed request.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if !h.bind(c, &req) {
		return
	}
	_ = h.svc.RequestPasswordReset(c.Request.Context(), req.Email)
	c.JSON(http.StatusAccepted, messageResponse{Message: ResetAcceptedMessage})
}

// CompletePasswordReset handles POST /auth/password-reset/complete.
func (h *Handler) CompletePasswordReset(c *gin.Context) {
	var req completeResetRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.CompletePasswordReset(c.Request.Context(), req.Code, req.NewPassword)
	if err != nil {
		h.fail(c, auth.OpCompletePasswordReset, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{User: *user})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.DebugContext(c.Request.Context(), "malformed request body",
			"event", "bad_request_body",
			"path", c.FullPath(),
			"error", err,
		)
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msgBadBody})
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogError(h.logger, "request failed", err,
			"event", "request_failed",
			"operation", op,
			"path", c.FullPath(),
		)
	}
	c.AbortWithStatusJSON(StatusFor(kind), errorResponse{Error: auth.PublicMessage(err)})
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindBadRequest:
		return http.StatusBadRequest
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
