package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cinevault/auth-service/internal/httputil"
	"github.com/cinevault/auth-service/internal/logging"
	"github.com/cinevault/auth-service/internal/ratelimit"
	"github.com/cinevault/auth-service/internal/token"
	"github.com/cinevault/auth-service/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	rateLimiter     *ratelimit.Limiter
	logger          *logging.Logger
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
	resetTokenTTL   time.Duration
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger, isProduction bool, accessDuration, refreshDuration, resetTokenTTL time.Duration) *Handler {
	return &Handler{
		service:         service,
		rateLimiter:     rateLimiter,
		logger:          logger,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		resetTokenTTL:   resetTokenTTL,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest represents an authenticated password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfileRequest represents a profile update; absent fields are untouched
type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthResponse represents a successful login or registration
type AuthResponse struct {
	User         user.View `json:"user"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
}

// RefreshResponse carries the reissued access token
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// checkRateLimit enforces the class limit for the client IP. It writes the
// 429 response itself and reports whether the caller should stop.
func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, class ratelimit.Class) bool {
	ip := getClientIP(r)
	result := h.rateLimiter.Check(r.Context(), ip, class)
	if result.Allowed {
		return true
	}

	logger := logging.GetLoggerFromContext(r.Context())
	logger.Warn("rate limit exceeded", "class", string(class), "ip", ip)

	seconds := int(result.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
	return false
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account with username, email and password. A verification email is sent.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration credentials"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request or weak password"
// @Failure      409 {object} ErrorResponse "Username or email already taken"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.checkRateLimit(w, r, ratelimit.ClassRegister) {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"username": req.Username})

	newUser, pair, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password, clientInfo(r))
	if err != nil {
		var weak *WeakPasswordError
		switch {
		case errors.Is(err, ErrUsernameTaken):
			logger.Warn("registration failed: username already exists")
			respondError(w, "username already exists", httputil.CodeUsernameTaken, http.StatusConflict)
		case errors.Is(err, ErrEmailTaken):
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailTaken, http.StatusConflict)
		case errors.As(err, &weak):
			logger.Warn("registration failed: weak password")
			httputil.RespondErrorWithDetails(w, "password does not meet requirements", httputil.CodeWeakPassword, weak.Violations, http.StatusBadRequest)
		case errors.Is(err, ErrValidation):
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	h.respondWithTokens(w, r, newUser, pair, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with username and password; returns access and refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      401 {object} ErrorResponse "Invalid credentials"
// @Failure      423 {object} ErrorResponse "Account temporarily locked"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.checkRateLimit(w, r, ratelimit.ClassLogin) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"username": req.Username})

	u, pair, err := h.service.Login(r.Context(), req.Username, req.Password, clientInfo(r))
	if err != nil {
		var invalidCreds *InvalidCredentialsError
		var locked *AccountLockedError
		switch {
		case errors.As(err, &invalidCreds):
			logger.Warn("login failed: invalid credentials")
			body := map[string]any{
				"error": invalidCreds.Error(),
				"code":  httputil.CodeInvalidCredentials,
			}
			if invalidCreds.RemainingAttempts >= 0 {
				body["remaining_attempts"] = invalidCreds.RemainingAttempts
			}
			respondJSON(w, body, http.StatusUnauthorized)
		case errors.As(err, &locked):
			logger.Warn("login failed: account locked", "retry_in", locked.RetryIn.String())
			respondJSON(w, map[string]any{
				"error":            locked.Error(),
				"code":             httputil.CodeAccountLocked,
				"retry_after_mins": locked.RemainingMinutes(),
			}, http.StatusLocked)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in successfully", "user_id", u.ID)

	h.respondWithTokens(w, r, u, pair, http.StatusOK)
}

// respondWithTokens delivers tokens via cookies for browsers and via the
// response body for API clients.
func (h *Handler) respondWithTokens(w http.ResponseWriter, r *http.Request, u *user.User, pair token.Pair, status int) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, AuthResponse{User: u.ToView()}, status)
		return
	}

	respondJSON(w, AuthResponse{
		User:         u.ToView(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}, status)
}

// Refresh handles access token refresh
// @Summary      Refresh access token
// @Description  Exchange a live refresh token for a new access token. The refresh token is not rotated.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token (falls back to cookie)"
// @Success      200 {object} RefreshResponse
// @Failure      400 {object} ErrorResponse "Refresh token missing"
// @Failure      401 {object} ErrorResponse "Invalid, expired or revoked refresh token"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.checkRateLimit(w, r, ratelimit.ClassRefresh) {
		return
	}

	// Try JSON body first, then fall back to the cookie
	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		if cookieToken, err := GetRefreshTokenFromCookie(r); err == nil {
			refreshToken = cookieToken
		}
	}
	refreshToken = strings.TrimSpace(refreshToken)

	accessToken, u, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingRefreshToken):
			logger.Warn("refresh token missing from both body and cookie")
			respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidRefreshToken):
			logger.Warn("token refresh failed: invalid or revoked token")
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
		default:
			logger.Error("token refresh failed: internal error", "error", err.Error())
			respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("access token refreshed successfully", "user_id", u.ID)

	if ShouldUseCookies(r) {
		SetAuthCookies(w, accessToken, refreshToken, h.isProduction, h.accessDuration, h.refreshDuration)
		respondJSON(w, map[string]string{"message": "token refreshed successfully"}, http.StatusOK)
		return
	}

	respondJSON(w, RefreshResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.accessDuration.Seconds()),
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the presented refresh token and clear auth cookies. Idempotent.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var refreshToken string
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		refreshToken, _ = GetRefreshTokenFromCookie(r)
	}

	if err := h.service.Logout(r.Context(), userID, refreshToken); err != nil {
		logger.Warn("failed to revoke refresh session", "error", err.Error())
		// Still clear cookies so the browser forgets the tokens
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully", "user_id", userID)

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// LogoutAll handles revoking every session for the caller
// @Summary      Logout everywhere
// @Description  Revoke all refresh sessions for the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      401 {object} ErrorResponse "Authentication required"
// @Router       /auth/logout-all [post]
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		logger.Error("failed to revoke sessions", "error", err.Error())
		respondError(w, "failed to logout", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	ClearAuthCookies(w)

	logger.Info("all sessions revoked", "user_id", userID)

	respondJSON(w, map[string]string{"message": "logged out from all devices"}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link to the user's email. Always returns success to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request body"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.checkRateLimit(w, r, ratelimit.ClassPasswordReset) {
		return
	}

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	// Always succeeds from the client's point of view
	_ = h.service.RequestPasswordReset(r.Context(), req.Email, h.resetTokenTTL)

	respondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Set a new password using a valid reset token. Revokes all sessions.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request, weak password, or bad token"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	// Token guessing is otherwise free, and each attempt costs a bcrypt hash.
	if !h.checkRateLimit(w, r, ratelimit.ClassPasswordReset) {
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var weak *WeakPasswordError
		switch {
		case errors.Is(err, ErrInvalidResetToken):
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case errors.As(err, &weak):
			logger.Warn("password reset failed: weak password")
			httputil.RespondErrorWithDetails(w, "password does not meet requirements", httputil.CodeWeakPassword, weak.Violations, http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// ChangePassword handles an authenticated password change
// @Summary      Change password
// @Description  Change the caller's password after verifying the current one. Revokes all sessions.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordRequest true "Current and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid request or weak password"
// @Failure      401 {object} ErrorResponse "Current password incorrect"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/change-password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid change password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var weak *WeakPasswordError
		switch {
		case errors.Is(err, ErrInvalidCurrentPassword):
			logger.Warn("password change failed: current password incorrect")
			respondError(w, "current password is incorrect", httputil.CodeInvalidCurrentPassword, http.StatusUnauthorized)
		case errors.As(err, &weak):
			logger.Warn("password change failed: weak password")
			httputil.RespondErrorWithDetails(w, "password does not meet requirements", httputil.CodeWeakPassword, weak.Violations, http.StatusBadRequest)
		default:
			logger.Error("password change failed: internal error", "error", err.Error())
			respondError(w, "failed to change password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	ClearAuthCookies(w)

	logger.Info("password changed successfully", "user_id", userID)

	respondJSON(w, map[string]string{
		"message": "Password changed successfully. Please login again.",
	}, http.StatusOK)
}

// Me returns the authenticated user's profile
// @Summary      Current user
// @Description  Return the authenticated user's profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} user.View
// @Failure      401 {object} ErrorResponse "Authentication required"
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		logger.Error("failed to load profile", "error", err.Error())
		respondError(w, "failed to load profile", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, u.ToView(), http.StatusOK)
}

// UpdateProfile handles username/email changes
// @Summary      Update profile
// @Description  Change username and/or email. A changed email must be re-verified.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body UpdateProfileRequest true "Fields to update"
// @Success      200 {object} user.View
// @Failure      400 {object} ErrorResponse "Invalid request"
// @Failure      409 {object} ErrorResponse "Username or email already taken"
// @Router       /auth/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile update request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), userID, req.Username, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			respondError(w, "username already exists", httputil.CodeUsernameTaken, http.StatusConflict)
		case errors.Is(err, ErrEmailTaken):
			respondError(w, "email already exists", httputil.CodeEmailTaken, http.StatusConflict)
		case errors.Is(err, ErrValidation):
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("profile update failed: internal error", "error", err.Error())
			respondError(w, "failed to update profile", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("profile updated", "user_id", userID)

	respondJSON(w, updated.ToView(), http.StatusOK)
}

// VerifyEmail handles email verification
// @Summary      Verify email address
// @Description  Verify an email address using the token sent via email
// @Tags         auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Invalid or missing token"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /auth/verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	verificationToken := r.URL.Query().Get("token")
	if verificationToken == "" {
		logger.Warn("email verification failed: token missing")
		respondError(w, "verification token required", httputil.CodeInvalidToken, http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), verificationToken); err != nil {
		if errors.Is(err, ErrInvalidVerifyToken) {
			logger.Warn("email verification failed: invalid token")
			respondError(w, "invalid verification token", httputil.CodeInvalidToken, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified successfully")

	respondJSON(w, map[string]string{
		"message": "Email verified successfully.",
	}, http.StatusOK)
}

// SecurityInfo returns the caller's account security summary
// @Summary      Account security info
// @Description  Lockout state, active session count and audit timestamps for the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} SecurityInfo
// @Failure      401 {object} ErrorResponse "Authentication required"
// @Router       /auth/security-info [get]
func (h *Handler) SecurityInfo(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	info, err := h.service.GetSecurityInfo(r.Context(), userID)
	if err != nil {
		logger.Error("failed to load security info", "error", err.Error())
		respondError(w, "failed to load security info", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, info, http.StatusOK)
}

// clientInfo captures request metadata recorded on successful logins.
func clientInfo(r *http.Request) ClientInfo {
	return ClientInfo{
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port", extract just the IP
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
