package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"blog-platform/auth-service/internal/auth/service"
	"blog-platform/auth-service/internal/server/httperrors"
	"blog-platform/auth-service/internal/telemetry"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AuthHandler serves the auth HTTP endpoints over the auth service.
type AuthHandler struct {
	service *service.AuthService
	log     *zap.Logger
	metrics *telemetry.Metrics
}

// NewAuthHandler returns an AuthHandler. log and metrics may be nil.
func NewAuthHandler(svc *service.AuthService, log *zap.Logger, metrics *telemetry.Metrics) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{service: svc, log: log, metrics: metrics}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if len(req.Username) < 3 {
		writeBadRequest(w, "VALIDATION_ERROR", "username must be at least 3 characters")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid email format")
		return
	}
	if len(req.Password) < 6 {
		writeBadRequest(w, "VALIDATION_ERROR", "password must be at least 6 characters")
		return
	}

	acct, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.record(r, "register", "failure")
		h.handleAuthError(w, err)
		return
	}
	h.record(r, "register", "success")

	httperrors.Write(w, http.StatusCreated, RegisterResponse{
		Message: "account created",
		User: UserPayload{
			ID:        acct.ID,
			Username:  acct.Username,
			Email:     acct.Email,
			AvatarURL: acct.AvatarURL,
		},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "identifier and password are required")
		return
	}

	pair, err := h.service.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.record(r, "login", "failure")
		h.handleAuthError(w, err)
		return
	}
	h.record(r, "login", "success")

	httperrors.Write(w, http.StatusOK, tokenPairResponse(pair))
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.record(r, "refresh", "failure")
		h.handleAuthError(w, err)
		return
	}
	h.record(r, "refresh", "success")

	httperrors.Write(w, http.StatusOK, tokenPairResponse(pair))
}

// Me handles GET /api/auth/me. The auth guard has already verified the
// access token and stored the identity in the context.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := service.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	acct, err := h.service.WhoAmI(r.Context(), identity.AccountID)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, MeResponse{
		ID:        acct.ID,
		Username:  acct.Username,
		Email:     acct.Email,
		AvatarURL: acct.AvatarURL,
		IsActive:  acct.IsActive,
		CreatedAt: acct.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout. Logout is idempotent: an unknown or
// already-revoked token still acknowledges success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := service.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req LogoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	if err := h.service.Logout(r.Context(), identity.AccountID, req.RefreshToken); err != nil {
		h.record(r, "logout", "failure")
		h.handleAuthError(w, err)
		return
	}
	h.record(r, "logout", "success")

	httperrors.Write(w, http.StatusOK, LogoutResponse{Message: "logged out"})
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	var tooMany *service.TooManyAttemptsError
	switch {
	case errors.As(err, &tooMany):
		w.Header().Set("Retry-After", strconv.FormatInt(tooMany.RetryAfterSec, 10))
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_MANY_ATTEMPTS",
			Message:       "too many login attempts",
			RetryAfterSec: tooMany.RetryAfterSec,
		})
	case errors.Is(err, service.ErrIdentifierTaken):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "CONFLICT", Message: "identifier already in use"})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeUnauthorized(w, "UNAUTHORIZED", "invalid credentials")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		writeUnauthorized(w, "UNAUTHORIZED", "invalid refresh token")
	case errors.Is(err, service.ErrRefreshTokenExpired):
		writeUnauthorized(w, "UNAUTHORIZED", "refresh token expired")
	case errors.Is(err, service.ErrAccountNotFound):
		writeUnauthorized(w, "UNAUTHORIZED", "user not found")
	default:
		h.log.Error("auth request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func (h *AuthHandler) record(r *http.Request, operation, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordAuthOperation(r.Context(), operation, outcome)
}

func tokenPairResponse(pair *service.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: UserPayload{
			ID:        pair.User.ID,
			Username:  pair.User.Username,
			Email:     pair.User.Email,
			AvatarURL: pair.User.AvatarURL,
		},
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
