package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	dto "github.com/crewgate/crewgate/internal/http/dto/auth"
	httperrors "github.com/crewgate/crewgate/internal/http/errors"
	"github.com/crewgate/crewgate/internal/http/middlewares"
	svc "github.com/crewgate/crewgate/internal/http/services/auth"
	"github.com/crewgate/crewgate/internal/observability/logger"
	"github.com/crewgate/crewgate/internal/security/lockout"
)

const (
	maxAuthBodySize = 64 * 1024 // 64KB
	contentTypeJSON = "application/json; charset=utf-8"
)

// LoginController maneja el endpoint de login con password.
type LoginController struct {
	service svc.LoginService
}

// NewLoginController crea un nuevo controller de login.
func NewLoginController(service svc.LoginService) *LoginController {
	return &LoginController{service: service}
}

// Login maneja POST /api/auth/login
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBodySize)
	defer r.Body.Close()

	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}
	if req.MFACode == "" {
		req.MFACode = req.MFAToken
	}

	result, err := c.service.LoginPassword(ctx, req, requestMeta(r))
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		writeLoginError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// ─── Helpers ───

func requestMeta(r *http.Request) svc.RequestMeta {
	return svc.RequestMeta{
		IP:                middlewares.ClientIP(r),
		UserAgent:         r.UserAgent(),
		DeviceFingerprint: r.Header.Get("X-Device-Fingerprint"),
	}
}

func writeLoginError(w http.ResponseWriter, err error) {
	var locked *lockout.LockedError

	switch {
	case errors.As(err, &locked):
		// 423 con Retry-After para que el cliente sepa cuándo reintentar.
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(locked.RetryAfter.Seconds())))
		httperrors.WriteError(w, httperrors.ErrAccountLocked)

	case errors.Is(err, svc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("email y password son obligatorios"))

	case errors.Is(err, svc.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)

	case errors.Is(err, svc.ErrMFARequired):
		httperrors.WriteError(w, httperrors.ErrMFARequired)

	case errors.Is(err, svc.ErrMFAInvalid):
		httperrors.WriteError(w, httperrors.ErrMFAInvalid)

	case errors.Is(err, svc.ErrStoreUnavailable):
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)

	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
