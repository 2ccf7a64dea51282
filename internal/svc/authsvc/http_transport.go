package authsvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/inkspira/internal/domain"
	context_ "github.com/mkrupp/inkspira/internal/infra/context"
	"github.com/mkrupp/inkspira/internal/infra/logging"
	http_ "github.com/mkrupp/inkspira/internal/infra/transport/http"
)

var (
	// ErrNoEmail is returned when the email is missing from the request.
	ErrNoEmail = fmt.Errorf("%w: no email", domain.ErrInvalidArgument)
	// ErrNoPassword is returned when the password is missing from the request.
	ErrNoPassword = fmt.Errorf("%w: no password", domain.ErrInvalidArgument)
	// ErrNoToken is returned when a refresh or reset token is missing from the request.
	ErrNoToken = fmt.Errorf("%w: no token", domain.ErrInvalidArgument)
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport serves the auth API.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
	router  chi.Router
}

// NewHTTPTransport creates the transport and its routes:
//
//	POST   /auth/register       email, password
//	POST   /auth/login          email, password
//	POST   /auth/logout         refreshToken
//	POST   /auth/refresh        refreshToken
//	POST   /auth/reset          email
//	POST   /auth/reset/confirm  token, password
//	POST   /auth/validate       bearer token
//	DELETE /auth/account        bearer token
func NewHTTPTransport(authSvc *AuthService, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
	}

	r := http_.NewRouter("authsvc")
	r.Post("/auth/register", ht.HandleRegister)
	r.Post("/auth/login", ht.HandleLogin)
	r.Post("/auth/logout", ht.HandleLogout)
	r.Post("/auth/refresh", ht.HandleRefresh)
	r.Post("/auth/reset", ht.HandleResetRequest)
	r.Post("/auth/reset/confirm", ht.HandleResetConfirm)
	r.Post("/auth/validate", ht.HandleValidate)
	r.With(http_.AuthorizingMiddleware(ht, ht.log, true)).
		Delete("/auth/account", ht.HandleDeleteAccount)

	ht.router = r

	return ht
}

func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

var (
	_ http_.HTTPTransport  = (*HTTPTransport)(nil)
	_ http_.TokenValidator = (*HTTPTransport)(nil)
)

// Validate resolves a bearer token for the routes this service protects itself.
func (ht *HTTPTransport) Validate(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := ht.authSvc.ValidateToken(ctx, token)
	if err != nil {
		return domain.Principal{}, err
	}

	return domain.Principal{UserID: claims.UserID(), Email: claims.Email}, nil
}

// handle runs fn, logs its outcome and writes the error response if fn fails.
func (ht *HTTPTransport) handle(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func() error,
) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	err := fn()
	if err != nil {
		log.ErrorContext(r.Context(), action+" failed", "error", err)
		http_.WriteError(w, err)

		return
	}

	log.DebugContext(r.Context(), action+" succeeded")
}

func formValue(r *http.Request, key string, missing error) (string, error) {
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("%w: parse form: %w", domain.ErrInvalidArgument, err)
	}

	value := r.FormValue(key)
	if value == "" {
		return "", missing
	}

	return value, nil
}

func credentials(r *http.Request) (string, string, error) {
	email, err := formValue(r, "email", ErrNoEmail)
	if err != nil {
		return "", "", err
	}

	password, err := formValue(r, "password", ErrNoPassword)
	if err != nil {
		return "", "", err
	}

	return email, password, nil
}

// HandleRegister creates an account and answers 201 with its id and email.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "register", func() error {
		email, password, err := credentials(r)
		if err != nil {
			return err
		}

		acc, err := ht.authSvc.Register(r.Context(), email, password)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}

		http_.WriteJSON(w, http.StatusCreated, domain.Principal{UserID: acc.ID, Email: acc.Email})

		return nil
	})
}

// HandleLogin answers with a fresh token pair.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "login", func() error {
		email, password, err := credentials(r)
		if err != nil {
			return err
		}

		tokens, err := ht.authSvc.Login(r.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		http_.WriteJSON(w, http.StatusOK, tokens)

		return nil
	})
}

// HandleLogout revokes the session of the posted refresh token.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "logout", func() error {
		token, err := formValue(r, "refreshToken", ErrNoToken)
		if err != nil {
			return err
		}

		if err := ht.authSvc.Logout(r.Context(), token); err != nil {
			return fmt.Errorf("logout: %w", err)
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})
}

// HandleRefresh rotates the posted refresh token.
func (ht *HTTPTransport) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "refresh", func() error {
		token, err := formValue(r, "refreshToken", ErrNoToken)
		if err != nil {
			return err
		}

		tokens, err := ht.authSvc.Refresh(r.Context(), token)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}

		http_.WriteJSON(w, http.StatusOK, tokens)

		return nil
	})
}

// HandleResetRequest always answers 204 for well-formed emails.
func (ht *HTTPTransport) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "password reset request", func() error {
		email, err := formValue(r, "email", ErrNoEmail)
		if err != nil {
			return err
		}

		if err := ht.authSvc.RequestPasswordReset(r.Context(), email); err != nil {
			return fmt.Errorf("request password reset: %w", err)
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})
}

// HandleResetConfirm sets a new password with a reset token.
func (ht *HTTPTransport) HandleResetConfirm(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "password reset confirm", func() error {
		token, err := formValue(r, "token", ErrNoToken)
		if err != nil {
			return err
		}

		password, err := formValue(r, "password", ErrNoPassword)
		if err != nil {
			return err
		}

		if err := ht.authSvc.ConfirmPasswordReset(r.Context(), token, password); err != nil {
			return fmt.Errorf("confirm password reset: %w", err)
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})
}

// HandleValidate answers with the principal of the bearer token.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "validate token", func() error {
		token := http_.BearerToken(r)
		if token == "" {
			return domain.ErrNoAuthToken
		}

		principal, err := ht.Validate(r.Context(), token)
		if err != nil {
			return fmt.Errorf("validate token: %w", err)
		}

		http_.WriteJSON(w, http.StatusOK, principal)

		return nil
	})
}

// HandleDeleteAccount removes the account of the authenticated caller.
func (ht *HTTPTransport) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ht.handle(w, r, "delete account", func() error {
		userID := context_.UserIDFromContext(r.Context())
		if userID == "" {
			return domain.ErrNoAuthToken
		}

		if err := ht.authSvc.DeleteAccount(r.Context(), userID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}

		w.WriteHeader(http.StatusNoContent)

		return nil
	})
}
