// Package api exposes the HTTP surface of the Aido backend: OAuth login
// initiation and callback, provider availability, and user management.
package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/getaido/aido/domain"
	"github.com/getaido/aido/flow"
	"github.com/getaido/aido/provider"
	"github.com/getaido/aido/reconcile"
	"github.com/getaido/aido/user"
)

const stateCookie = "oauth_state"

type Handler struct {
	oidcManager  *flow.OIDCManager
	store        domain.UserStorage
	availability map[string]bool
}

// NewHandler creates the HTTP handler. availability is the injected
// per-provider feature gate; the handler never consults the environment.
func NewHandler(om *flow.OIDCManager, store domain.UserStorage, availability map[string]bool) *Handler {
	return &Handler{oidcManager: om, store: store, availability: availability}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// OAuth flow. Paths follow the conventional authorization/callback
	// shape so redirect traces classify them by stage.
	e.GET("/oauth2/authorization/:provider", h.HandleAuthorize)
	e.GET("/login/oauth2/code/:provider", h.HandleCallback)
	e.GET("/auth/providers", h.HandleProviders)

	// User management.
	e.GET("/users", h.HandleListUsers)
	e.POST("/users", h.HandleCreateUser)
	e.GET("/users/search", h.HandleSearchUsers)
	e.GET("/users/:id", h.HandleGetUser)
	e.PUT("/users/:id", h.HandleUpdateUser)
	e.DELETE("/users/:id", h.HandleDeleteUser)
}

// HandleAuthorize starts the OAuth flow by redirecting to the provider's
// authorization endpoint.
func (h *Handler) HandleAuthorize(c echo.Context) error {
	name := c.Param("provider")
	if !h.availability[name] || !h.oidcManager.Available(name) {
		return h.loginError(c, "Login with "+name+" is not supported")
	}

	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	authURL, err := h.oidcManager.AuthCodeURL(name, state)
	if err != nil {
		return h.loginError(c, "Login with "+name+" is not supported")
	}
	return c.Redirect(http.StatusFound, authURL)
}

// HandleCallback completes the OAuth flow: code exchange, reconciliation,
// and redirect to the dashboard. Reconciliation failures are terminal and
// redirect back to the login page with a user-facing message.
func (h *Handler) HandleCallback(c echo.Context) error {
	if msg := c.QueryParam("error"); msg != "" {
		return h.loginError(c, "Authentication failed")
	}

	cookie, err := c.Cookie(stateCookie)
	if err != nil {
		return h.loginError(c, "Authentication failed")
	}
	if state := c.QueryParam("state"); state == "" || state != cookie.Value {
		return h.loginError(c, "Authentication failed")
	}

	name := c.Param("provider")
	principal, err := h.oidcManager.HandleCallback(c.Request().Context(), name, c.QueryParam("code"))
	if err != nil {
		return h.loginError(c, authFailureMessage(err))
	}

	c.Set("principal", principal)
	return c.Redirect(http.StatusFound, "/dashboard?success=true")
}

// HandleProviders reports which OAuth providers are available for login.
func (h *Handler) HandleProviders(c echo.Context) error {
	anyAvailable := false
	for _, ok := range h.availability {
		anyAvailable = anyAvailable || ok
	}
	return c.JSON(http.StatusOK, map[string]any{
		"providers": h.availability,
		"any":       anyAvailable,
	})
}

func (h *Handler) HandleListUsers(c echo.Context) error {
	users, err := h.store.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list users")
	}
	return c.JSON(http.StatusOK, users)
}

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HandleCreateUser registers a local account. The email must not already
// be taken by any account, provider-backed or not.
func (h *Handler) HandleCreateUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and email are required")
	}

	exists, err := h.store.ExistsByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}
	if exists {
		return echo.NewHTTPError(http.StatusConflict, "Email already exists: "+req.Email)
	}

	now := time.Now()
	created, err := h.store.Create(c.Request().Context(), &user.User{
		Name:      req.Name,
		Email:     req.Email,
		Provider:  provider.Local,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}
	return c.JSON(http.StatusCreated, created)
}

// HandleUpdateUser changes a user's name and email. Moving to an email
// held by another account is a conflict.
func (h *Handler) HandleUpdateUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and email are required")
	}

	u, err := h.store.GetUser(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
	}
	if u == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	if req.Email != u.Email {
		exists, err := h.store.ExistsByEmail(c.Request().Context(), req.Email)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update user")
		}
		if exists {
			return echo.NewHTTPError(http.StatusConflict, "Email already exists: "+req.Email)
		}
	}

	u.Name = req.Name
	u.Email = req.Email
	u.UpdatedAt = time.Now()
	updated, err := h.store.Update(c.Request().Context(), u)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update user")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) HandleGetUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	u, err := h.store.GetUser(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
	}
	if u == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) HandleSearchUsers(c echo.Context) error {
	keyword := c.QueryParam("keyword")
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}
	users, err := h.store.SearchUsers(c.Request().Context(), keyword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) HandleDeleteUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	u, err := h.store.GetUser(c.Request().Context(), uint(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load user")
	}
	if u == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err := h.store.DeleteUser(c.Request().Context(), uint(id)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) loginError(c echo.Context, message string) error {
	return c.Redirect(http.StatusFound, "/login?error=true&message="+url.QueryEscape(message))
}

// authFailureMessage maps reconciliation failures to the message shown on
// the login page.
func authFailureMessage(err error) string {
	var missing *reconcile.MissingEmailError
	if errors.As(err, &missing) {
		return "Email not found from OAuth2 provider"
	}
	var conflict *reconcile.ProviderConflictError
	if errors.As(err, &conflict) {
		return "Email already registered with " + conflict.Existing.String() +
			" provider. Please login with " + conflict.Existing.String() + " account."
	}
	return "Authentication failed"
}
