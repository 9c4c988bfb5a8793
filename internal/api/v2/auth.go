// internal/api/v2/auth.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgMissingAuthHeader  = "Missing or invalid Authorization header"

	tokenPurgeInterval = time.Hour
)

// CredentialsRequest is the body of the signup and login endpoints.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

func (c *Controller) initAuthRoutes() {
	c.Group.POST("/auth/signup", c.Signup)
	c.Group.POST("/auth/login", c.Login)

	if c.Settings.Security.RequireAuth {
		c.wg.Go(c.purgeExpiredTokens)
	}
}

// Signup handles POST /auth/signup. The new user is logged in right away.
func (c *Controller) Signup(ctx echo.Context) error {
	var req CredentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if msg := req.validate(); msg != "" {
		return c.HandleError(ctx, nil, msg, http.StatusBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.HandleError(ctx, err, "Internal server error", http.StatusInternalServerError)
	}

	user := datastore.User{Username: req.Username, PasswordHash: string(hash)}
	if err := c.DS.CreateUser(ctx.Request().Context(), &user); err != nil {
		c.recordAuth("signup", false)
		return c.respondError(ctx, err)
	}
	c.recordAuth("signup", true)

	return c.issueToken(ctx, user)
}

// Login handles POST /auth/login
func (c *Controller) Login(ctx echo.Context) error {
	var req CredentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if msg := req.validate(); msg != "" {
		return c.HandleError(ctx, nil, msg, http.StatusBadRequest)
	}

	user, err := c.DS.GetUserByUsername(ctx.Request().Context(), req.Username)
	if err != nil {
		c.recordAuth("login", false)
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, nil, msgInvalidCredentials, http.StatusUnauthorized)
		}
		return c.respondError(ctx, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.recordAuth("login", false)
		return c.HandleError(ctx, nil, msgInvalidCredentials, http.StatusUnauthorized)
	}
	c.recordAuth("login", true)

	return c.issueToken(ctx, user)
}

// validate trims the username and reports what is missing, if anything.
func (r *CredentialsRequest) validate() string {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return "Username and password are required"
	}
	return ""
}

func (c *Controller) issueToken(ctx echo.Context, user datastore.User) error {
	now := c.now()
	token := datastore.Token{
		Value:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:    user.ID,
		ExpiresAt: now.Add(c.Settings.Security.TokenTTL),
	}
	if err := c.DS.SaveToken(ctx.Request().Context(), &token); err != nil {
		return c.respondError(ctx, err)
	}

	c.logger.Info("token issued",
		logger.String("username", user.Username),
		logger.Time("expires_at", token.ExpiresAt))
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token.Value})
}

// AuthMiddleware guards mutating routes when security.requireauth is set.
func (c *Controller) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !c.Settings.Security.RequireAuth {
			return next(ctx)
		}

		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
			c.recordAuth("validate", false)
			return c.HandleError(ctx, nil, msgMissingAuthHeader, http.StatusUnauthorized)
		}

		if _, err := c.DS.GetToken(ctx.Request().Context(), strings.TrimSpace(value), c.now()); err != nil {
			c.recordAuth("validate", false)
			if errors.IsNotFound(err) {
				return c.HandleError(ctx, nil, datastore.ErrTokenNotFound.Error(), http.StatusUnauthorized)
			}
			return c.respondError(ctx, err)
		}
		c.recordAuth("validate", true)

		return next(ctx)
	}
}

func (c *Controller) recordAuth(operation string, ok bool) {
	if c.metrics == nil || c.metrics.HTTP == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	c.metrics.HTTP.RecordAuthOperation(operation, status)
}

// purgeExpiredTokens deletes expired tokens until the controller shuts down.
func (c *Controller) purgeExpiredTokens() {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			n, err := c.DS.DeleteExpiredTokens(c.ctx, c.now())
			if err != nil {
				c.logger.Warn("failed to purge expired tokens", logger.Error(err))
				continue
			}
			if n > 0 {
				c.logger.Debug("expired tokens purged", logger.Int64("count", n))
			}
		}
	}
}
