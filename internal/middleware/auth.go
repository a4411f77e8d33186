package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/models"
)

// UserKey is the gin context key holding the authenticated *models.User.
const UserKey = "user"

var errBadToken = errors.New("invalid or expired token")

type UserLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Authenticator struct {
	tokens *auth.Tokens
	users  UserLoader
}

func NewAuthenticator(tokens *auth.Tokens, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Required rejects requests without a valid bearer token. The user is
// reloaded on every request so role changes apply at once.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "authentication", "Authorization header required")
			return
		}
		user, err := a.resolve(c.Request.Context(), raw)
		switch {
		case errors.Is(err, errBadToken):
			abort(c, http.StatusUnauthorized, "authentication", "Invalid or expired token")
			return
		case err != nil:
			failed(c, err)
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// Optional attaches the user when a valid token is present and otherwise
// lets the request through anonymously. Failing to load the user is still
// an error.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			user, err := a.resolve(c.Request.Context(), raw)
			switch {
			case err == nil:
				c.Set(UserKey, user)
			case !errors.Is(err, errBadToken):
				failed(c, err)
				return
			}
		}
		c.Next()
	}
}

// resolve returns errBadToken for tokens that do not name a live user and
// passes any other loader error through.
func (a *Authenticator) resolve(ctx context.Context, raw string) (*models.User, error) {
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, errBadToken
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, errBadToken
	}
	user, err := a.users.FindByID(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, errBadToken
		}
		return nil, err
	}
	return user, nil
}

// Authorize gates a route group on a casbin permission of the current user.
func Authorize(policy *auth.Policy, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			abort(c, http.StatusUnauthorized, "authentication", "Authentication required")
			return
		}
		if !policy.Allowed(user.Role, obj, act) {
			abort(c, http.StatusForbidden, "authorization", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func failed(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := apperr.KindOf(err)
	abort(c, kind.HTTPStatus(), string(kind), apperr.PublicMessage(err))
}

func abort(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}
