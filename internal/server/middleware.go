package server

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/cliprail/internal/observability/context"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"
	contextUserKey   = "user"
)

// UserRequired resolves the acting user from the external id the front door
// sends in X-User-ID.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.resolveUser(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.setUser(c, user)
		c.Next()
	}
}

// AdminRequired accepts either the configured admin token or an acting user
// flagged as admin.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.validAdminToken(c.GetHeader(HeaderAdminToken)) {
			ctx := obscontext.WithActor(c.Request.Context(), "admin_token", "admin")
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		user, err := s.resolveUser(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !user.IsAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		s.setUser(c, user)
		c.Next()
	}
}

func (s *Server) validAdminToken(token string) bool {
	expected := strings.TrimSpace(s.cfg.AdminToken)
	token = strings.TrimSpace(token)
	if expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

func (s *Server) resolveUser(c *gin.Context) (userdomain.User, error) {
	externalID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if externalID == "" {
		return userdomain.User{}, ErrUnauthorized
	}
	user, err := s.userSvc.GetByExternalID(c.Request.Context(), externalID)
	if err != nil {
		if errors.Is(err, userdomain.ErrNotFound) || errors.Is(err, userdomain.ErrInvalidExternalID) {
			return userdomain.User{}, ErrUnauthorized
		}
		return userdomain.User{}, err
	}
	return user, nil
}

func (s *Server) setUser(c *gin.Context, user userdomain.User) {
	c.Set(contextUserKey, user)
	userID := user.ID.String()
	ctx := obscontext.WithUserID(c.Request.Context(), userID)
	ctx = obscontext.WithActor(ctx, "user", userID)
	c.Request = c.Request.WithContext(ctx)
}

func currentUser(c *gin.Context) (userdomain.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return userdomain.User{}, false
	}
	user, ok := value.(userdomain.User)
	return user, ok
}
